package config

import "time"

// Config holds docfield configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	FileCenter FileCenterConfig `mapstructure:"file_center" yaml:"file_center"`
	OCR        OCRConfig        `mapstructure:"ocr" yaml:"ocr"`
	LLM        LLMConfig        `mapstructure:"llm" yaml:"llm"`
	Callback   CallbackConfig   `mapstructure:"callback" yaml:"callback"`
	Tasks      TasksConfig      `mapstructure:"tasks" yaml:"tasks"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
}

// FileCenterConfig points at the file-retrieval collaborator.
type FileCenterConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// OCRConfig configures the OCR collaborator and its concurrency gate.
type OCRConfig struct {
	ServerURL string        `mapstructure:"server_url" yaml:"server_url"`
	Model     string        `mapstructure:"model" yaml:"model"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// PageBreak joins page texts into the full-document text.
	PageBreak string `mapstructure:"page_break" yaml:"page_break"`
	// MaxInflight caps concurrent OCR invocations across all tasks.
	MaxInflight int `mapstructure:"max_inflight" yaml:"max_inflight"`
	// RateLimit is requests per minute against the OCR server (0 = default).
	RateLimit int `mapstructure:"rate_limit" yaml:"rate_limit"`

	Container OCRContainerConfig `mapstructure:"container" yaml:"container"`
}

// OCRContainerConfig controls the optional locally managed PaddleOCR-VL
// container used when no external OCR server is available.
type OCRContainerConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Image   string `mapstructure:"image" yaml:"image"`
	Name    string `mapstructure:"name" yaml:"name"`
	Port    string `mapstructure:"port" yaml:"port"`
}

// LLMConfig configures the OpenAI-compatible LLM collaborator.
type LLMConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// APIKey supports ${ENV_VAR} syntax.
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	Model       string        `mapstructure:"model" yaml:"model"`
	System      string        `mapstructure:"system" yaml:"system"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	TopP        float64       `mapstructure:"top_p" yaml:"top_p"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// MaxInflight caps concurrent LLM invocations across all tasks.
	MaxInflight int `mapstructure:"max_inflight" yaml:"max_inflight"`
	// RateLimit is requests per minute against the LLM endpoint (0 = default).
	RateLimit int `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// CallbackConfig points at the fixed outbound callback endpoints.
type CallbackConfig struct {
	BaseURL         string        `mapstructure:"base_url" yaml:"base_url"`
	FinalResultPath string        `mapstructure:"final_result_path" yaml:"final_result_path"`
	OCRResultPath   string        `mapstructure:"ocr_result_path" yaml:"ocr_result_path"`
	MaxRetries      int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryBaseDelay  time.Duration `mapstructure:"retry_base_delay" yaml:"retry_base_delay"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// TasksConfig controls orchestrator scheduling.
type TasksConfig struct {
	// MaxFileConcurrency bounds in-flight file pipelines per task.
	MaxFileConcurrency int `mapstructure:"max_file_concurrency" yaml:"max_file_concurrency"`
	// TaskTimeout bounds a whole task run. Zero disables the timeout.
	TaskTimeout time.Duration `mapstructure:"task_timeout" yaml:"task_timeout"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: "20001",
		},
		FileCenter: FileCenterConfig{
			BaseURL: "http://localhost:9321",
			Timeout: 120 * time.Second,
		},
		OCR: OCRConfig{
			Model:       "PaddleOCR-VL-0.9B",
			Timeout:     300 * time.Second,
			PageBreak:   "\n----- PAGE BREAK -----\n",
			MaxInflight: 4,
			Container: OCRContainerConfig{
				Image: "paddlepaddle/paddleocr-vl:latest",
				Name:  "docfield-ocr",
				Port:  "8118",
			},
		},
		LLM: LLMConfig{
			APIKey:      "${DOCFIELD_LLM_API_KEY}",
			Temperature: 0.2,
			TopP:        0.9,
			MaxTokens:   2048,
			Timeout:     120 * time.Second,
			MaxInflight: 8,
		},
		Callback: CallbackConfig{
			FinalResultPath: "/callback/extract/result",
			OCRResultPath:   "/callback/extract/ocr",
			MaxRetries:      3,
			RetryBaseDelay:  3 * time.Second,
			Timeout:         30 * time.Second,
		},
		Tasks: TasksConfig{
			MaxFileConcurrency: 4,
		},
	}
}
