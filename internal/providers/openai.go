package providers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const OpenAICompatName = "openai-compat"

// OpenAICompatConfig holds configuration for an OpenAI-compatible chat
// completion endpoint (vLLM, OpenAI, or any /v1/chat/completions server).
type OpenAICompatConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	System      string
	Temperature float64
	TopP        float64
	MaxTokens   int
	Timeout     time.Duration
	HTTPClient  *http.Client // Optional (tests)
}

// OpenAICompatClient implements LLMClient using the official OpenAI SDK
// pointed at a configurable base URL.
type OpenAICompatClient struct {
	model       string
	system      string
	temperature float64
	topP        float64
	maxTokens   int
	timeout     time.Duration
	client      openai.Client
}

// NewOpenAICompatClient creates a new chat completion client.
func NewOpenAICompatClient(cfg OpenAICompatConfig) *OpenAICompatClient {
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.2
	}
	if cfg.TopP <= 0 {
		cfg.TopP = 0.9
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAICompatClient{
		model:       cfg.Model,
		system:      cfg.System,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		client:      openai.NewClient(opts...),
	}
}

// Name returns the client identifier.
func (c *OpenAICompatClient) Name() string {
	return OpenAICompatName
}

// Complete sends a chat completion request and returns the response text.
func (c *OpenAICompatClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if c.system != "" {
		messages = append(messages, openai.SystemMessage(c.system))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(c.temperature),
		TopP:        openai.Float(c.topP),
		MaxTokens:   openai.Int(int64(c.maxTokens)),
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	return &CompletionResult{
		Text:             resp.Choices[0].Message.Content,
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		ModelUsed:        resp.Model,
		ExecutionTime:    time.Since(start),
		RequestID:        requestID,
	}, nil
}
