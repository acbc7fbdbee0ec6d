// Package types defines the task, file and field specification model shared
// across the extraction pipeline.
package types

import "fmt"

// FieldType classifies how an extracted value is validated and normalized.
// Wire values match the caller's enum.
type FieldType string

const (
	FieldTypeText     FieldType = "0"
	FieldTypeAmount   FieldType = "1"
	FieldTypeDate     FieldType = "2"
	FieldTypeDuration FieldType = "3"
)

// Valid reports whether ft is one of the four supported kinds.
func (ft FieldType) Valid() bool {
	switch ft {
	case FieldTypeText, FieldTypeAmount, FieldTypeDate, FieldTypeDuration:
		return true
	}
	return false
}

// FieldSpec declares one field the caller wants extracted.
type FieldSpec struct {
	// FieldKey is the canonical field name, unique within a task.
	FieldKey string `json:"fieldKey"`
	// FieldKeyType selects value validation: text, amount, date or duration.
	FieldKeyType FieldType `json:"fieldKeyType"`
	// NearFieldKeys are aliases matched case-insensitively against LLM output.
	NearFieldKeys []string `json:"nearFieldKeys"`
	// FieldValueOptions restricts accepted values. Empty means unconstrained.
	FieldValueOptions []string `json:"fieldValueOptions,omitempty"`
	// Description is a free-text hint forwarded to the LLM.
	Description string `json:"description"`
}

// FileRef identifies one input document.
type FileRef struct {
	// FileID identifies the source document at the file center.
	FileID string `json:"fileId"`
	// OCRFileID points at a previously computed OCR artifact.
	// Empty means the document must be OCR'd fresh.
	OCRFileID string `json:"ocrFileId"`
}

// CacheHit reports whether this file carries a reusable OCR artifact.
func (f FileRef) CacheHit() bool { return f.OCRFileID != "" }

// Task is one caller-submitted extraction request, correlated by TaskNo.
type Task struct {
	TaskNo string      `json:"taskNo"`
	Files  []FileRef   `json:"files"`
	Fields []FieldSpec `json:"config"`
	// Prompt optionally replaces the instructional portion of the
	// default prompt template.
	Prompt string `json:"prompt"`
}

// AdmissionError describes a task rejected before any file work started.
// No callback is ever sent for a task that fails admission.
type AdmissionError struct {
	Reason string
}

func (e *AdmissionError) Error() string {
	return "task admission failed: " + e.Reason
}

// Validate applies admission checks: non-empty taskNo, at least one file,
// at least one field spec, unique file ids, well-formed field specs.
func (t *Task) Validate() error {
	if t.TaskNo == "" {
		return &AdmissionError{Reason: "taskNo is required"}
	}
	if len(t.Files) == 0 {
		return &AdmissionError{Reason: "at least one file is required"}
	}
	if len(t.Fields) == 0 {
		return &AdmissionError{Reason: "at least one field spec is required"}
	}

	seen := make(map[string]struct{}, len(t.Files))
	for _, f := range t.Files {
		if f.FileID == "" {
			return &AdmissionError{Reason: "fileId is required"}
		}
		if _, dup := seen[f.FileID]; dup {
			return &AdmissionError{Reason: fmt.Sprintf("duplicate fileId %q", f.FileID)}
		}
		seen[f.FileID] = struct{}{}
	}

	keys := make(map[string]struct{}, len(t.Fields))
	for _, fs := range t.Fields {
		if fs.FieldKey == "" {
			return &AdmissionError{Reason: "fieldKey is required"}
		}
		if !fs.FieldKeyType.Valid() {
			return &AdmissionError{Reason: fmt.Sprintf("unknown fieldKeyType %q for %q", fs.FieldKeyType, fs.FieldKey)}
		}
		if _, dup := keys[fs.FieldKey]; dup {
			return &AdmissionError{Reason: fmt.Sprintf("duplicate fieldKey %q", fs.FieldKey)}
		}
		keys[fs.FieldKey] = struct{}{}
	}

	return nil
}
