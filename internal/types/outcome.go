package types

// FileOutcome is the result of one file's pipeline run. It is private to the
// owning task and discarded after aggregation.
type FileOutcome struct {
	// FileID echoes the input file id.
	FileID string
	// OCRFileID is the resolved artifact id: either the caller-supplied id
	// (cache hit) or a freshly minted one.
	OCRFileID string
	// FreshOCR marks files whose text was computed during this task.
	// Only these appear in the OCR-artifact callback.
	FreshOCR bool
	// Pages is the document page count when known (PDF inputs).
	Pages int
	// Values maps fieldKey to the extracted value. A key that was requested
	// but not found carries an empty string; keys are never dropped.
	Values map[string]string
	// Err records a per-file failure. A failed file contributes no values
	// but never aborts its siblings.
	Err error
}

// Failed reports whether this file's pipeline errored.
func (o *FileOutcome) Failed() bool { return o.Err != nil }

// ExtractionResult is the task-level aggregate delivered via the final
// result callback.
type ExtractionResult struct {
	TaskNo string
	// Values maps every requested fieldKey to its resolved value, empty
	// string meaning "not found".
	Values map[string]string
	// Err is set when no usable result exists (all files failed, or every
	// field came back empty).
	Err error
}
