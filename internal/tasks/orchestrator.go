// Package tasks runs accepted extraction tasks through the per-file
// pipeline and hands aggregated results to the callback dispatcher.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/docfield/docfield/internal/callback"
	"github.com/docfield/docfield/internal/ocr"
	"github.com/docfield/docfield/internal/types"
)

// State names one stop in a task's lifecycle.
type State string

const (
	StateAccepted        State = "accepted"
	StateRunning         State = "running"
	StateAggregating     State = "aggregating"
	StateCallbackPending State = "callback_pending"
	StateDone            State = "done"
	StateFailed          State = "failed"
)

// Status is a point-in-time snapshot of one task, for operator inspection.
type Status struct {
	TaskNo      string    `json:"task_no"`
	State       State     `json:"state"`
	Files       int       `json:"files"`
	FreshOCR    int       `json:"fresh_ocr"`
	FailedFiles int       `json:"failed_files"`
	// Pages totals the page counts of processed PDF inputs.
	Pages int `json:"pages"`
	Submitted   time.Time `json:"submitted"`
	Completed   time.Time `json:"completed,omitzero"`
	Error       string    `json:"error,omitempty"`
}

// Resolver resolves one file's OCR text.
type Resolver interface {
	Resolve(ctx context.Context, fileID, ocrFileID string) (*ocr.Resolution, error)
}

// Extractor runs field extraction over one document's text.
type Extractor interface {
	Extract(ctx context.Context, ocrText string, fields []types.FieldSpec, promptOverride string) (map[string]string, error)
}

// Notifier delivers task outcomes to the caller.
type Notifier interface {
	DeliverResult(ctx context.Context, taskNo string, values map[string]string)
	DeliverError(ctx context.Context, taskNo string, taskErr error)
	DeliverOCRArtifacts(ctx context.Context, taskNo string, artifacts []callback.OCRArtifact)
}

// Orchestrator admits tasks and drives them to completion asynchronously.
// Admission is synchronous and cheap; everything after runs detached from
// the submitting request.
type Orchestrator struct {
	resolver  Resolver
	extractor Extractor
	notifier  Notifier

	maxFileConcurrency int
	taskTimeout        time.Duration

	baseCtx context.Context
	logger  *slog.Logger

	mu      sync.RWMutex
	entries map[string]*Status

	wg sync.WaitGroup
}

func NewOrchestrator(baseCtx context.Context, resolver Resolver, extractor Extractor, notifier Notifier, maxFileConcurrency int, taskTimeout time.Duration, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if maxFileConcurrency <= 0 {
		maxFileConcurrency = 4
	}
	return &Orchestrator{
		resolver:           resolver,
		extractor:          extractor,
		notifier:           notifier,
		maxFileConcurrency: maxFileConcurrency,
		taskTimeout:        taskTimeout,
		baseCtx:            baseCtx,
		logger:             logger.With("component", "tasks"),
		entries:            make(map[string]*Status),
	}
}

// Submit admits one task. A validation failure returns a
// *types.AdmissionError and starts no work; no callback is ever sent for a
// rejected task. On success the task runs in the background and Submit
// returns immediately.
func (o *Orchestrator) Submit(task *types.Task) error {
	if err := task.Validate(); err != nil {
		o.logger.Warn("Task rejected at admission", "task", task.TaskNo, "error", err)
		return err
	}

	o.mu.Lock()
	if st, exists := o.entries[task.TaskNo]; exists && st.State != StateDone && st.State != StateFailed {
		o.mu.Unlock()
		return &types.AdmissionError{Reason: fmt.Sprintf("task %s is already in flight", task.TaskNo)}
	}
	o.entries[task.TaskNo] = &Status{
		TaskNo:    task.TaskNo,
		State:     StateAccepted,
		Files:     len(task.Files),
		Submitted: time.Now(),
	}
	o.mu.Unlock()

	o.logger.Info("Task accepted", "task", task.TaskNo, "files", len(task.Files), "fields", len(task.Fields))

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run(task)
	}()
	return nil
}

// Status reports the snapshot for one task.
func (o *Orchestrator) Status(taskNo string) (Status, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	st, ok := o.entries[taskNo]
	if !ok {
		return Status{}, false
	}
	return *st, true
}

// List reports snapshots for every known task.
func (o *Orchestrator) List() []Status {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]Status, 0, len(o.entries))
	for _, st := range o.entries {
		out = append(out, *st)
	}
	return out
}

// Wait blocks until all in-flight tasks have finished, including their
// callback deliveries. Used for graceful shutdown.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) run(task *types.Task) {
	ctx := o.baseCtx
	cancel := context.CancelFunc(func() {})
	if o.taskTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, o.taskTimeout)
	}
	defer cancel()

	o.setState(task.TaskNo, StateRunning)
	outcomes := o.runFiles(ctx, task)

	o.setState(task.TaskNo, StateAggregating)
	result, artifacts := o.aggregate(task, outcomes)

	o.setState(task.TaskNo, StateCallbackPending)

	// Callbacks run against the orchestrator's base context so a task
	// timeout cannot also cancel the delivery of its own error.
	o.notifier.DeliverOCRArtifacts(o.baseCtx, task.TaskNo, artifacts)
	if result.Err != nil {
		o.notifier.DeliverError(o.baseCtx, task.TaskNo, result.Err)
	} else {
		o.notifier.DeliverResult(o.baseCtx, task.TaskNo, result.Values)
	}

	o.finish(task.TaskNo, outcomes, result.Err)
}

// runFiles fans the task's files out over the pipeline, at most
// maxFileConcurrency at a time, and waits for all of them. Outcomes keep
// input order.
func (o *Orchestrator) runFiles(ctx context.Context, task *types.Task) []*types.FileOutcome {
	outcomes := make([]*types.FileOutcome, len(task.Files))
	slots := make(chan struct{}, o.maxFileConcurrency)
	var wg sync.WaitGroup

	for i, file := range task.Files {
		wg.Add(1)
		go func(idx int, ref types.FileRef) {
			defer wg.Done()

			select {
			case slots <- struct{}{}:
				defer func() { <-slots }()
			case <-ctx.Done():
				outcomes[idx] = &types.FileOutcome{
					FileID: ref.FileID,
					Err:    fmt.Errorf("file %s not processed: %w", ref.FileID, ctx.Err()),
				}
				return
			}

			outcomes[idx] = o.runFile(ctx, task, ref)
		}(i, file)
	}
	wg.Wait()
	return outcomes
}

// runFile takes one file through resolve and extract. An error here is the
// file's alone; siblings keep running.
func (o *Orchestrator) runFile(ctx context.Context, task *types.Task, ref types.FileRef) *types.FileOutcome {
	outcome := &types.FileOutcome{FileID: ref.FileID, OCRFileID: ref.OCRFileID}

	res, err := o.resolver.Resolve(ctx, ref.FileID, ref.OCRFileID)
	if err != nil {
		outcome.Err = err
		o.logger.Warn("File OCR resolution failed", "task", task.TaskNo, "file", ref.FileID, "error", err)
		return outcome
	}
	outcome.OCRFileID = res.OCRFileID
	outcome.FreshOCR = res.Fresh
	outcome.Pages = res.Pages

	values, err := o.extractor.Extract(ctx, res.Text, task.Fields, task.Prompt)
	if err != nil {
		outcome.Err = err
		o.logger.Warn("File extraction failed", "task", task.TaskNo, "file", ref.FileID, "error", err)
		return outcome
	}
	outcome.Values = values
	return outcome
}

// aggregate folds per-file outcomes into the task result. Each field takes
// its value from the first file, in input order, that produced a non-empty
// one. Every freshly minted OCR artifact is collected for the artifact
// callback, including files whose extraction later failed: the text is
// already uploaded, and announcing it lets retries hit cache.
func (o *Orchestrator) aggregate(task *types.Task, outcomes []*types.FileOutcome) (*types.ExtractionResult, []callback.OCRArtifact) {
	var artifacts []callback.OCRArtifact
	failed := 0
	var firstErr error
	for _, oc := range outcomes {
		if oc.FreshOCR {
			artifacts = append(artifacts, callback.OCRArtifact{FileID: oc.FileID, OCRFileID: oc.OCRFileID})
		}
		if oc.Failed() {
			failed++
			if firstErr == nil {
				firstErr = oc.Err
			}
		}
	}

	result := &types.ExtractionResult{TaskNo: task.TaskNo}
	if failed == len(outcomes) {
		result.Err = fmt.Errorf("task %s failed: every file errored: %w", task.TaskNo, firstErr)
		return result, artifacts
	}

	values := make(map[string]string, len(task.Fields))
	anyFound := false
	for _, field := range task.Fields {
		values[field.FieldKey] = ""
		for _, oc := range outcomes {
			if oc.Failed() {
				continue
			}
			if v := oc.Values[field.FieldKey]; v != "" {
				values[field.FieldKey] = v
				anyFound = true
				break
			}
		}
	}

	if !anyFound {
		result.Err = fmt.Errorf("task %s produced no field values", task.TaskNo)
		return result, artifacts
	}

	result.Values = values
	return result, artifacts
}

func (o *Orchestrator) setState(taskNo string, state State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if st, ok := o.entries[taskNo]; ok {
		st.State = state
	}
}

func (o *Orchestrator) finish(taskNo string, outcomes []*types.FileOutcome, taskErr error) {
	fresh, failed, pages := 0, 0, 0
	for _, oc := range outcomes {
		if oc.FreshOCR {
			fresh++
		}
		if oc.Failed() {
			failed++
		}
		pages += oc.Pages
	}

	o.mu.Lock()
	if st, ok := o.entries[taskNo]; ok {
		st.FreshOCR = fresh
		st.FailedFiles = failed
		st.Pages = pages
		st.Completed = time.Now()
		if taskErr != nil {
			st.State = StateFailed
			st.Error = taskErr.Error()
		} else {
			st.State = StateDone
		}
	}
	o.mu.Unlock()

	if taskErr != nil {
		o.logger.Warn("Task failed", "task", taskNo, "failed_files", failed, "error", taskErr)
		return
	}
	o.logger.Info("Task completed", "task", taskNo, "fresh_ocr", fresh, "failed_files", failed)
}

// ErrUnknownTask is returned by status lookups for task numbers never
// admitted (or admitted before a restart).
var ErrUnknownTask = errors.New("unknown task")
