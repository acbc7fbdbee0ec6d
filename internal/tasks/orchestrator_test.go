package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/docfield/docfield/internal/callback"
	"github.com/docfield/docfield/internal/ocr"
	"github.com/docfield/docfield/internal/types"
)

type fakeResolver struct {
	mu      sync.Mutex
	delay   time.Duration
	texts   map[string]string // fileID -> text
	fail    map[string]error  // fileID -> resolution error
	minted  map[string]string // fileID -> minted artifact id (fresh ocr)
	pages   map[string]int    // fileID -> pdf page count
	inUse   atomic.Int32
	maxSeen atomic.Int32
}

func (r *fakeResolver) Resolve(ctx context.Context, fileID, ocrFileID string) (*ocr.Resolution, error) {
	cur := r.inUse.Add(1)
	defer r.inUse.Add(-1)
	for {
		max := r.maxSeen.Load()
		if cur <= max || r.maxSeen.CompareAndSwap(max, cur) {
			break
		}
	}

	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.fail[fileID]; ok {
		return nil, err
	}
	res := &ocr.Resolution{OCRFileID: ocrFileID, Text: r.texts[fileID], Pages: r.pages[fileID]}
	if ocrFileID == "" {
		res.Fresh = true
		res.OCRFileID = r.minted[fileID]
		if res.OCRFileID == "" {
			res.OCRFileID = fileID + "-ocr"
		}
	}
	return res, nil
}

type fakeExtractor struct {
	// values maps document text to extraction output.
	values map[string]map[string]string
	fail   map[string]error
}

func (e *fakeExtractor) Extract(ctx context.Context, ocrText string, fields []types.FieldSpec, promptOverride string) (map[string]string, error) {
	if err, ok := e.fail[ocrText]; ok {
		return nil, err
	}
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		out[f.FieldKey] = e.values[ocrText][f.FieldKey]
	}
	return out, nil
}

type fakeNotifier struct {
	mu        sync.Mutex
	results   []map[string]string
	errors    []error
	artifacts [][]callback.OCRArtifact
}

func (n *fakeNotifier) DeliverResult(ctx context.Context, taskNo string, values map[string]string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.results = append(n.results, values)
}

func (n *fakeNotifier) DeliverError(ctx context.Context, taskNo string, taskErr error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, taskErr)
}

func (n *fakeNotifier) DeliverOCRArtifacts(ctx context.Context, taskNo string, artifacts []callback.OCRArtifact) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(artifacts) > 0 {
		n.artifacts = append(n.artifacts, artifacts)
	}
}

func fieldSpecs(keys ...string) []types.FieldSpec {
	out := make([]types.FieldSpec, 0, len(keys))
	for _, k := range keys {
		out = append(out, types.FieldSpec{FieldKey: k, FieldKeyType: types.FieldTypeText})
	}
	return out
}

func newTestOrchestrator(r Resolver, e Extractor, n Notifier, maxConc int, timeout time.Duration) *Orchestrator {
	return NewOrchestrator(context.Background(), r, e, n, maxConc, timeout, slog.Default())
}

func TestSubmitAdmission(t *testing.T) {
	notifier := &fakeNotifier{}
	o := newTestOrchestrator(&fakeResolver{}, &fakeExtractor{}, notifier, 2, 0)

	t.Run("invalid task rejected without callbacks", func(t *testing.T) {
		err := o.Submit(&types.Task{TaskNo: "", Files: []types.FileRef{{FileID: "f1"}}, Fields: fieldSpecs("a")})
		var admErr *types.AdmissionError
		if !errors.As(err, &admErr) {
			t.Fatalf("expected AdmissionError, got %v", err)
		}
		o.Wait()
		if len(notifier.results) != 0 || len(notifier.errors) != 0 {
			t.Error("rejected task must not trigger callbacks")
		}
	})

	t.Run("duplicate in-flight task rejected", func(t *testing.T) {
		resolver := &fakeResolver{delay: 50 * time.Millisecond, texts: map[string]string{"f1": "doc"}}
		extractor := &fakeExtractor{values: map[string]map[string]string{"doc": {"a": "v"}}}
		o := newTestOrchestrator(resolver, extractor, &fakeNotifier{}, 2, 0)

		task := &types.Task{TaskNo: "DUP", Files: []types.FileRef{{FileID: "f1"}}, Fields: fieldSpecs("a")}
		if err := o.Submit(task); err != nil {
			t.Fatalf("first submit failed: %v", err)
		}
		err := o.Submit(task)
		var admErr *types.AdmissionError
		if !errors.As(err, &admErr) {
			t.Fatalf("expected AdmissionError for duplicate, got %v", err)
		}
		o.Wait()
	})
}

func TestTaskHappyPath(t *testing.T) {
	resolver := &fakeResolver{
		texts: map[string]string{"f1": "doc1", "f2": "doc2"},
		pages: map[string]int{"f1": 3},
	}
	extractor := &fakeExtractor{values: map[string]map[string]string{
		"doc1": {"Party A": "Acme", "Total": ""},
		"doc2": {"Party A": "WRONG", "Total": "1200"},
	}}
	notifier := &fakeNotifier{}
	o := newTestOrchestrator(resolver, extractor, notifier, 4, 0)

	err := o.Submit(&types.Task{
		TaskNo: "T1",
		Files:  []types.FileRef{{FileID: "f1"}, {FileID: "f2", OCRFileID: "cached"}},
		Fields: fieldSpecs("Party A", "Total", "Missing"),
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	o.Wait()

	if len(notifier.errors) != 0 {
		t.Fatalf("unexpected error callback: %v", notifier.errors)
	}
	if len(notifier.results) != 1 {
		t.Fatalf("expected 1 result callback, got %d", len(notifier.results))
	}
	got := notifier.results[0]
	if got["Party A"] != "Acme" {
		t.Errorf("first file in input order should win, got %q", got["Party A"])
	}
	if got["Total"] != "1200" {
		t.Errorf("later file should fill fields the first left empty, got %q", got["Total"])
	}
	if v, ok := got["Missing"]; !ok || v != "" {
		t.Errorf("unfound field must be present and empty, got %q (present=%v)", v, ok)
	}

	if len(notifier.artifacts) != 1 || len(notifier.artifacts[0]) != 1 {
		t.Fatalf("expected one artifact batch with the fresh file only, got %v", notifier.artifacts)
	}
	art := notifier.artifacts[0][0]
	if art.FileID != "f1" || art.OCRFileID != "f1-ocr" {
		t.Errorf("unexpected artifact %+v", art)
	}

	st, ok := o.Status("T1")
	if !ok || st.State != StateDone {
		t.Errorf("expected done status, got %+v (ok=%v)", st, ok)
	}
	if st.FreshOCR != 1 {
		t.Errorf("expected 1 fresh ocr file, got %d", st.FreshOCR)
	}
	if st.Pages != 3 {
		t.Errorf("expected 3 pages, got %d", st.Pages)
	}
}

func TestFailureIsolation(t *testing.T) {
	resolver := &fakeResolver{
		texts: map[string]string{"f2": "doc2"},
		fail:  map[string]error{"f1": errors.New("ocr exploded")},
	}
	extractor := &fakeExtractor{values: map[string]map[string]string{
		"doc2": {"a": "found"},
	}}
	notifier := &fakeNotifier{}
	o := newTestOrchestrator(resolver, extractor, notifier, 2, 0)

	if err := o.Submit(&types.Task{
		TaskNo: "T2",
		Files:  []types.FileRef{{FileID: "f1"}, {FileID: "f2"}},
		Fields: fieldSpecs("a"),
	}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	o.Wait()

	if len(notifier.results) != 1 {
		t.Fatalf("one file failing must not fail the task, got results=%d errors=%d", len(notifier.results), len(notifier.errors))
	}
	if notifier.results[0]["a"] != "found" {
		t.Errorf("surviving file's value expected, got %q", notifier.results[0]["a"])
	}

	st, _ := o.Status("T2")
	if st.FailedFiles != 1 {
		t.Errorf("expected 1 failed file, got %d", st.FailedFiles)
	}
}

func TestArtifactsSurviveExtractionFailure(t *testing.T) {
	// f1 is freshly OCR'd and uploaded, then its extraction fails; f2 is a
	// cache hit that succeeds. The minted f1 artifact must still be
	// announced so a retry of the task can reuse it.
	resolver := &fakeResolver{texts: map[string]string{"f1": "doc1", "f2": "doc2"}}
	extractor := &fakeExtractor{
		values: map[string]map[string]string{"doc2": {"a": "found"}},
		fail:   map[string]error{"doc1": errors.New("llm refused")},
	}
	notifier := &fakeNotifier{}
	o := newTestOrchestrator(resolver, extractor, notifier, 2, 0)

	if err := o.Submit(&types.Task{
		TaskNo: "T7",
		Files:  []types.FileRef{{FileID: "f1"}, {FileID: "f2", OCRFileID: "cached"}},
		Fields: fieldSpecs("a"),
	}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	o.Wait()

	if len(notifier.results) != 1 {
		t.Fatalf("expected success via f2, got results=%d errors=%d", len(notifier.results), len(notifier.errors))
	}
	if len(notifier.artifacts) != 1 || len(notifier.artifacts[0]) != 1 {
		t.Fatalf("expected one artifact batch for f1, got %v", notifier.artifacts)
	}
	art := notifier.artifacts[0][0]
	if art.FileID != "f1" || art.OCRFileID != "f1-ocr" {
		t.Errorf("unexpected artifact %+v", art)
	}
}

func TestAllFilesFailed(t *testing.T) {
	resolver := &fakeResolver{fail: map[string]error{
		"f1": errors.New("boom1"),
		"f2": errors.New("boom2"),
	}}
	notifier := &fakeNotifier{}
	o := newTestOrchestrator(resolver, &fakeExtractor{}, notifier, 2, 0)

	if err := o.Submit(&types.Task{
		TaskNo: "T3",
		Files:  []types.FileRef{{FileID: "f1"}, {FileID: "f2"}},
		Fields: fieldSpecs("a"),
	}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	o.Wait()

	if len(notifier.errors) != 1 {
		t.Fatalf("expected error callback, got results=%d errors=%d", len(notifier.results), len(notifier.errors))
	}
	st, _ := o.Status("T3")
	if st.State != StateFailed {
		t.Errorf("expected failed state, got %s", st.State)
	}
}

func TestAllValuesEmpty(t *testing.T) {
	resolver := &fakeResolver{texts: map[string]string{"f1": "doc1"}}
	extractor := &fakeExtractor{values: map[string]map[string]string{
		"doc1": {},
	}}
	notifier := &fakeNotifier{}
	o := newTestOrchestrator(resolver, extractor, notifier, 2, 0)

	if err := o.Submit(&types.Task{
		TaskNo: "T4",
		Files:  []types.FileRef{{FileID: "f1"}},
		Fields: fieldSpecs("a", "b"),
	}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	o.Wait()

	if len(notifier.errors) != 1 {
		t.Fatalf("all-empty result must be an error callback, got results=%d errors=%d", len(notifier.results), len(notifier.errors))
	}

	// Fresh OCR artifacts still go out even when the task ends in error.
	if len(notifier.artifacts) != 1 {
		t.Errorf("expected artifact callback despite task error, got %v", notifier.artifacts)
	}
}

func TestFileConcurrencyBound(t *testing.T) {
	resolver := &fakeResolver{delay: 20 * time.Millisecond, texts: map[string]string{}}
	extractor := &fakeExtractor{values: map[string]map[string]string{}}
	notifier := &fakeNotifier{}

	files := make([]types.FileRef, 8)
	for i := range files {
		id := fmt.Sprintf("f%d", i)
		text := fmt.Sprintf("doc%d", i)
		files[i] = types.FileRef{FileID: id}
		resolver.texts[id] = text
		extractor.values[text] = map[string]string{"a": "v"}
	}

	o := newTestOrchestrator(resolver, extractor, notifier, 2, 0)
	if err := o.Submit(&types.Task{TaskNo: "T5", Files: files, Fields: fieldSpecs("a")}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	o.Wait()

	if max := resolver.maxSeen.Load(); max > 2 {
		t.Errorf("file concurrency exceeded bound: saw %d parallel resolutions", max)
	}
	if len(notifier.results) != 1 {
		t.Fatalf("expected success, got results=%d errors=%d", len(notifier.results), len(notifier.errors))
	}
}

func TestTaskTimeout(t *testing.T) {
	resolver := &fakeResolver{delay: time.Second, texts: map[string]string{"f1": "doc1"}}
	notifier := &fakeNotifier{}
	o := newTestOrchestrator(resolver, &fakeExtractor{}, notifier, 2, 30*time.Millisecond)

	if err := o.Submit(&types.Task{
		TaskNo: "T6",
		Files:  []types.FileRef{{FileID: "f1"}},
		Fields: fieldSpecs("a"),
	}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	o.Wait()

	if len(notifier.errors) != 1 {
		t.Fatalf("expected timeout error callback, got results=%d errors=%d", len(notifier.results), len(notifier.errors))
	}
	if !errors.Is(notifier.errors[0], context.DeadlineExceeded) {
		t.Errorf("expected deadline error, got %v", notifier.errors[0])
	}
}
