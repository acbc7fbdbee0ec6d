package callback

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestDispatcher(baseURL string) *Dispatcher {
	return NewDispatcher(baseURL, "/result", "/ocr", 3, time.Millisecond, time.Second, slog.Default())
}

func TestDeliverResult(t *testing.T) {
	t.Run("posts result payload", func(t *testing.T) {
		var got map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/result" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			body, _ := io.ReadAll(r.Body)
			json.Unmarshal(body, &got)
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		d := newTestDispatcher(srv.URL)
		d.DeliverResult(context.Background(), "T1", map[string]string{"Party A": "Acme", "Signed": ""})

		if got["taskNo"] != "T1" {
			t.Errorf("taskNo = %v", got["taskNo"])
		}
		result, ok := got["result"].(map[string]any)
		if !ok {
			t.Fatalf("missing result object: %v", got)
		}
		if result["Party A"] != "Acme" {
			t.Errorf("result[Party A] = %v", result["Party A"])
		}
		if _, present := got["errorMsg"]; present {
			t.Error("success payload should not carry errorMsg")
		}
	})

	t.Run("retries transient failures", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		d := newTestDispatcher(srv.URL)
		d.DeliverResult(context.Background(), "T1", map[string]string{"a": "b"})

		if calls.Load() != 3 {
			t.Errorf("expected 3 attempts, got %d", calls.Load())
		}
	})

	t.Run("exhausted retries do not panic or block", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		d := newTestDispatcher(srv.URL)
		d.DeliverResult(context.Background(), "T1", map[string]string{"a": "b"})

		if calls.Load() != 3 {
			t.Errorf("expected 3 attempts, got %d", calls.Load())
		}
	})
}

func TestDeliverError(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := newTestDispatcher(srv.URL)
	d.DeliverError(context.Background(), "T2", errors.New("all files failed"))

	if got["taskNo"] != "T2" {
		t.Errorf("taskNo = %v", got["taskNo"])
	}
	if got["errorMsg"] != "all files failed" {
		t.Errorf("errorMsg = %v", got["errorMsg"])
	}
	if _, present := got["result"]; present {
		t.Error("error payload should not carry result")
	}
}

func TestDeliverOCRArtifacts(t *testing.T) {
	t.Run("posts minted artifacts", func(t *testing.T) {
		var got map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/ocr" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			body, _ := io.ReadAll(r.Body)
			json.Unmarshal(body, &got)
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		d := newTestDispatcher(srv.URL)
		d.DeliverOCRArtifacts(context.Background(), "T3", []OCRArtifact{
			{FileID: "f1", OCRFileID: "o1"},
		})

		files, ok := got["files"].([]any)
		if !ok || len(files) != 1 {
			t.Fatalf("unexpected files payload: %v", got)
		}
		entry := files[0].(map[string]any)
		if entry["fileId"] != "f1" || entry["ocrFileId"] != "o1" {
			t.Errorf("unexpected artifact: %v", entry)
		}
	})

	t.Run("skips empty artifact list", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
		}))
		defer srv.Close()

		d := newTestDispatcher(srv.URL)
		d.DeliverOCRArtifacts(context.Background(), "T3", nil)

		if calls.Load() != 0 {
			t.Errorf("no request expected for empty artifact list, got %d", calls.Load())
		}
	})
}
