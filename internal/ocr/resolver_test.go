package ocr

import (
	"context"
	"fmt"
	"testing"

	"github.com/docfield/docfield/internal/filecenter"
	"github.com/docfield/docfield/internal/providers"
)

// fakeStore is an in-memory FileStore.
type fakeStore struct {
	names     map[string]string // fileID -> name
	contents  map[string][]byte // fileID -> bytes
	uploads   map[string][]byte // minted id -> bytes
	nextID    int
	downloads []string
	failDL    map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		names:    make(map[string]string),
		contents: make(map[string][]byte),
		uploads:  make(map[string][]byte),
		failDL:   make(map[string]bool),
	}
}

func (s *fakeStore) put(id, name string, content []byte) {
	s.names[id] = name
	s.contents[id] = content
}

func (s *fakeStore) GetFilesInfo(_ context.Context, ids []string) ([]filecenter.FileInfo, error) {
	var infos []filecenter.FileInfo
	for _, id := range ids {
		if name, ok := s.names[id]; ok {
			infos = append(infos, filecenter.FileInfo{ID: id, Name: name})
		}
	}
	return infos, nil
}

func (s *fakeStore) Download(_ context.Context, id string) ([]byte, error) {
	s.downloads = append(s.downloads, id)
	if s.failDL[id] {
		return nil, fmt.Errorf("simulated download failure for %s", id)
	}
	content, ok := s.contents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", filecenter.ErrNotFound, id)
	}
	return content, nil
}

func (s *fakeStore) Upload(_ context.Context, name string, content []byte) (string, error) {
	s.nextID++
	id := fmt.Sprintf("minted-%d", s.nextID)
	s.uploads[id] = content
	s.names[id] = name
	s.contents[id] = content
	return id, nil
}

func TestResolveCacheHit(t *testing.T) {
	t.Run("returns cached text without invoking ocr", func(t *testing.T) {
		store := newFakeStore()
		store.put("o1", "f1_ocr.txt", []byte("cached text"))
		mock := providers.NewMockOCRProvider()
		r := NewResolver(store, mock, nil)

		res, err := r.Resolve(context.Background(), "f1", "o1")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if res.Text != "cached text" || res.OCRFileID != "o1" || res.Fresh {
			t.Errorf("Resolve() = %+v", res)
		}
		if mock.Requests() != 0 {
			t.Errorf("ocr invoked %d times for cache hit, want 0", mock.Requests())
		}
	})

	t.Run("cache retrieval failure never falls back to ocr", func(t *testing.T) {
		store := newFakeStore()
		store.put("o1", "f1_ocr.txt", []byte("cached"))
		store.failDL["o1"] = true
		mock := providers.NewMockOCRProvider()
		r := NewResolver(store, mock, nil)

		if _, err := r.Resolve(context.Background(), "f1", "o1"); err == nil {
			t.Fatal("expected error when cached artifact fetch fails")
		}
		if mock.Requests() != 0 {
			t.Errorf("ocr invoked %d times after cache failure, want 0", mock.Requests())
		}
	})
}

func TestResolveCacheMiss(t *testing.T) {
	t.Run("runs ocr and mints artifact", func(t *testing.T) {
		store := newFakeStore()
		store.put("f1", "contract.png", []byte("image bytes"))
		mock := providers.NewMockOCRProvider()
		mock.Text = "recognized text"
		r := NewResolver(store, mock, nil)

		res, err := r.Resolve(context.Background(), "f1", "")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if !res.Fresh {
			t.Error("expected fresh resolution")
		}
		if res.Text != "recognized text" {
			t.Errorf("Text = %q", res.Text)
		}
		if string(store.uploads[res.OCRFileID]) != "recognized text" {
			t.Errorf("artifact not uploaded under %s", res.OCRFileID)
		}
		if mock.Requests() != 1 {
			t.Errorf("ocr invoked %d times, want 1", mock.Requests())
		}
	})

	t.Run("unknown file id is terminal", func(t *testing.T) {
		r := NewResolver(newFakeStore(), providers.NewMockOCRProvider(), nil)
		if _, err := r.Resolve(context.Background(), "missing", ""); err == nil {
			t.Fatal("expected error for unknown file")
		}
	})

	t.Run("unsupported extension is terminal", func(t *testing.T) {
		store := newFakeStore()
		store.put("f1", "archive.rar", []byte("zip bytes"))
		mock := providers.NewMockOCRProvider()
		r := NewResolver(store, mock, nil)

		if _, err := r.Resolve(context.Background(), "f1", ""); err == nil {
			t.Fatal("expected error for unsupported extension")
		}
		if mock.Requests() != 0 {
			t.Error("ocr must not run for rejected file types")
		}
	})

	t.Run("corrupt pdf is terminal", func(t *testing.T) {
		store := newFakeStore()
		store.put("f1", "contract.pdf", []byte("not a pdf"))
		r := NewResolver(store, providers.NewMockOCRProvider(), nil)

		if _, err := r.Resolve(context.Background(), "f1", ""); err == nil {
			t.Fatal("expected error for corrupt pdf")
		}
	})

	t.Run("empty ocr text is terminal", func(t *testing.T) {
		store := newFakeStore()
		store.put("f1", "scan.jpg", []byte("image"))
		mock := providers.NewMockOCRProvider()
		mock.Text = "   "
		r := NewResolver(store, mock, nil)

		if _, err := r.Resolve(context.Background(), "f1", ""); err == nil {
			t.Fatal("expected error for empty ocr output")
		}
	})
}
