package calendar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchOneFetchesFreshBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"abc"`)
		w.Write([]byte(singleEventICS))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	res, err := f.FetchOne(context.Background(), Source{ID: "s1", URL: srv.URL})
	if err != nil {
		t.Fatalf("FetchOne: %v", err)
	}
	if res.FromCache {
		t.Errorf("first fetch reported FromCache = true")
	}
	if string(res.Body) != singleEventICS {
		t.Errorf("Body mismatch")
	}
}

func TestFetchOneUsesCacheOn304(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("ETag", `"abc"`)
			w.Write([]byte(singleEventICS))
			return
		}
		if r.Header.Get("If-None-Match") != `"abc"` {
			t.Errorf("second request did not send the cached ETag")
		}
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	src := Source{ID: "s1", URL: srv.URL}

	if _, err := f.FetchOne(context.Background(), src); err != nil {
		t.Fatalf("first FetchOne: %v", err)
	}
	res, err := f.FetchOne(context.Background(), src)
	if err != nil {
		t.Fatalf("second FetchOne: %v", err)
	}
	if !res.FromCache {
		t.Errorf("304 response did not report FromCache = true")
	}
	if string(res.Body) != singleEventICS {
		t.Errorf("cached body mismatch")
	}
}

func TestFetchOneFallsBackToCacheOnServerError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Write([]byte(singleEventICS))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	src := Source{ID: "s1", URL: srv.URL}

	if _, err := f.FetchOne(context.Background(), src); err != nil {
		t.Fatalf("first FetchOne: %v", err)
	}
	res, err := f.FetchOne(context.Background(), src)
	if err != nil {
		t.Fatalf("second FetchOne should fall back to cache, got error: %v", err)
	}
	if !res.FromCache {
		t.Errorf("error response did not fall back to cache")
	}
}

func TestFetchOneRejectsEmptyURL(t *testing.T) {
	f := NewFetcher(t.TempDir())
	if _, err := f.FetchOne(context.Background(), Source{ID: "s1"}); err == nil {
		t.Fatalf("FetchOne with empty URL should fail")
	}
}

func TestFetchAllCollectsErrorsAndResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(singleEventICS))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	sources := []Source{
		{ID: "ok", URL: srv.URL},
		{ID: "bad"},
	}
	results, errs := f.FetchAll(context.Background(), sources)
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if len(errs) != 1 {
		t.Fatalf("len(errs) = %d, want 1", len(errs))
	}
}
