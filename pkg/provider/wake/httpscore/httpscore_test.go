package httpscore

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fantasma-ai/fantasma/pkg/audio"
)

func testFrame() audio.Frame {
	return audio.Frame{PCM: []int16{100, -100, 200, -200}, SampleRate: 16000}
}

func TestScorePostsFrameAndParsesScore(t *testing.T) {
	var gotBody []byte
	var gotRate string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/score" {
			t.Errorf("request = %s %s, want POST /score", r.Method, r.URL.Path)
		}
		gotBody, _ = io.ReadAll(r.Body)
		gotRate = r.Header.Get("X-Sample-Rate")
		w.Write([]byte(`{"score": 0.87}`))
	}))
	defer srv.Close()

	s := New(srv.URL)
	score, err := s.Score(context.Background(), testFrame())
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if score != 0.87 {
		t.Fatalf("Score() = %v, want 0.87", score)
	}
	if len(gotBody) != 8 {
		t.Fatalf("posted body length = %d, want 8", len(gotBody))
	}
	if gotRate != "16000" {
		t.Fatalf("X-Sample-Rate = %q, want 16000", gotRate)
	}
}

func TestScoreRejectsOutOfRangeScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"score": 1.5}`))
	}))
	defer srv.Close()

	if _, err := New(srv.URL).Score(context.Background(), testFrame()); err == nil {
		t.Fatal("Score() accepted out-of-range value")
	}
}

func TestScoreReportsSidecarErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := New(srv.URL).Score(context.Background(), testFrame()); err == nil {
		t.Fatal("Score() ignored a 503 from the sidecar")
	}
}

func TestReset(t *testing.T) {
	var resetCalled bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/reset" {
			resetCalled = true
			w.WriteHeader(http.StatusNoContent)
			return
		}
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
	}))
	defer srv.Close()

	if err := New(srv.URL).Reset(context.Background()); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if !resetCalled {
		t.Fatal("Reset() never reached the sidecar")
	}
}
