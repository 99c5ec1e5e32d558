package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	t.Setenv("TEST_API_KEY", "sk-test")
	c, err := NewClient(Config{
		BaseURL:   url,
		APIKeyEnv: "TEST_API_KEY",
		Model:     "test-model",
		Timeout:   5 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestEmbed_OpenAIResponseShape(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	vec, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != 3 || vec[1] != 0.2 {
		t.Fatalf("vec = %v", vec)
	}
	if c.Dimension() != 3 {
		t.Fatalf("dimension = %d", c.Dimension())
	}
}

func TestEmbed_OllamaResponseShape(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"embedding":[1,2,3,4]}`))
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	vec, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != 4 {
		t.Fatalf("vec = %v", vec)
	}
	if c.Dimension() != 4 {
		t.Fatalf("dimension = %d", c.Dimension())
	}
}

// Run with -race: Dimension may be read while a first Embed is still
// recording the vector size.
func TestEmbed_ConcurrentDimensionReads(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"data":[{"embedding":[0.5,0.5]}]}`))
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Embed(context.Background(), "hello"); err != nil {
				t.Error(err)
			}
			_ = c.Dimension()
		}()
	}
	wg.Wait()
	if c.Dimension() != 2 {
		t.Fatalf("dimension = %d", c.Dimension())
	}
}

func TestEmbed_ExhaustedRetriesFailFast(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	c.maxRetries = 0

	start := time.Now()
	_, err := c.Embed(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	// The final attempt must not honor Retry-After before giving up.
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("terminal failure slept %v", elapsed)
	}
}
