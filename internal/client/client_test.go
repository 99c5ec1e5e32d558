package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"docqa/internal/domain"
)

func TestQuery(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/query" || r.Method != http.MethodPost {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if req["session_id"] != "s1" {
			t.Errorf("session_id = %v", req["session_id"])
		}
		json.NewEncoder(w).Encode(domain.QueryResult{
			Answer:        "Fifteen days.",
			Confidence:    0.9,
			InteractionID: "i1",
		})
	}))
	defer ts.Close()

	c := New(ts.URL, 5*time.Second)
	res, err := c.Query(context.Background(), "How many days?", "s1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Answer != "Fifteen days." || res.InteractionID != "i1" {
		t.Fatalf("result = %+v", res)
	}
}

func TestErrorDetailSurfaces(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"detail": "query is required"})
	}))
	defer ts.Close()

	c := New(ts.URL, 5*time.Second)
	_, err := c.Query(context.Background(), "", "s1")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "query is required") {
		t.Fatalf("detail lost: %v", err)
	}
}

func TestRatePostsFeedback(t *testing.T) {
	var got map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/feedback" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer ts.Close()

	c := New(ts.URL, 5*time.Second)
	if err := c.Rate(context.Background(), "i1", 5); err != nil {
		t.Fatal(err)
	}
	if got["feedback_type"] != "rating" || got["interaction_id"] != "i1" {
		t.Fatalf("body = %+v", got)
	}
	data, ok := got["feedback_data"].(map[string]any)
	if !ok || data["rating"] != float64(5) {
		t.Fatalf("feedback_data = %+v", got["feedback_data"])
	}
}
