package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"docqa/internal/domain"
	"docqa/internal/service"
)

// Client is a typed wrapper over the service's HTTP API, shared by the
// chat TUI and the bulk ingest tool.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Query asks a question within a session.
func (c *Client) Query(ctx context.Context, query, sessionID string) (*domain.QueryResult, error) {
	body := map[string]any{"query": query, "session_id": sessionID}
	var result domain.QueryResult
	if err := c.postJSON(ctx, "/query", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Upload sends one document for ingestion.
func (c *Client) Upload(ctx context.Context, filename string, data []byte) (*service.IngestResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload-document", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var result service.IngestResult
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Rate submits a 1-5 rating for an interaction.
func (c *Client) Rate(ctx context.Context, interactionID string, rating int) error {
	body := map[string]any{
		"interaction_id": interactionID,
		"feedback_type":  domain.FeedbackRating,
		"feedback_data":  map[string]any{"rating": rating},
	}
	return c.postJSON(ctx, "/feedback", body, nil)
}

// Correct submits a corrected answer for an interaction.
func (c *Client) Correct(ctx context.Context, interactionID, corrected string) error {
	body := map[string]any{
		"interaction_id":   interactionID,
		"feedback_type":    domain.FeedbackCorrection,
		"feedback_data":    map[string]any{},
		"corrected_answer": corrected,
	}
	return c.postJSON(ctx, "/feedback", body, nil)
}

// History fetches the persisted exchanges of a session.
func (c *Client) History(ctx context.Context, sessionID string) ([]domain.Interaction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/conversation-history/"+sessionID, nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		History []domain.Interaction `json:"history"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.History, nil
}

// DeleteDocument removes a document and all its chunks.
func (c *Client) DeleteDocument(ctx context.Context, documentID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/documents/"+documentID, nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// Learn schedules a feedback learning batch on the server.
func (c *Client) Learn(ctx context.Context) error {
	return c.postJSON(ctx, "/learn-from-feedback", nil, nil)
}

// Health reports whether the server answers its health check.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// Metrics fetches the server's state snapshot.
func (c *Client) Metrics(ctx context.Context) (*service.Metrics, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/metrics", nil)
	if err != nil {
		return nil, err
	}
	var m service.Metrics
	if err := c.do(req, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Detail string `json:"detail"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Detail != "" {
			return fmt.Errorf("%s %s: %s (%s)", req.Method, req.URL.Path, resp.Status, apiErr.Detail)
		}
		return fmt.Errorf("%s %s: %s", req.Method, req.URL.Path, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
