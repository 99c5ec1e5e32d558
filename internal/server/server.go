package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"docqa/internal/extract"
	"docqa/internal/learning"
	"docqa/internal/service"
)

// Server exposes the document Q&A service over HTTP/JSON.
type Server struct {
	svc     *service.QAService
	learner *learning.Pipeline
	mux     *http.ServeMux
}

func New(svc *service.QAService, learner *learning.Pipeline) *Server {
	s := &Server{svc: svc, learner: learner, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) routes() {
	s.mux.HandleFunc("POST /upload-document", s.handleUpload)
	s.mux.HandleFunc("POST /query", s.handleQuery)
	s.mux.HandleFunc("POST /feedback", s.handleFeedback)
	s.mux.HandleFunc("GET /conversation-history/{session_id}", s.handleHistory)
	s.mux.HandleFunc("POST /learn-from-feedback", s.handleLearn)
	s.mux.HandleFunc("DELETE /documents/{document_id}", s.handleDeleteDocument)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /metrics", s.handleMetrics)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		fail(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		fail(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		fail(w, http.StatusBadRequest, "reading upload failed")
		return
	}

	result, err := s.svc.IngestDocument(r.Context(), header.Filename, data)
	if err != nil {
		var unsupported *extract.ErrUnsupportedType
		if errors.As(err, &unsupported) {
			fail(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("server: ingest failed: %v", err)
		fail(w, http.StatusInternalServerError, "document processing failed")
		return
	}
	respond(w, http.StatusOK, result)
}

type queryRequest struct {
	Query           string         `json:"query"`
	SessionID       string         `json:"session_id"`
	DocumentFilters map[string]any `json:"document_filters,omitempty"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Query == "" {
		fail(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.SessionID == "" {
		req.SessionID = "default"
	}
	respond(w, http.StatusOK, s.svc.Answer(r.Context(), req.Query, req.SessionID, req.DocumentFilters))
}

type feedbackRequest struct {
	InteractionID   string         `json:"interaction_id"`
	FeedbackType    string         `json:"feedback_type"`
	FeedbackData    map[string]any `json:"feedback_data"`
	CorrectedAnswer string         `json:"corrected_answer,omitempty"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	rating := 0
	if v, ok := req.FeedbackData["rating"]; ok {
		switch n := v.(type) {
		case float64:
			rating = int(n)
		case int:
			rating = n
		}
	}
	if err := s.svc.SubmitFeedback(r.Context(), req.InteractionID, req.FeedbackType, rating, req.CorrectedAnswer); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": "feedback_received"})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	history := s.svc.History(r.Context(), sessionID, 0)
	respond(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"history":    history,
	})
}

func (s *Server) handleLearn(w http.ResponseWriter, _ *http.Request) {
	// The batch can outlive the request; it runs detached with its own
	// deadline.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		report, err := s.learner.ProcessBatch(ctx)
		if err != nil {
			log.Printf("server: learning batch failed: %v", err)
			return
		}
		log.Printf("server: learning batch done: %d processed", report.Processed)
	}()
	respond(w, http.StatusAccepted, map[string]string{"status": "learning_triggered"})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("document_id")
	deleted, err := s.svc.DeleteDocument(r.Context(), documentID)
	if err != nil {
		log.Printf("server: deleting document %s failed: %v", documentID, err)
		fail(w, http.StatusInternalServerError, "document deletion failed")
		return
	}
	if deleted == 0 {
		fail(w, http.StatusNotFound, "document not found")
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"document_id":    documentID,
		"chunks_deleted": deleted,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "document_qa_system",
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, s.svc.Metrics(r.Context()))
}

func respond(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("server: encoding response failed: %v", err)
	}
}

func fail(w http.ResponseWriter, status int, detail string) {
	respond(w, status, map[string]string{"detail": detail})
}
