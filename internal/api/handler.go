package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"triagekit/internal/delivery"
	"triagekit/internal/llm"
	"triagekit/internal/orchestrate"
	"triagekit/internal/parse"
	"triagekit/internal/triage"
)

type Handler struct {
	Service *triage.Service
}

func NewHandler(service *triage.Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/classify", h.handleClassify)
	mux.HandleFunc("/v1/feedback", h.handleFeedback)
	mux.HandleFunc("/healthz", h.handleHealthz)
}

func (h *Handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) handleClassify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Text    string `json:"text"`
		Context string `json:"context"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		http.Error(w, "missing text", http.StatusBadRequest)
		return
	}

	category, err := h.Service.Classify(r.Context(), req.Text, req.Context)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"category": category})
}

func (h *Handler) handleFeedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		Scenario string `json:"scenario"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if len(req.Messages) == 0 {
		http.Error(w, "missing messages", http.StatusBadRequest)
		return
	}
	conv := make([]llm.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		conv = append(conv, llm.Message{Role: m.Role, Content: m.Content})
	}

	fb, err := h.Service.GenerateFeedback(r.Context(), conv, req.Scenario)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"feedback": fb.Items,
		"scores":   fb.Scores,
		"raw":      fb.Raw,
	})
}

// writeFailure maps pipeline errors onto status codes: unclassifiable
// input is the caller's problem, exhausted providers and blown retry
// budgets are upstream failures.
func writeFailure(w http.ResponseWriter, err error) {
	var noMatch *parse.NoMatchError
	if errors.As(err, &noMatch) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": "no category match",
			"raw":   noMatch.Raw,
		})
		return
	}
	var exhausted *delivery.ExhaustedError
	var generation *orchestrate.GenerationError
	if errors.As(err, &exhausted) || errors.As(err, &generation) {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
