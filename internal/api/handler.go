// Package api exposes the session controller over HTTP and WebSocket.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/loqalabs/loqa-translate/internal/audio"
	"github.com/loqalabs/loqa-translate/internal/eventstore"
	"github.com/loqalabs/loqa-translate/internal/session"
)

const (
	maxBodyBytes      = 64 << 10
	defaultEventLimit = 100
	maxEventLimit     = 1000
)

// Session is the controller surface the HTTP handlers use.
type Session interface {
	State() session.State
	Subscribe(l session.Listener) func()
	SetLanguage(role session.Role, code string) error
	SetInputText(text string)
	Translate() error
	StartCapture() error
	StopCapture() error
	SpeakOriginal() error
	TogglePlayback() bool
}

// Timeline lists recorded session events. *eventstore.Store satisfies it.
type Timeline interface {
	ListSessionEvents(ctx context.Context, sessionID string, limit int) ([]eventstore.Event, error)
}

type Handler struct {
	sess     Session
	audio    *audio.Store
	timeline Timeline
	origins  []string
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewHandler serves sess. A nil timeline answers GET /session/events with an
// empty list.
func NewHandler(sess Session, store *audio.Store, timeline Timeline, allowedOrigins []string, logger *slog.Logger) *Handler {
	h := &Handler{
		sess:     sess,
		audio:    store,
		timeline: timeline,
		origins:  allowedOrigins,
		logger:   logger.With(slog.String("component", "api")),
	}
	h.upgrader = newUpgrader(allowedOrigins)
	return h
}

// NewRouter returns a chi router with CORS and panic recovery that serves the
// session and audio routes.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	RegisterRoutes(r, h)
	return r
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Route("/session", func(sr chi.Router) {
		sr.Get("/", h.GetState)
		sr.Put("/language", h.SetLanguage)
		sr.Put("/input", h.SetInput)
		sr.Post("/translate", h.Translate)
		sr.Post("/capture/start", h.StartCapture)
		sr.Post("/capture/stop", h.StopCapture)
		sr.Post("/speak-original", h.SpeakOriginal)
		sr.Post("/playback/toggle", h.TogglePlayback)
		sr.Get("/events", h.ListEvents)
		sr.Get("/ws", h.Stream)
	})
	r.Get("/audio/{id}", h.GetAudio)
}

func (h *Handler) GetState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.sess.State())
}

func (h *Handler) SetLanguage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role string `json:"role"`
		Code string `json:"code"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.sess.SetLanguage(session.Role(req.Role), req.Code); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.sess.State())
}

func (h *Handler) SetInput(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text *string `json:"text"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Text == nil {
		http.Error(w, "missing text", http.StatusBadRequest)
		return
	}
	h.sess.SetInputText(*req.Text)
	writeJSON(w, http.StatusOK, h.sess.State())
}

// Translate answers 202: the translation completes in the background and the
// result arrives through GET /session or the WebSocket stream.
func (h *Handler) Translate(w http.ResponseWriter, _ *http.Request) {
	h.accepted(w, h.sess.Translate())
}

func (h *Handler) StartCapture(w http.ResponseWriter, _ *http.Request) {
	if err := h.sess.StartCapture(); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.sess.State())
}

func (h *Handler) StopCapture(w http.ResponseWriter, _ *http.Request) {
	h.accepted(w, h.sess.StopCapture())
}

func (h *Handler) SpeakOriginal(w http.ResponseWriter, _ *http.Request) {
	h.accepted(w, h.sess.SpeakOriginal())
}

func (h *Handler) TogglePlayback(w http.ResponseWriter, _ *http.Request) {
	h.sess.TogglePlayback()
	writeJSON(w, http.StatusOK, h.sess.State())
}

// ListEvents returns the oldest events of the session timeline, up to ?limit.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxEventLimit {
			http.Error(w, "limit must be between 1 and "+strconv.Itoa(maxEventLimit), http.StatusBadRequest)
			return
		}
		limit = n
	}

	sessionID := h.sess.State().SessionID
	events := []eventstore.Event{}
	if h.timeline != nil {
		list, err := h.timeline.ListSessionEvents(r.Context(), sessionID, limit)
		if err != nil {
			h.writeError(w, err)
			return
		}
		if list != nil {
			events = list
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"events":     events,
	})
}

func (h *Handler) GetAudio(w http.ResponseWriter, r *http.Request) {
	clip, err := h.audio.Get(chi.URLParam(r, "id"))
	if errors.Is(err, audio.ErrNotFound) {
		http.Error(w, "audio not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", clip.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(clip.Data)))
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(clip.Data)
}

func (h *Handler) accepted(w http.ResponseWriter, err error) {
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, h.sess.State())
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Warn("request failed", slog.String("error", err.Error()))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrUnsupportedLanguage), errors.Is(err, session.ErrUnknownRole):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrCaptureUnavailable),
		errors.Is(err, session.ErrAlreadyRecording),
		errors.Is(err, session.ErrNotRecording),
		errors.Is(err, session.ErrEmptyInput),
		errors.Is(err, session.ErrClosed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "failed to read body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
