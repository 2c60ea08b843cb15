package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	chatService "github.com/driroane/llamachat/internal/service/chat"
	"github.com/driroane/llamachat/internal/service/inference"
	"github.com/driroane/llamachat/internal/service/prompt"
	"github.com/driroane/llamachat/pkg/utils"
)

// Handler exposes the chat orchestrator over HTTP.
type Handler struct {
	chatSvc *chatService.Service
}

func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes mounts the chat endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Get("/chat/stream", h.handleChatStream)
	r.Get("/session/{sessionID}/transcript", h.handleTranscript)
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	MaxTokens int    `json:"max_tokens"`
}

type chatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload chatRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, err := h.chatSvc.HandleChat(r.Context(), payload.SessionID, payload.Message, payload.MaxTokens)
	if err != nil {
		respondChatError(w, r.Context(), err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, chatResponse{
		Response:  reply.Response,
		SessionID: reply.SessionID,
	})
}

// streamEvent is one SSE frame of the streaming chat variant.
type streamEvent struct {
	Event     string `json:"event"`
	Content   string `json:"content,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (h *Handler) handleChatStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	message := r.URL.Query().Get("message")
	sessionID := r.URL.Query().Get("session_id")
	maxTokens := 0
	if raw := r.URL.Query().Get("max_tokens"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			utils.RespondError(w, http.StatusBadRequest, "invalid max_tokens value")
			return
		}
		maxTokens = parsed
	}

	utils.SetupSSEHeaders(w)
	utils.SendSSEChunk(w, flusher, streamEvent{Event: "start", SessionID: sessionID})

	reply, err := h.chatSvc.HandleChatStream(r.Context(), sessionID, message, maxTokens, func(delta string) {
		utils.SendSSEChunk(w, flusher, streamEvent{Event: "chunk", Content: delta})
	})
	if err != nil {
		utils.SendSSEChunk(w, flusher, streamEvent{Event: "error", Error: userFacingMessage(err)})
		return
	}

	utils.SendSSEChunk(w, flusher, streamEvent{
		Event:     "done",
		SessionID: reply.SessionID,
		Finished:  true,
	})
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	turns, err := h.chatSvc.Transcript(sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"turns":      turns,
	})
}

// respondChatError maps the failure taxonomy onto HTTP statuses. Every
// failure yields a body the front-end can display; none of them ends
// the session.
func respondChatError(w http.ResponseWriter, ctx context.Context, err error) {
	if ctx.Err() == context.Canceled {
		// Client went away; nothing useful to write.
		return
	}
	utils.RespondError(w, statusFor(err), userFacingMessage(err))
}

func statusFor(err error) int {
	var backendErr *inference.BackendError
	switch {
	case errors.Is(err, chatService.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, prompt.ErrContextOverflow):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, inference.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, inference.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &backendErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func userFacingMessage(err error) string {
	var backendErr *inference.BackendError
	switch {
	case errors.Is(err, chatService.ErrEmptyMessage):
		return "message must not be empty"
	case errors.Is(err, prompt.ErrContextOverflow):
		return "message is too long for the model's context window"
	case errors.Is(err, inference.ErrTimeout):
		return "the model took too long to respond, please try again"
	case errors.Is(err, inference.ErrBackendUnavailable):
		return "the model server is unreachable, please try again later"
	case errors.As(err, &backendErr):
		return "the model server failed to generate a response"
	default:
		return "internal server error"
	}
}
