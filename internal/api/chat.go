package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/sqlassist/sqlassist/internal/assistant"
	"github.com/sqlassist/sqlassist/internal/observability"
)

type chatRequest struct {
	Message string `json:"message"`
}

func handleChat(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Session == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CHAT_NOT_CONFIGURED", "chat session is not configured", false, nil)
		return
	}

	var req chatRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid chat request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "MESSAGE_REQUIRED", "message is required", false, nil)
		return
	}
	if !deps.Session.HasTranslator() {
		writeError(r.Context(), w, http.StatusPreconditionFailed, "CREDENTIAL_REQUIRED", "language model api key is not configured", false, nil)
		return
	}

	stream, _ := strconv.ParseBool(r.URL.Query().Get("stream"))
	flusher, canFlush := w.(http.Flusher)
	if !stream || !canFlush {
		reply, err := deps.Session.Handle(r.Context(), req.Message, nil)
		if err != nil {
			writeChatError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, chatResponse(deps, reply))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	reply, err := deps.Session.Handle(r.Context(), req.Message, func(delta string) {
		writeEvent(w, "delta", map[string]string{"text": delta})
		flusher.Flush()
	})
	if err != nil {
		writeEvent(w, "error", map[string]any{
			"error_code": chatErrorCode(err),
			"message":    err.Error(),
			"trace_id":   observability.TraceIDFromContext(r.Context()),
		})
		flusher.Flush()
		return
	}
	writeEvent(w, "reply", chatResponse(deps, reply))
	flusher.Flush()
}

func chatResponse(deps Dependencies, reply assistant.Reply) map[string]any {
	response := map[string]any{
		"session_id": deps.Session.ID(),
		"outcome":    reply.Outcome,
		"user":       reply.User,
		"assistant":  reply.Assistant,
		"decision":   reply.Decision,
	}
	if reply.SQL != "" {
		response["sql"] = reply.SQL
	}
	if reply.Result != nil {
		response["result"] = reply.Result
	}
	if reply.Fallback {
		response["schema_fallback"] = true
	}
	return response
}

func writeChatError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, assistant.ErrEmptyInput) {
		writeError(r.Context(), w, http.StatusBadRequest, chatErrorCode(err), err.Error(), false, nil)
		return
	}
	writeError(r.Context(), w, http.StatusInternalServerError, chatErrorCode(err), err.Error(), true, nil)
}

func chatErrorCode(err error) string {
	if errors.Is(err, assistant.ErrEmptyInput) {
		return "MESSAGE_REQUIRED"
	}
	return "CHAT_FAILED"
}

func writeEvent(w http.ResponseWriter, event string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		body = []byte(`{}`)
	}
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, body)
}
