package api

import (
	"net/http"

	"github.com/sqlassist/sqlassist/internal/assistant"
	"github.com/sqlassist/sqlassist/internal/observability"
)

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Session == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "chat session is not configured", false, nil)
		return
	}

	desc, err := deps.Session.Schema(r.Context())
	response := map[string]any{
		"tables":          desc.Tables,
		"text":            desc.String(),
		"fallback":        err != nil,
		"sample_commands": assistant.SampleCommands,
		"read_only":       deps.Session.ReadOnly(),
	}
	if err != nil {
		observability.IncrementSchemaFallback()
		response["fallback_reason"] = err.Error()
	}
	writeJSON(w, http.StatusOK, response)
}

func handleHistory(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Session == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "HISTORY_NOT_CONFIGURED", "chat session is not configured", false, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": deps.Session.ID(),
		"turns":      deps.Session.History(),
	})
}
