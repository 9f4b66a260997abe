package api

import (
	"net/http"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxPromptChars rejects oversized inputs before the pipeline runs.
const maxPromptChars = 50000

// handleCheck implements POST /check. Validation failures are the only
// client-visible errors here: once the input is accepted, the pipeline
// always produces a verdict (oracle failures fail open inside the engine).
func (d *Dependencies) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.Prompt == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "prompt is required"})
		return
	}
	if utf8.RuneCountInString(req.Prompt) > maxPromptChars {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResp{Detail: "prompt exceeds maximum length"})
		return
	}

	// Opaque correlation token, never derived from content.
	requestID := uuid.New().String()[:8]

	if req.Context != "" {
		d.Logger.Debug("check request context",
			zap.String("request_id", requestID),
			zap.String("context", req.Context),
		)
	}

	verdict := d.Engine.Check(r.Context(), req.Prompt)

	writeJSON(w, http.StatusOK, CheckResponse{
		Result:    verdict,
		RequestID: requestID,
	})
}
