// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dailymoji Contributors

package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/samber/oops"

	"github.com/dailymoji/dailymoji/internal/play"
	"github.com/dailymoji/dailymoji/pkg/errutil"
)

// KindBadRequest reports malformed input. It is not a play.Kind because the
// session layer never sees such requests.
const KindBadRequest = "BadRequest"

// inputError is a request validation failure; its message is shown to the caller.
type inputError struct {
	msg string
}

func (e *inputError) Error() string { return e.msg }

func badRequest(code, format string, args ...any) error {
	return oops.Code(code).Wrap(&inputError{msg: fmt.Sprintf(format, args...)})
}

// envelope is the body of every API response.
type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// publicMessages hides internal detail for kinds whose cause is not the caller's fault.
var publicMessages = map[play.Kind]string{
	play.KindNotAuthenticated: "player identity required",
	play.KindAlreadySolved:    "puzzle already solved",
	play.KindNotFound:         "not found",
	play.KindStoreUnavailable: "service temporarily unavailable, retry later",
	play.KindInternal:         "internal error",
}

func statusOf(kind string) int {
	switch kind {
	case KindBadRequest:
		return http.StatusBadRequest
	case string(play.KindNotAuthenticated):
		return http.StatusUnauthorized
	case string(play.KindNotFound):
		return http.StatusNotFound
	case string(play.KindAlreadySolved), string(play.KindInvalidState):
		return http.StatusConflict
	case string(play.KindStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// invalidStateMessages refine InvalidState by error code.
var invalidStateMessages = map[string]string{
	"PLAY_NO_SESSION":      "puzzle not started",
	"PLAY_HINTS_EXHAUSTED": "no hints left",
}

// describe maps err to the kind and message sent to the client.
func describe(err error) (kind, message string) {
	var input *inputError
	if errors.As(err, &input) {
		return KindBadRequest, input.msg
	}
	k := play.KindOf(err)
	if k == play.KindInvalidState {
		if msg, ok := invalidStateMessages[errutil.Code(err)]; ok {
			return string(k), msg
		}
		return string(k), "invalid session state"
	}
	return string(k), publicMessages[k]
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Debug("failed to write response", "error", err)
	}
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	kind, message := describe(err)
	status := statusOf(kind)
	if status >= http.StatusInternalServerError {
		errutil.LogErrorContext(r.Context(), logger, "request failed", err,
			"method", r.Method, "path", r.URL.Path, "status", status)
	} else {
		logger.DebugContext(r.Context(), "request rejected",
			append(errutil.Attrs(err), "method", r.Method, "path", r.URL.Path, "status", status)...)
	}
	writeJSON(w, status, envelope{Error: &errorBody{Kind: kind, Message: message}})
}
