package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/pliu/dmchat/internal/common"
	"github.com/pliu/dmchat/internal/logging"
)

// maxBodyBytes caps JSON request bodies. Inline base64 images fit well
// within it.
const maxBodyBytes = 7 << 20

var errBodyTooLarge = fmt.Errorf("request body exceeds %d bytes", maxBodyBytes)

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, messageResponse{Message: msg})
}

// statusFor maps a core error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, common.ErrValidation), errors.Is(err, common.ErrInvalidTransition):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrUnauthorized), errors.Is(err, common.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports err to the requesting client only. Server-side failures
// are logged and their detail withheld.
func writeError(w http.ResponseWriter, r *http.Request, logger logging.Logger, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		logger.Error(r.Context(), "Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeMessage(w, code, "Internal server error")
		return
	}
	writeMessage(w, code, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errBodyTooLarge
		}
		return common.Validationf("invalid request body")
	}
	return nil
}
