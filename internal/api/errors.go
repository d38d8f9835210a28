package api

import (
	"errors"
	"net/http"

	"github.com/keagan/capforge/internal/editor"
	"github.com/keagan/capforge/internal/media"
)

// statusFor maps pipeline and editor errors to an HTTP status and code
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, editor.ErrBusy):
		return http.StatusConflict, "BUSY"
	case errors.Is(err, editor.ErrIndex):
		return http.StatusBadRequest, "INVALID_INDEX"
	case errors.Is(err, media.ErrEmptyTimeline):
		return http.StatusBadRequest, "EMPTY_TIMELINE"
	case errors.Is(err, media.ErrInvalidConfig):
		return http.StatusBadRequest, "INVALID_CONFIG"
	case errors.Is(err, media.ErrSourceUnreadable):
		return http.StatusUnprocessableEntity, "SOURCE_UNREADABLE"
	case errors.Is(err, media.ErrEncodeFailure):
		return http.StatusInternalServerError, "ENCODE_FAILURE"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func writeErr(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	WriteError(w, status, err.Error(), code)
}
