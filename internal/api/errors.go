package api

import (
	"errors"
	"net/http"

	"github.com/signalsfoundry/assumed-cables/internal/scenario"
)

// Messages returned to clients for failures. Underlying errors are logged,
// never echoed.
const (
	msgRebuildFailed = "assumed cable rebuild failed"
	msgReadFailed    = "assumed cable data unavailable"
)

// StatusFor maps service errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, scenario.ErrRebuildInProgress):
		return http.StatusConflict
	case errors.Is(err, scenario.ErrInvalidVariant):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// clientMessage is the message shown for err; only client errors carry
// their own text.
func clientMessage(err error, fallback string) string {
	switch StatusFor(err) {
	case http.StatusConflict, http.StatusBadRequest:
		return err.Error()
	default:
		return fallback
	}
}
