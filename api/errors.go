package api

import (
	"errors"
	"net/http"

	"github.com/poiesic/harvest/chat"
	"github.com/poiesic/harvest/core"
	"github.com/poiesic/harvest/index"
	"github.com/poiesic/harvest/ingestion"
	"github.com/poiesic/harvest/loader"
	"github.com/poiesic/harvest/search"
	"github.com/poiesic/harvest/storage"
)

// ErrOwnerRequired is returned for /api requests without an owner header.
var ErrOwnerRequired = errors.New("X-Harvest-Owner header is required")

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// classify maps an error to an HTTP status and a stable error code.
// Not-found checks run before the not-ready check because a missing
// database wraps both.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrOwnerRequired), core.IsValidationError(err),
		errors.Is(err, loader.ErrUnsupportedType), errors.Is(err, loader.ErrEmptyFile):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, loader.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, "too_large"
	case errors.Is(err, ingestion.ErrJobNotFound), errors.Is(err, ingestion.ErrDatabaseNotFound),
		errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ingestion.ErrJobAlreadyStarted), errors.Is(err, ingestion.ErrJobRunning),
		errors.Is(err, ingestion.ErrTaskInFlight), errors.Is(err, search.ErrDatabaseNotReady),
		errors.Is(err, storage.ErrConflict), errors.Is(err, storage.ErrDuplicateKey):
		return http.StatusConflict, "conflict"
	case errors.Is(err, index.ErrQuotaExceeded):
		return http.StatusInsufficientStorage, "quota_exceeded"
	case errors.Is(err, ingestion.ErrExecutorClosed), errors.Is(err, chat.ErrSessionsDisabled):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
