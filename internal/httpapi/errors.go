package httpapi

import (
	"errors"
	"net/http"

	"github.com/lukasbauer/scribe/internal/audio"
	"github.com/lukasbauer/scribe/internal/llm"
	"github.com/lukasbauer/scribe/internal/session"
	"github.com/lukasbauer/scribe/internal/stt"
	"github.com/lukasbauer/scribe/internal/templates"
)

// ErrorKind names an error class in API responses.
type ErrorKind string

const (
	KindSessionAlreadyActive ErrorKind = "SessionAlreadyActiveError"
	KindNoActiveSession      ErrorKind = "NoActiveSessionError"
	KindDecode               ErrorKind = "DecodeError"
	KindTranscription        ErrorKind = "TranscriptionError"
	KindSummarization        ErrorKind = "SummarizationError"
	KindValidation           ErrorKind = "ValidationError"
	KindModelTimeout         ErrorKind = "ModelTimeoutError"
	KindNotReady             ErrorKind = "NotReadyError"
	KindDraining             ErrorKind = "DrainingError"
	KindUnauthorized         ErrorKind = "UnauthorizedError"
	KindTemplateNotFound     ErrorKind = "TemplateNotFoundError"
	KindTemplateInUse        ErrorKind = "TemplateInUseError"
	KindInternal             ErrorKind = "InternalError"
)

type errorResponse struct {
	Error string    `json:"error"`
	Kind  ErrorKind `json:"kind"`
}

func writeError(w http.ResponseWriter, status int, kind ErrorKind, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Kind: kind})
}

// classify maps a component error to its HTTP status and kind. The timeout
// check runs first because a timed out call also wraps the component error.
func classify(err error) (int, ErrorKind) {
	var (
		decodeErr     *audio.DecodeError
		transcribeErr *stt.TranscriptionError
		summaryErr    *llm.SummarizationError
		validationErr *session.ValidationError
	)
	switch {
	case errors.Is(err, session.ErrModelTimeout):
		return http.StatusGatewayTimeout, KindModelTimeout
	case errors.Is(err, session.ErrSessionAlreadyActive):
		return http.StatusConflict, KindSessionAlreadyActive
	case errors.Is(err, session.ErrNoActiveSession):
		return http.StatusNotFound, KindNoActiveSession
	case errors.Is(err, templates.ErrNotFound):
		return http.StatusNotFound, KindTemplateNotFound
	case errors.Is(err, session.ErrTemplateInUse):
		return http.StatusConflict, KindTemplateInUse
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, KindValidation
	case errors.As(err, &decodeErr):
		return http.StatusUnprocessableEntity, KindDecode
	case errors.As(err, &transcribeErr):
		return http.StatusUnprocessableEntity, KindTranscription
	case errors.As(err, &summaryErr):
		return http.StatusBadGateway, KindSummarization
	default:
		return http.StatusInternalServerError, KindInternal
	}
}

// reportable reports whether an error kind should go to Sentry.
func reportable(status int, kind ErrorKind) bool {
	return status >= 500 || kind == KindTranscription
}

// writeSessionError logs, reports and writes a session store error.
func (r *Router) writeSessionError(w http.ResponseWriter, req *http.Request, op string, err error) {
	status, kind := classify(err)
	if reportable(status, kind) {
		r.logger.Printf("session: %s failed: %v", op, err)
		captureError(req, err, op)
	}
	msg := err.Error()
	if kind == KindInternal {
		msg = "internal server error"
	}
	writeError(w, status, kind, msg)
}
