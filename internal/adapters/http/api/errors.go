package api

import (
	"errors"
	"net/http"

	"github.com/okian/breakfast/internal/adapters/advisor"
	"github.com/okian/breakfast/internal/adapters/notify"
	"github.com/okian/breakfast/internal/domain/model"
	"github.com/okian/breakfast/internal/domain/selector"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest  = errors.New("bad request")
	ErrRateLimited = errors.New("too many requests, slow down")
)

// KindError tags an error with the handler that produced it and a sentinel
// kind that decides the response status.
type KindError struct {
	Op   string
	Kind error
	Err  error
}

func (e *KindError) Error() string {
	switch {
	case e.Kind != nil && e.Err != nil:
		return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
	case e.Kind != nil:
		return e.Op + ": " + e.Kind.Error()
	case e.Err != nil:
		return e.Op + ": " + e.Err.Error()
	default:
		return e.Op
	}
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *KindError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// NewKind returns an error of kind raised by op.
func NewKind(op string, kind error) error {
	return &KindError{Op: op, Kind: kind}
}

// Wrap annotates err with op.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &KindError{Op: op, Err: err}
}

// WrapKind annotates err with op and kind.
func WrapKind(op string, kind, err error) error {
	return &KindError{Op: op, Kind: kind, Err: err}
}

// classify maps an error to its status, machine code and user message.
func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, selector.ErrEmptyCatalog):
		return http.StatusNotFound, "empty_catalog", "No recipes available"
	case errors.Is(err, model.ErrStepNotFound):
		return http.StatusNotFound, "not_found", "Recipe or step not found"
	case errors.Is(err, model.ErrRecipeNotFound):
		return http.StatusNotFound, "not_found", "Recipe not found"
	case errors.Is(err, model.ErrConcurrentConfirmation):
		return http.StatusConflict, "conflict", "Another confirmation for this date is in progress, please retry"
	case errors.Is(err, model.ErrInvalidDate):
		return http.StatusBadRequest, "invalid_date", "Invalid date, expected YYYY-MM-DD"
	case errors.Is(err, ErrBadRequest), errors.Is(err, advisor.ErrEmptyInput):
		return http.StatusBadRequest, "bad_request", "Invalid request"
	case errors.Is(err, advisor.ErrUnrecognized):
		return http.StatusUnprocessableEntity, "unrecognized", "无法识别食谱内容"
	case errors.Is(err, advisor.ErrVisionUnavailable):
		return http.StatusServiceUnavailable, "vision_unavailable", "图片识别需要配置 OpenAI API 密钥"
	case errors.Is(err, advisor.ErrNotConfigured):
		return http.StatusServiceUnavailable, "ai_unavailable", "AI服务未配置"
	case errors.Is(err, notify.ErrNoChannels):
		return http.StatusServiceUnavailable, "notify_unavailable", "No notification channel configured"
	case errors.Is(err, model.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable", "Storage is unavailable"
	case advisor.IsUpstream(err):
		return http.StatusBadGateway, "upstream_error", "AI provider request failed"
	default:
		return http.StatusInternalServerError, "internal_error", http.StatusText(http.StatusInternalServerError)
	}
}
