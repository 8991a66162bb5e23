package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"servizephyr/internal/model"

	"github.com/go-playground/validator"
	"github.com/rs/zerolog"
)

// inProgressRetryAfter is the Retry-After sent while a duplicate request is
// still being processed.
const inProgressRetryAfter = 2 * time.Second

var validate = validator.New()

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but don't expose it to the client
		return
	}
}

// writeRaw writes a pre-encoded JSON body.
func writeRaw(w http.ResponseWriter, status int, body json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeError writes an error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, code, message string, logger zerolog.Logger) {
	logger.Error().Str("error", message).Str("code", code).Int("status", status).Msg("handler error")
	writeJSON(w, status, model.ErrorResponse{Error: code, Message: message})
}

// writeDomainError maps err to a status code by its kind. Anything that is
// not a DomainError is reported as an internal error without its message.
func writeDomainError(w http.ResponseWriter, err error, logger zerolog.Logger) {
	var de *model.DomainError
	if !errors.As(err, &de) {
		logger.Error().Err(err).Msg("unhandled error")
		writeJSON(w, http.StatusInternalServerError, model.ErrorResponse{
			Error:   model.ErrCodeInternalError,
			Message: "internal server error",
		})
		return
	}

	status := statusFor(de)
	switch de.Kind {
	case model.KindInProgress:
		w.Header().Set("Retry-After", strconv.Itoa(int(inProgressRetryAfter.Seconds())))
	case model.KindRateLimited:
		w.Header().Set("Retry-After", strconv.Itoa(secondsToNextMinute(time.Now())))
	}

	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("code", de.Code).Int("status", status).Msg("request failed")
	} else {
		logger.Warn().Str("code", de.Code).Int("status", status).Msg(de.Message)
	}
	writeJSON(w, status, model.ErrorResponse{Error: de.Code, Message: de.Message})
}

func statusFor(de *model.DomainError) int {
	switch de.Kind {
	case model.KindValidation:
		if de.Code == model.ErrCodeIdempotencyKeyReused {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadRequest
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindForbidden:
		if de.Code == model.ErrCodeUnauthorised {
			return http.StatusUnauthorized
		}
		return http.StatusForbidden
	case model.KindInvalidState:
		return http.StatusBadRequest
	case model.KindConflict, model.KindInProgress:
		return http.StatusConflict
	case model.KindRateLimited:
		return http.StatusTooManyRequests
	case model.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func secondsToNextMinute(now time.Time) int {
	s := 60 - now.Second()
	if s <= 0 {
		s = 1
	}
	return s
}

// decodeAndValidate reads a JSON body into dst and runs its validate tags.
func decodeAndValidate(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return model.NewDomainError(model.KindValidation, model.ErrCodeInvalidJSON, "invalid request body")
	}
	return validateStruct(dst)
}

func validateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return model.NewValidationError(err.Error())
	}
	fe := fieldErrs[0]
	if fe.Tag() == "required" {
		return model.NewDomainError(model.KindValidation, model.ErrCodeMissingField,
			fmt.Sprintf("%s is required", fe.Field()))
	}
	return model.NewValidationError(fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
}
