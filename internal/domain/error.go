package domain

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeCatalogViolation    ErrorCode = "CATALOG_VIOLATION"
	CodeTemporalViolation   ErrorCode = "TEMPORAL_VIOLATION"
	CodeInvalidScoringRules ErrorCode = "INVALID_SCORING_RULES"
	CodeInvalidDateRange    ErrorCode = "INVALID_DATE_RANGE"
	CodeTransportFailure    ErrorCode = "TRANSPORT_FAILURE"
	CodeProtocolViolation   ErrorCode = "PROTOCOL_VIOLATION"
	CodeBudgetExceeded      ErrorCode = "BUDGET_EXCEEDED"
	CodeInvalidArgument     ErrorCode = "INVALID_ARGUMENT"
	CodeInvalidConfig       ErrorCode = "INVALID_CONFIG"
)

// Fatal reports whether errors with this code must abort an agent run
// instead of being handed back to the model as a tool result.
func (c ErrorCode) Fatal() bool {
	return c == CodeProtocolViolation || c == CodeInvalidConfig
}

type Error struct {
	Code      ErrorCode
	Op        string
	Message   string
	Cause     error
	Retryable bool
	Meta      map[string]string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Op == "" {
		if msg == "" {
			return string(e.Code)
		}
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	if msg == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, msg)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// WithMeta returns e after setting a metadata key.
func (e *Error) WithMeta(key, value string) *Error {
	if e == nil {
		return nil
	}
	if e.Meta == nil {
		e.Meta = make(map[string]string)
	}
	e.Meta[key] = value
	return e
}

// ToolPayload renders the error as the object a model receives in place of
// a tool result.
func (e *Error) ToolPayload() map[string]any {
	if e == nil {
		return nil
	}
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	payload := map[string]any{
		"error":     string(e.Code),
		"message":   msg,
		"retryable": e.Retryable,
	}
	if e.Op != "" {
		payload["op"] = e.Op
	}
	for key, value := range e.Meta {
		if _, taken := payload[key]; !taken {
			payload[key] = value
		}
	}
	return payload
}

func E(code ErrorCode, op, msg string, cause error) *Error {
	if msg == "" && cause != nil {
		msg = cause.Error()
	}
	return &Error{
		Code:    code,
		Op:      op,
		Message: msg,
		Cause:   cause,
	}
}

// Retryable builds an error the caller may retry as-is.
func Retryable(code ErrorCode, op, msg string, cause error) *Error {
	err := E(code, op, msg, cause)
	err.Retryable = true
	return err
}

func Wrap(code ErrorCode, op string, err error) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		if existing.Op != "" || op == "" {
			return existing
		}
		return &Error{
			Code:      existing.Code,
			Op:        op,
			Message:   existing.Message,
			Cause:     existing.Cause,
			Retryable: existing.Retryable,
			Meta:      existing.Meta,
		}
	}
	return E(code, op, "", err)
}

// AsError extracts the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr, true
	}
	return nil, false
}

func CodeFrom(err error) (ErrorCode, bool) {
	if err == nil {
		return "", false
	}
	var domainErr *Error
	if errors.As(err, &domainErr) && domainErr.Code != "" {
		return domainErr.Code, true
	}
	switch {
	case errors.Is(err, ErrUnknownTool), errors.Is(err, ErrMultipleToolCalls), errors.Is(err, ErrEmptyModelResponse):
		return CodeProtocolViolation, true
	case errors.Is(err, ErrInvalidCutoff):
		return CodeTemporalViolation, true
	default:
		return "", false
	}
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	got, ok := CodeFrom(err)
	return ok && got == code
}

var (
	ErrUnknownTool        = errors.New("unknown tool")
	ErrMultipleToolCalls  = errors.New("multiple tool calls in one turn")
	ErrEmptyModelResponse = errors.New("empty model response")
	ErrInvalidCutoff      = errors.New("invalid as-of cutoff")
)
