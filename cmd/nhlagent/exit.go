package main

import (
	"encoding/json"

	"nhlagent/internal/domain"
)

type exitError struct {
	code    int
	message string
	silent  bool
}

func (e exitError) Error() string {
	return e.message
}

func exitSilent(code int) error {
	return exitError{code: code, silent: true}
}

// exitDomain renders a domain error as its tool payload so scripted callers
// can branch on the code.
func exitDomain(err error) error {
	domainErr, ok := domain.AsError(err)
	if !ok {
		return err
	}
	data, marshalErr := json.Marshal(domainErr.ToolPayload())
	if marshalErr != nil {
		return err
	}
	code := 1
	if domain.IsCode(err, domain.CodeInvalidArgument) || domain.IsCode(err, domain.CodeInvalidConfig) {
		code = 2
	}
	return exitError{code: code, message: string(data)}
}
