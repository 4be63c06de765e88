package core

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// UnsupportedProviderError is returned for a provider tag outside the supported set.
type UnsupportedProviderError struct {
	Provider string
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("unsupported database provider %q", e.Provider)
}

// ConnectionError means the target database could not be reached or authenticated.
type ConnectionError struct {
	Provider string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("could not connect to %s database: %v", e.Provider, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IntrospectionError means the connection worked but the catalog could not be read.
type IntrospectionError struct {
	Err error
}

func (e *IntrospectionError) Error() string {
	return fmt.Sprintf("connected, but reading schema metadata failed: %v", e.Err)
}

func (e *IntrospectionError) Unwrap() error { return e.Err }

// GenerationError is a failure of the language model or of a guardrail service.
// It never stands for a guardrail refusal.
type GenerationError struct {
	Stage string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("sql generation failed at %s: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// QueryExecutionError carries the statement that the target database rejected.
type QueryExecutionError struct {
	Statement string
	Err       error
}

func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf("query execution failed: %v", e.Err)
}

func (e *QueryExecutionError) Unwrap() error { return e.Err }

// PostProcessingError is a partial success: the SQL ran, but formatting the result failed.
type PostProcessingError struct {
	OutputType string
	SQL        string
	Err        error
}

func (e *PostProcessingError) Error() string {
	return fmt.Sprintf("formatting %s output failed: %v", e.OutputType, e.Err)
}

func (e *PostProcessingError) Unwrap() error { return e.Err }

// Describe turns a pipeline error into a short human message plus optional detail
// (the failing statement or generated SQL).
func Describe(err error) (message, detail string) {
	var (
		unsupported *UnsupportedProviderError
		connErr     *ConnectionError
		introErr    *IntrospectionError
		genErr      *GenerationError
		execErr     *QueryExecutionError
		postErr     *PostProcessingError
	)
	switch {
	case errors.As(err, &unsupported):
		return unsupported.Error(), ""
	case errors.As(err, &connErr):
		return "Could not connect to the database. Check host, port and credentials.", connErr.Err.Error()
	case errors.As(err, &introErr):
		return "Connected, but the schema could not be read. Check the user's catalog permissions.", introErr.Err.Error()
	case errors.As(err, &genErr):
		return "The language model could not generate SQL for this question.", genErr.Err.Error()
	case errors.As(err, &execErr):
		return fmt.Sprintf("The database rejected the generated SQL: %v", execErr.Err), execErr.Statement
	case errors.As(err, &postErr):
		return "The query ran, but its result could not be formatted.", postErr.SQL
	case errors.Is(err, ErrNotFound):
		return "Resource not found", ""
	case errors.Is(err, ErrConflict):
		return "Request conflicts with existing data", err.Error()
	}
	return err.Error(), ""
}
