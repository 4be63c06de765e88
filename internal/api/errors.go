package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"sqlinsight/internal/core"
	"sqlinsight/internal/logger"
	"sqlinsight/internal/service"
)

type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   *errorBody  `json:"error,omitempty"`
}

type errorBody struct {
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error.Printf("Failed to encode response: %v", err)
	}
}

func respond(w http.ResponseWriter, status int, message string, data interface{}) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

func badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, envelope{Message: err.Error(), Error: &errorBody{Message: err.Error()}})
}

// fail renders a pipeline or store error with the matching status code.
func fail(w http.ResponseWriter, err error) {
	failWith(w, err, nil)
}

// failWith is fail with whatever was produced before the error attached as data.
func failWith(w http.ResponseWriter, err error, data interface{}) {
	message, detail := core.Describe(err)
	status := statusFor(err)
	if status >= 500 {
		logger.Error.Printf("%v", err)
	}
	writeJSON(w, status, envelope{Message: message, Data: data, Error: &errorBody{Message: message, Detail: detail}})
}

// partial reports a post-processing failure: the SQL ran and is returned, nothing was stored.
func partial(w http.ResponseWriter, err error, outcome *service.Outcome) {
	message, detail := core.Describe(err)
	writeJSON(w, http.StatusOK, envelope{
		Success: false,
		Message: message,
		Data:    outcome,
		Error:   &errorBody{Message: err.Error(), Detail: detail},
	})
}

func statusFor(err error) int {
	var (
		unsupported *core.UnsupportedProviderError
		connErr     *core.ConnectionError
		introErr    *core.IntrospectionError
		genErr      *core.GenerationError
		execErr     *core.QueryExecutionError
		postErr     *core.PostProcessingError
	)
	switch {
	case errors.As(err, &unsupported):
		return http.StatusBadRequest
	case errors.As(err, &connErr), errors.As(err, &introErr):
		return http.StatusBadRequest
	case errors.As(err, &execErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &genErr), errors.As(err, &postErr):
		return http.StatusBadGateway
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrNoDatabase), errors.Is(err, service.ErrNotExecuted):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
