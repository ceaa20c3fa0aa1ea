package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/yourorg/apitestgen/internal/generator"
	"github.com/yourorg/apitestgen/internal/spec"
)

// Error codes carried in ErrorResponse.Code.
const (
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeNotFound          = "NOT_FOUND"
	CodeParseError        = "PARSE_ERROR"
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	CodeGenerationFailed  = "GENERATION_FAILED"
	CodeInternalError     = "INTERNAL_ERROR"
)

// ErrorResponse is the JSON body of every failed API call.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, message, details string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code, Details: details})
}

// classify maps a service error to its status and code.
func classify(err error) (int, string) {
	var (
		invalid     *generator.InvalidInputError
		parseErr    *spec.ParseError
		formatErr   *spec.UnsupportedFormatError
		generateErr *generator.GenerationError
	)
	switch {
	case errors.As(err, &invalid):
		if invalid.NotFound() {
			return http.StatusNotFound, CodeNotFound
		}
		return http.StatusBadRequest, CodeInvalidRequest
	case errors.As(err, &parseErr):
		return http.StatusBadRequest, CodeParseError
	case errors.As(err, &formatErr):
		return http.StatusBadRequest, CodeUnsupportedFormat
	case errors.As(err, &generateErr):
		return http.StatusBadGateway, CodeGenerationFailed
	default:
		return http.StatusInternalServerError, CodeInternalError
	}
}

// writeServiceError reports err as "<prefix>: <err>". Unexpected failures
// carry the chain of wrapped causes in details.
func (s *Server) writeServiceError(w http.ResponseWriter, prefix string, err error) {
	status, code := classify(err)
	details := ""
	if code == CodeInternalError {
		details = causeChain(err)
		s.logger.Error(prefix, "error", err)
	} else {
		s.logger.Warn(prefix, "code", code, "error", err)
	}
	writeError(w, status, code, prefix+": "+err.Error(), details)
}

// causeChain lists err and each error it wraps, one "type: message" per line.
func causeChain(err error) string {
	var b strings.Builder
	for e := err; e != nil; e = errors.Unwrap(e) {
		fmt.Fprintf(&b, "%T: %v\n", e, e)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
