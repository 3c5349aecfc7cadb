package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"

	executor "github.com/hanpama/fedgraph/internal/executor"
	language "github.com/hanpama/fedgraph/internal/language"
)

type location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

type wireError struct {
	Message    string         `json:"message"`
	Locations  []location     `json:"locations,omitempty"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// response is an executed operation. data is present even when null.
type response struct {
	Data   any         `json:"data"`
	Errors []wireError `json:"errors,omitempty"`
}

// failure is a request that never started executing; it carries no data.
type failure struct {
	Errors []wireError `json:"errors"`
}

func newResponse(res *executor.ExecutionResult) any {
	errs := make([]wireError, len(res.Errors))
	for i, e := range res.Errors {
		errs[i] = wireError{Message: e.Message, Extensions: e.Extensions}
		if len(e.Path) > 0 {
			errs[i].Path = []any(e.Path)
		}
	}
	if res.Data == nil {
		return failure{Errors: errs}
	}
	if len(errs) == 0 {
		errs = nil
	}
	return response{Data: res.Data, Errors: errs}
}

func syntaxFailure(err error) failure {
	we := wireError{Message: err.Error()}
	var gerr *language.Error
	if errors.As(err, &gerr) {
		we.Message = gerr.Message
		for _, l := range gerr.Locations {
			we.Locations = append(we.Locations, location{Line: l.Line, Column: l.Column})
		}
	}
	return failure{Errors: []wireError{we}}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	var re *requestError
	if errors.As(err, &re) {
		status = re.status
	}
	h.writeJSON(w, status, failure{Errors: []wireError{{Message: err.Error()}}})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if h.opt.Pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}

// allowOrigin sets the CORS headers for allowed origins.
func (h *Handler) allowOrigin(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.opt.CORSOrigins) == 0 {
		return
	}
	switch {
	case slices.Contains(h.opt.CORSOrigins, "*"):
		w.Header().Set("Access-Control-Allow-Origin", "*")
	case slices.Contains(h.opt.CORSOrigins, origin):
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	default:
		return
	}
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
	}
}
