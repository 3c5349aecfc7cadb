package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
)

// Request is a GraphQL request as carried over HTTP.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}

// requestError rejects a request before any operation runs.
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{status: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

// decodeRequests reads the requests carried by r. batched reports whether
// the body was a JSON array.
func decodeRequests(w http.ResponseWriter, r *http.Request, limit int64) (reqs []Request, batched bool, err error) {
	if r.Method == http.MethodGet {
		req, err := queryRequest(r.URL.Query())
		if err != nil {
			return nil, false, err
		}
		return []Request{req}, false, nil
	}

	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != "application/json" {
			return nil, false, &requestError{status: http.StatusUnsupportedMediaType, msg: fmt.Sprintf("unsupported content type %q", ct)}
		}
	}
	body := r.Body
	if limit > 0 {
		body = http.MaxBytesReader(w, r.Body, limit)
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, false, &requestError{status: http.StatusRequestEntityTooLarge, msg: fmt.Sprintf("request body exceeds %d bytes", limit)}
		}
		return nil, false, badRequest("read request body: %v", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &reqs); err != nil {
			return nil, false, badRequest("invalid JSON: %v", err)
		}
		if len(reqs) == 0 {
			return nil, false, badRequest("empty batch")
		}
		batched = true
	} else {
		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, false, badRequest("invalid JSON: %v", err)
		}
		reqs = []Request{req}
	}
	for i := range reqs {
		if reqs[i].Query == "" {
			return nil, false, badRequest("missing query")
		}
	}
	return reqs, batched, nil
}

func queryRequest(q url.Values) (Request, error) {
	req := Request{Query: q.Get("query"), OperationName: q.Get("operationName")}
	if req.Query == "" {
		return req, badRequest("missing query")
	}
	if v := q.Get("variables"); v != "" {
		if err := json.Unmarshal([]byte(v), &req.Variables); err != nil {
			return req, badRequest("invalid variables: %v", err)
		}
	}
	return req, nil
}
