package executor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Path locates a value in the response by field names and list indices.
type Path []any

// String renders p as products[1].name.
func (p Path) String() string {
	var b strings.Builder
	for i, elem := range p {
		switch v := elem.(type) {
		case int:
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(v))
			b.WriteByte(']')
		default:
			if i > 0 {
				b.WriteByte('.')
			}
			fmt.Fprint(&b, v)
		}
	}
	return b.String()
}

func (p Path) with(elem any) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = elem
	return out
}

// GraphQLError is a located execution error.
type GraphQLError struct {
	Message    string         `json:"message"`
	Path       Path           `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e GraphQLError) Error() string {
	return e.Message
}

type ExecutionResult struct {
	Data   any            `json:"data"`
	Errors []GraphQLError `json:"errors,omitempty"`
}

// extensionsError is implemented by errors that carry GraphQL error
// extensions, such as the federation resolution errors.
type extensionsError interface {
	error
	Extensions() map[string]any
}

func (ex *execution) locate(err error, path Path) {
	e := GraphQLError{Message: err.Error(), Path: path}
	var ext extensionsError
	if errors.As(err, &ext) {
		e.Extensions = ext.Extensions()
	}
	ex.record(e)
}

func (ex *execution) fail(path Path, format string, args ...any) {
	ex.record(GraphQLError{Message: fmt.Sprintf(format, args...), Path: path})
}

func (ex *execution) record(e GraphQLError) {
	ex.errors = append(ex.errors, e)
	ex.located[e.Path.String()] = struct{}{}
}

func (ex *execution) hasError(path Path) bool {
	_, ok := ex.located[path.String()]
	return ok
}

// writeAt stores v at path inside data. Positions along the path must
// already exist.
func writeAt(data map[string]any, path Path, v any) {
	if len(path) == 0 {
		return
	}
	var cur any = data
	for _, elem := range path[:len(path)-1] {
		switch e := elem.(type) {
		case string:
			m, ok := cur.(map[string]any)
			if !ok {
				return
			}
			cur = m[e]
		case int:
			s, ok := cur.([]any)
			if !ok || e >= len(s) {
				return
			}
			cur = s[e]
		}
	}
	switch e := path[len(path)-1].(type) {
	case string:
		if m, ok := cur.(map[string]any); ok {
			m[e] = v
		}
	case int:
		if s, ok := cur.([]any); ok && e < len(s) {
			s[e] = v
		}
	}
}
