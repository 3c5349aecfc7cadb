package ir

import (
	"fmt"
	"sort"
	"strings"

	language "github.com/hanpama/fedgraph/internal/language"
)

// Violation is one problem found in the SDL, located when possible.
type Violation struct {
	Message string
	File    string
	Line    int
	Column  int
}

func (v *Violation) String() string {
	if v.File == "" {
		return v.Message
	}
	return fmt.Sprintf("%s %s:%d:%d", v.Message, v.File, v.Line, v.Column)
}

// ValidationError lists every violation of a build, ordered by location.
type ValidationError []*Violation

func (e ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("violations found:\n")
	for _, v := range e {
		sb.WriteString("- ")
		sb.WriteString(v.String())
		sb.WriteString("\n")
	}
	return sb.String()
}

func newViolation(message string, pos *language.Position) *Violation {
	v := &Violation{Message: message}
	if pos != nil {
		v.Line, v.Column = pos.Line, pos.Column
		if pos.Src != nil {
			v.File = pos.Src.Name
		}
	}
	return v
}

func sortViolations(vs []*Violation) {
	sort.SliceStable(vs, func(i, j int) bool {
		a, b := vs[i], vs[j]
		switch {
		case a.File != b.File:
			return a.File < b.File
		case a.Line != b.Line:
			return a.Line < b.Line
		case a.Column != b.Column:
			return a.Column < b.Column
		}
		return a.Message < b.Message
	})
}
