package executor

import (
	"slices"

	language "github.com/hanpama/fedgraph/internal/language"
	schema "github.com/hanpama/fedgraph/internal/schema"
)

// fieldGroup is the set of field nodes sharing one response key.
type fieldGroup struct {
	key   string
	nodes []*language.Field
}

// collect groups the fields of set that apply to obj, in document order.
func (ex *execution) collect(obj *schema.Type, set language.SelectionSet) []fieldGroup {
	var groups []fieldGroup
	index := map[string]int{}
	visited := map[string]bool{}

	var walk func(language.SelectionSet)
	walk = func(set language.SelectionSet) {
		for _, sel := range set {
			switch s := sel.(type) {
			case *language.Field:
				if !ex.included(s.Directives) {
					continue
				}
				key := s.Alias
				if key == "" {
					key = s.Name
				}
				if i, ok := index[key]; ok {
					groups[i].nodes = append(groups[i].nodes, s)
					continue
				}
				index[key] = len(groups)
				groups = append(groups, fieldGroup{key: key, nodes: []*language.Field{s}})

			case *language.InlineFragment:
				if ex.included(s.Directives) && ex.applies(s.TypeCondition, obj) {
					walk(s.SelectionSet)
				}

			case *language.FragmentSpread:
				if visited[s.Name] || !ex.included(s.Directives) {
					continue
				}
				visited[s.Name] = true
				def := ex.document.Fragments.ForName(s.Name)
				if def == nil || !ex.included(def.Directives) || !ex.applies(def.TypeCondition, obj) {
					continue
				}
				walk(def.SelectionSet)
			}
		}
	}
	walk(set)
	return groups
}

// applies reports whether a fragment with type condition cond applies to obj.
func (ex *execution) applies(cond string, obj *schema.Type) bool {
	if cond == "" || cond == obj.Name {
		return true
	}
	t := ex.schema.Types[cond]
	if t == nil {
		return false
	}
	switch t.Kind {
	case schema.TypeKindInterface:
		return slices.Contains(obj.Interfaces, cond) || slices.Contains(t.PossibleTypes, obj.Name)
	case schema.TypeKindUnion:
		return slices.Contains(t.PossibleTypes, obj.Name)
	}
	return false
}

// included evaluates @skip and @include.
func (ex *execution) included(directives language.DirectiveList) bool {
	if d := directives.ForName("skip"); d != nil {
		if v, ok := ex.condition(d); ok && v {
			return false
		}
	}
	if d := directives.ForName("include"); d != nil {
		if v, ok := ex.condition(d); ok && !v {
			return false
		}
	}
	return true
}

func (ex *execution) condition(d *language.Directive) (bool, bool) {
	for _, arg := range d.Arguments {
		if arg.Name == "if" {
			v, ok := literal(arg.Value, ex.variables).(bool)
			return v, ok
		}
	}
	return false, false
}
