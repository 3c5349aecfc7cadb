package federation

import "sort"

// UnionOptions controls BuildEntityUnion.
type UnionOptions struct {
	// Roots are the operation root type names, never union members.
	Roots []string
	// RequireEntities turns an empty union into ErrEmptyEntityUnion.
	RequireEntities bool
}

// BuildEntityUnion returns the sorted, deduplicated names of the types that
// declare at least one key.
func BuildEntityUnion(types []*TypeMetadata, opts UnionOptions) ([]string, error) {
	roots := make(map[string]struct{}, len(opts.Roots))
	for _, r := range opts.Roots {
		if r != "" {
			roots[r] = struct{}{}
		}
	}

	seen := make(map[string]struct{})
	members := []string{}
	for _, md := range types {
		if md == nil || !md.IsEntity() {
			continue
		}
		if _, ok := roots[md.TypeName]; ok {
			continue
		}
		if _, ok := seen[md.TypeName]; ok {
			continue
		}
		seen[md.TypeName] = struct{}{}
		members = append(members, md.TypeName)
	}
	sort.Strings(members)

	if len(members) == 0 && opts.RequireEntities {
		return nil, ErrEmptyEntityUnion
	}
	return members, nil
}
