// Package federation implements the entity side of a federated subgraph: the
// @key/@external/@requires/@provides/@extends metadata, the _Entity union,
// the entity resolver registry and the _entities dispatcher.
package federation

import (
	"errors"
	"fmt"
)

// KeyDeclaration is one @key of a type. The field set is opaque here.
type KeyDeclaration struct {
	FieldSet string
}

// FieldMarker holds the federation markers of a field. Empty strings mean the
// marker is absent.
type FieldMarker struct {
	External bool
	Requires string
	Provides string
}

// IsZero reports whether no marker is set.
func (m FieldMarker) IsZero() bool {
	return !m.External && m.Requires == "" && m.Provides == ""
}

// TypeMetadata is the merged federation metadata of a type.
type TypeMetadata struct {
	TypeName string
	Keys     []KeyDeclaration
	Extends  bool
	Fields   map[string]FieldMarker
}

// IsEntity reports whether the type declares at least one key.
func (m *TypeMetadata) IsEntity() bool { return len(m.Keys) > 0 }

// FieldDeclaration is a marker declared on a field by one source.
type FieldDeclaration struct {
	Name   string
	Marker FieldMarker
}

// PartialTypeMetadata is what a single declaration source contributes: the
// base type definition, one `extend type`, or a code-first registration.
type PartialTypeMetadata struct {
	TypeName string
	// Source names the origin for diagnostics, e.g. "products.graphql:3:1".
	Source  string
	Keys    []KeyDeclaration
	Extends bool
	Fields  []FieldDeclaration
}

// Merge combines the partial declarations of one type. Keys keep their first
// position and drop exact duplicates; Extends and External are ORed;
// conflicting Requires or Provides values fail with
// *ConflictingFieldMarkerError.
func Merge(sources ...PartialTypeMetadata) (*TypeMetadata, error) {
	if len(sources) == 0 {
		return nil, errors.New("federation: merge needs at least one source")
	}
	md := &TypeMetadata{
		TypeName: sources[0].TypeName,
		Fields:   make(map[string]FieldMarker),
	}
	seenKeys := make(map[string]struct{})
	// origins remembers which source set Requires/Provides on a field.
	origins := make(map[string][2]string)

	for _, src := range sources {
		if src.TypeName != md.TypeName {
			return nil, fmt.Errorf("federation: cannot merge metadata of %q into %q", src.TypeName, md.TypeName)
		}
		for _, key := range src.Keys {
			if _, ok := seenKeys[key.FieldSet]; ok {
				continue
			}
			seenKeys[key.FieldSet] = struct{}{}
			md.Keys = append(md.Keys, key)
		}
		md.Extends = md.Extends || src.Extends

		for _, decl := range src.Fields {
			cur := md.Fields[decl.Name]
			origin := origins[decl.Name]
			cur.External = cur.External || decl.Marker.External

			if v := decl.Marker.Requires; v != "" {
				if cur.Requires != "" && cur.Requires != v {
					return nil, &ConflictingFieldMarkerError{
						TypeName: md.TypeName, FieldName: decl.Name, Marker: "requires",
						Existing: cur.Requires, Conflicting: v,
						ExistingSource: origin[0], ConflictingSource: src.Source,
					}
				}
				if cur.Requires == "" {
					origin[0] = src.Source
				}
				cur.Requires = v
			}
			if v := decl.Marker.Provides; v != "" {
				if cur.Provides != "" && cur.Provides != v {
					return nil, &ConflictingFieldMarkerError{
						TypeName: md.TypeName, FieldName: decl.Name, Marker: "provides",
						Existing: cur.Provides, Conflicting: v,
						ExistingSource: origin[1], ConflictingSource: src.Source,
					}
				}
				if cur.Provides == "" {
					origin[1] = src.Source
				}
				cur.Provides = v
			}
			origins[decl.Name] = origin
			md.Fields[decl.Name] = cur
		}
	}
	return md, nil
}

// MergeAll groups partials by type name, keeping their relative order, and
// merges each group. All conflicts are reported together.
func MergeAll(partials []PartialTypeMetadata) (map[string]*TypeMetadata, error) {
	groups := make(map[string][]PartialTypeMetadata)
	var order []string
	for _, p := range partials {
		if _, ok := groups[p.TypeName]; !ok {
			order = append(order, p.TypeName)
		}
		groups[p.TypeName] = append(groups[p.TypeName], p)
	}

	out := make(map[string]*TypeMetadata, len(groups))
	var errs []error
	for _, name := range order {
		md, err := Merge(groups[name]...)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[name] = md
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}
