package federation

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestMergeKeysKeepFirstSeenOrder(t *testing.T) {
	md, err := Merge(
		PartialTypeMetadata{TypeName: "Product", Source: "base", Keys: []KeyDeclaration{{"upc"}, {"sku package"}}},
		PartialTypeMetadata{TypeName: "Product", Source: "ext", Keys: []KeyDeclaration{{"sku package"}, {"sku variation { id }"}, {"upc"}}},
	)
	require.NoError(t, err)

	want := []KeyDeclaration{{"upc"}, {"sku package"}, {"sku variation { id }"}}
	if diff := cmp.Diff(want, md.Keys); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
	require.True(t, md.IsEntity())
}

func TestMergeExtendsAndExternalAreORed(t *testing.T) {
	md, err := Merge(
		PartialTypeMetadata{TypeName: "User", Source: "base", Fields: []FieldDeclaration{{Name: "email"}}},
		PartialTypeMetadata{TypeName: "User", Source: "ext", Extends: true, Fields: []FieldDeclaration{
			{Name: "email", Marker: FieldMarker{External: true}},
		}},
		PartialTypeMetadata{TypeName: "User", Source: "code", Fields: []FieldDeclaration{{Name: "email"}}},
	)
	require.NoError(t, err)
	require.True(t, md.Extends)
	require.Equal(t, FieldMarker{External: true}, md.Fields["email"])
}

func TestMergeFieldMarkersAcrossSources(t *testing.T) {
	md, err := Merge(
		PartialTypeMetadata{TypeName: "Review", Source: "a", Fields: []FieldDeclaration{
			{Name: "author", Marker: FieldMarker{Provides: "username"}},
		}},
		PartialTypeMetadata{TypeName: "Review", Source: "b", Fields: []FieldDeclaration{
			{Name: "author", Marker: FieldMarker{Provides: "username"}},
			{Name: "shipping", Marker: FieldMarker{Requires: "weight"}},
		}},
	)
	require.NoError(t, err)
	want := map[string]FieldMarker{
		"author":   {Provides: "username"},
		"shipping": {Requires: "weight"},
	}
	if diff := cmp.Diff(want, md.Fields); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeConflictingRequires(t *testing.T) {
	_, err := Merge(
		PartialTypeMetadata{TypeName: "Product", Source: "products.graphql:1:1", Fields: []FieldDeclaration{
			{Name: "shippingEstimate", Marker: FieldMarker{Requires: "price weight"}},
		}},
		PartialTypeMetadata{TypeName: "Product", Source: "products.graphql:9:1", Fields: []FieldDeclaration{
			{Name: "shippingEstimate", Marker: FieldMarker{Requires: "price"}},
		}},
	)
	var conflict *ConflictingFieldMarkerError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, "requires", conflict.Marker)
	require.Equal(t, "shippingEstimate", conflict.FieldName)
	require.Equal(t, "products.graphql:1:1", conflict.ExistingSource)
	require.Equal(t, "products.graphql:9:1", conflict.ConflictingSource)
}

func TestMergeConflictingProvides(t *testing.T) {
	_, err := Merge(
		PartialTypeMetadata{TypeName: "Review", Fields: []FieldDeclaration{{Name: "author", Marker: FieldMarker{Provides: "a"}}}},
		PartialTypeMetadata{TypeName: "Review", Fields: []FieldDeclaration{{Name: "author", Marker: FieldMarker{Provides: "b"}}}},
	)
	var conflict *ConflictingFieldMarkerError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, "provides", conflict.Marker)
}

func TestMergeRejectsMixedTypes(t *testing.T) {
	_, err := Merge(PartialTypeMetadata{TypeName: "A"}, PartialTypeMetadata{TypeName: "B"})
	require.Error(t, err)
	_, err = Merge()
	require.Error(t, err)
}

func TestMergeIsPure(t *testing.T) {
	sources := []PartialTypeMetadata{
		{TypeName: "Product", Keys: []KeyDeclaration{{"upc"}}, Fields: []FieldDeclaration{{Name: "upc", Marker: FieldMarker{External: true}}}},
		{TypeName: "Product", Keys: []KeyDeclaration{{"upc"}}},
	}
	a, err := Merge(sources...)
	require.NoError(t, err)
	b, err := Merge(sources...)
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(a, b))
}

func TestMergeAllGroupsAndJoinsConflicts(t *testing.T) {
	merged, err := MergeAll([]PartialTypeMetadata{
		{TypeName: "Product", Keys: []KeyDeclaration{{"upc"}}},
		{TypeName: "User", Keys: []KeyDeclaration{{"id"}}},
		{TypeName: "Product", Keys: []KeyDeclaration{{"sku"}}},
	})
	require.NoError(t, err)
	require.Len(t, merged, 2)
	require.Equal(t, []KeyDeclaration{{"upc"}, {"sku"}}, merged["Product"].Keys)

	_, err = MergeAll([]PartialTypeMetadata{
		{TypeName: "A", Fields: []FieldDeclaration{{Name: "f", Marker: FieldMarker{Requires: "x"}}}},
		{TypeName: "A", Fields: []FieldDeclaration{{Name: "f", Marker: FieldMarker{Requires: "y"}}}},
		{TypeName: "B", Fields: []FieldDeclaration{{Name: "g", Marker: FieldMarker{Provides: "x"}}}},
		{TypeName: "B", Fields: []FieldDeclaration{{Name: "g", Marker: FieldMarker{Provides: "y"}}}},
	})
	var conflict *ConflictingFieldMarkerError
	require.ErrorAs(t, err, &conflict)
	var joined interface{ Unwrap() []error }
	require.True(t, errors.As(err, &joined))
	require.Len(t, joined.Unwrap(), 2)
}
