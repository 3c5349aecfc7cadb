package federation

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/fedgraph/internal/value"
)

type product struct {
	ID   string
	Name string
}

type unbound struct{}

func bindings(t reflect.Type) (string, bool) {
	if t == reflect.TypeOf(product{}) {
		return "Product", true
	}
	return "", false
}

func call(t *testing.T, r *Registry, typeName string, rep value.Value) (any, error) {
	t.Helper()
	fn, ok := r.Lookup(typeName)
	require.True(t, ok, "no resolver for %s", typeName)
	return fn(&ResolutionContext{Representation: rep, ctx: context.Background()})
}

func TestFinalizeResolvesDeferredSelectors(t *testing.T) {
	b := NewRegistryBuilder()
	AddEntityResolver(b, func(rc *ResolutionContext) (*product, error) {
		id, _ := rc.Representation.GetString("id")
		return &product{ID: id}, nil
	})
	b.Register(ByName("User"), Sync(func(rep Representation) any { return "user" }))

	reg, err := b.Finalize(bindings)
	require.NoError(t, err)
	require.Equal(t, []string{"Product", "User"}, reg.TypeNames())

	got, err := call(t, reg, "Product", value.Map(value.E("id", value.String("1"))))
	require.NoError(t, err)
	require.Equal(t, &product{ID: "1"}, got)
}

func TestFinalizeUnresolvableRuntimeType(t *testing.T) {
	b := NewRegistryBuilder()
	b.Register(TypeOf[*unbound](), Sync(func(Representation) any { return nil }))

	_, err := b.Finalize(bindings)
	var unresolvable *UnresolvableRuntimeTypeError
	require.ErrorAs(t, err, &unresolvable)
	require.Equal(t, reflect.TypeOf(unbound{}), unresolvable.Type)

	_, err = b.Finalize(nil)
	require.ErrorAs(t, err, &unresolvable)
}

func TestSelectorNormalizesPointers(t *testing.T) {
	require.Equal(t, TypeOf[product](), TypeOf[*product]())
	require.Equal(t, TypeOf[product](), ByType(reflect.TypeOf(&product{})))
	require.True(t, TypeOf[product]().IsDeferred())
	require.False(t, ByName("Product").IsDeferred())
}

func TestDuplicateRegistrationLastWins(t *testing.T) {
	b := NewRegistryBuilder()
	b.Register(ByName("Product"), Sync(func(Representation) any { return "first" }))
	b.Register(TypeOf[product](), Sync(func(Representation) any { return "second" }))
	b.Register(ByName("Product"), Sync(func(Representation) any { return "third" }))

	reg, err := b.Finalize(bindings)
	require.NoError(t, err)
	got, err := call(t, reg, "Product", value.Map())
	require.NoError(t, err)
	require.Equal(t, "third", got)
}

func TestFinalizeTwiceIsIdempotent(t *testing.T) {
	b := NewRegistryBuilder()
	b.Register(ByName("User"), Sync(func(Representation) any { return "user" }))
	b.Register(TypeOf[product](), Sync(func(Representation) any { return "product" }))

	first, err := b.Finalize(bindings)
	require.NoError(t, err)
	second, err := b.Finalize(bindings)
	require.NoError(t, err)
	require.Equal(t, first.TypeNames(), second.TypeNames())

	for _, name := range first.TypeNames() {
		x, _ := call(t, first, name, value.Map())
		y, _ := call(t, second, name, value.Map())
		require.Equal(t, x, y)
	}
}

func TestLookupMissing(t *testing.T) {
	reg, err := NewRegistryBuilder().Finalize(nil)
	require.NoError(t, err)
	_, ok := reg.Lookup("Product")
	require.False(t, ok)

	var nilReg *Registry
	_, ok = nilReg.Lookup("Product")
	require.False(t, ok)
}

func TestAdaptersNormalizeResults(t *testing.T) {
	boom := errors.New("boom")
	rep := value.Map(value.E("__typename", value.String("Product")))

	b := NewRegistryBuilder()
	AddEntityResolverByName(b, "TypedNil", Func(func(ctx context.Context, rep Representation) (any, error) {
		var p *product
		return p, nil
	}))
	AddEntityResolverByName(b, "Failing", Func(func(ctx context.Context, rep Representation) (any, error) {
		return nil, boom
	}))
	AddEntityResolverByName(b, "EntitySync", EntitySync(func(rep Representation) *product { return nil }))
	AddEntityResolverByName(b, "Entity", Entity(func(rc *ResolutionContext) (*product, error) {
		return &product{ID: rc.TypeName()}, nil
	}))
	reg, err := b.Finalize(nil)
	require.NoError(t, err)

	got, err := call(t, reg, "TypedNil", rep)
	require.NoError(t, err)
	require.Nil(t, got)

	_, err = call(t, reg, "Failing", rep)
	require.ErrorIs(t, err, boom)

	got, err = call(t, reg, "EntitySync", rep)
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = call(t, reg, "Entity", rep)
	require.NoError(t, err)
	require.Equal(t, &product{ID: "Product"}, got)
}
