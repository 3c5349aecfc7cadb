package federation

import (
	"context"
	"reflect"
)

// Func adapts a context-aware, error-returning function.
func Func(fn func(ctx context.Context, rep Representation) (any, error)) ResolverFn {
	return func(rc *ResolutionContext) (any, error) {
		v, err := fn(rc.Context(), rc.Representation)
		if err != nil {
			return nil, err
		}
		return normalizeNil(v), nil
	}
}

// Sync adapts a function that cannot fail.
func Sync(fn func(rep Representation) any) ResolverFn {
	return func(rc *ResolutionContext) (any, error) {
		return normalizeNil(fn(rc.Representation)), nil
	}
}

// Entity adapts a typed resolver. A nil *T result means not found.
func Entity[T any](fn func(rc *ResolutionContext) (*T, error)) ResolverFn {
	return func(rc *ResolutionContext) (any, error) {
		v, err := fn(rc)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, nil
		}
		return v, nil
	}
}

// EntitySync adapts a typed resolver that cannot fail.
func EntitySync[T any](fn func(rep Representation) *T) ResolverFn {
	return func(rc *ResolutionContext) (any, error) {
		v := fn(rc.Representation)
		if v == nil {
			return nil, nil
		}
		return v, nil
	}
}

// AddEntityResolver registers fn for the schema type bound to T.
func AddEntityResolver[T any](b *RegistryBuilder, fn func(rc *ResolutionContext) (*T, error)) {
	b.Register(TypeOf[T](), Entity(fn))
}

// AddEntityResolverByName registers fn for the schema type typeName.
func AddEntityResolverByName(b *RegistryBuilder, typeName string, fn ResolverFn) {
	b.Register(ByName(typeName), fn)
}

// normalizeNil turns typed nil pointers, maps and slices into a plain nil.
func normalizeNil(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
	}
	return v
}
