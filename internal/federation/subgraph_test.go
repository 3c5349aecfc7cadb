package federation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/fedgraph/internal/executor"
	"github.com/hanpama/fedgraph/internal/executor/executortest"
	"github.com/hanpama/fedgraph/internal/language"
	"github.com/hanpama/fedgraph/internal/schema"
)

func productsSchema() *schema.Schema {
	s := schema.NewSchema("").AddBuiltins().SetQueryType("Query")
	s.AddType(schema.NewType("Query", schema.TypeKindObject, "").
		AddField(schema.NewField("topProducts", "", schema.ListType(schema.NamedType("Product")))))
	s.AddType(schema.NewType("Product", schema.TypeKindObject, "").
		AddField(schema.NewField("upc", "", schema.NonNullType(schema.NamedType("String")))).
		AddField(schema.NewField("name", "", schema.NamedType("String"))).
		AddField(schema.NewField("price", "", schema.NamedType("Int"))))
	s.AddType(schema.NewType("User", schema.TypeKindObject, "").
		AddField(schema.NewField("id", "", schema.NonNullType(schema.NamedType("ID")))).
		AddField(schema.NewField("favorite", "", schema.NamedType("Product")).SetAsync(true)))
	s.AddType(schema.NewType("Review", schema.TypeKindObject, "").
		AddField(schema.NewField("body", "", schema.NamedType("String"))))
	return s
}

func productsBase() *executortest.Runtime {
	return executortest.New().
		Handle("Product", "upc", executortest.Key("upc")).
		Handle("Product", "name", executortest.Key("name")).
		Handle("Product", "price", executortest.Key("price")).
		Handle("User", "id", executortest.Key("id")).
		Handle("User", "favorite", executortest.Returns(map[string]any{"upc": "fav", "name": "Favorite"}))
}

var catalog = map[string]map[string]any{
	"1": {"upc": "1", "name": "Table", "price": 899},
	"2": {"upc": "2", "name": "Couch", "price": 1299},
}

func productsAssembly() *Assembly {
	a := NewAssembly()
	a.AddMetadata(
		PartialTypeMetadata{TypeName: "Product", Source: "products.graphql:3:1", Keys: []KeyDeclaration{{"upc"}}},
		PartialTypeMetadata{TypeName: "User", Source: "users.graphql:1:1", Extends: true, Keys: []KeyDeclaration{{"id"}},
			Fields: []FieldDeclaration{{Name: "id", Marker: FieldMarker{External: true}}}},
	)
	a.RegisterEntityResolver(ByName("Product"), Sync(func(rep Representation) any {
		upc, _ := rep.GetString("upc")
		if p, ok := catalog[upc]; ok {
			return p
		}
		return nil
	}))
	a.RegisterEntityResolver(ByName("User"), Func(func(_ context.Context, rep Representation) (any, error) {
		id, _ := rep.GetString("id")
		if id == "broken" {
			return nil, errors.New("users database unavailable")
		}
		return map[string]any{"id": id}, nil
	}))
	return a
}

func execute(t *testing.T, sg *Subgraph, query string, vars map[string]any) *executor.ExecutionResult {
	t.Helper()
	doc, err := language.ParseQuery(query)
	require.NoError(t, err)
	return executor.NewExecutor(sg.Runtime, sg.Schema).ExecuteRequest(context.Background(), doc, "", vars, nil)
}

func TestSubgraphResolvesEntities(t *testing.T) {
	sg, err := productsAssembly().Build(productsBase(), productsSchema(), Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"Product", "User"}, sg.Entities)

	res := execute(t, sg, `query($representations: [_Any!]!) {
		_entities(representations: $representations) {
			__typename
			... on Product { upc name }
			... on User { id }
		}
	}`, map[string]any{"representations": []any{
		map[string]any{"__typename": "Product", "upc": "1"},
		map[string]any{"__typename": "Product", "upc": "unknown"},
		map[string]any{"__typename": "User", "id": "u1"},
		map[string]any{"upc": "2"},
		map[string]any{"__typename": "Review", "id": "r1"},
		map[string]any{"__typename": "User", "id": "broken"},
	}})

	want := map[string]any{
		"_entities": []any{
			map[string]any{"__typename": "Product", "upc": "1", "name": "Table"},
			nil,
			map[string]any{"__typename": "User", "id": "u1"},
			nil,
			nil,
			nil,
		},
	}
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, res.Errors, 3)
	require.Equal(t, executor.Path{"_entities", 3}, res.Errors[0].Path)
	require.Equal(t, CodeMissingTypename, res.Errors[0].Extensions["code"])
	require.Equal(t, executor.Path{"_entities", 4}, res.Errors[1].Path)
	require.Equal(t, CodeEntityNotFound, res.Errors[1].Extensions["code"])
	require.Equal(t, "Review", res.Errors[1].Extensions["typename"])
	require.Equal(t, executor.Path{"_entities", 5}, res.Errors[2].Path)
	require.Equal(t, CodeResolverExecutionError, res.Errors[2].Extensions["code"])
	require.Contains(t, res.Errors[2].Message, "users database unavailable")
}

func TestSubgraphInlineRepresentations(t *testing.T) {
	sg, err := productsAssembly().Build(productsBase(), productsSchema(), Options{})
	require.NoError(t, err)

	res := execute(t, sg, `{
		_entities(representations: [{__typename: "Product", upc: "2"}]) {
			... on Product { name price }
		}
	}`, nil)
	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{
		"_entities": []any{map[string]any{"name": "Couch", "price": 1299}},
	}, res.Data)
}

func TestSubgraphServiceSDL(t *testing.T) {
	sg, err := productsAssembly().Build(productsBase(), productsSchema(), Options{})
	require.NoError(t, err)

	want := `type Product @key(fields: "upc") {
  upc: String!
  name: String
  price: Int
}

type Query {
  topProducts: [Product]
}

type Review {
  body: String
}

extend type User @key(fields: "id") {
  id: ID! @external
  favorite: Product
}
`
	if diff := cmp.Diff(want, sg.SDL); diff != "" {
		t.Fatalf("sdl mismatch (-want +got):\n%s", diff)
	}

	res := execute(t, sg, `{ _service { sdl } }`, nil)
	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{"_service": map[string]any{"sdl": want}}, res.Data)

	require.Equal(t, "_Service!", sg.Schema.Types["Query"].Field(ServiceField).Type.String())
	require.Equal(t, "String!", sg.Schema.Types[ServiceType].Field(SDLField).Type.String())
}

func TestSubgraphDelegatesOtherFields(t *testing.T) {
	base := productsBase()
	base.Handle("Query", "topProducts", executortest.Returns([]any{
		map[string]any{"upc": "1", "name": "Table"},
	}))
	sg, err := productsAssembly().Build(base, productsSchema(), Options{})
	require.NoError(t, err)

	res := execute(t, sg, `query($reps: [_Any!]!) {
		topProducts { name }
		_entities(representations: $reps) { ... on User { favorite { name } } }
	}`, map[string]any{"reps": []any{map[string]any{"__typename": "User", "id": "u1"}}})
	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{
		"topProducts": []any{map[string]any{"name": "Table"}},
		"_entities":   []any{map[string]any{"favorite": map[string]any{"name": "Favorite"}}},
	}, res.Data)

	var asyncCalls []string
	for _, c := range base.Calls() {
		if c.Batch > 0 {
			asyncCalls = append(asyncCalls, c.Type+"."+c.Field)
		}
	}
	require.Equal(t, []string{"User.favorite"}, asyncCalls)
}

func TestSubgraphAliasedEntitiesRunConcurrently(t *testing.T) {
	var started sync.WaitGroup
	started.Add(2)
	a := NewAssembly()
	a.AddMetadata(PartialTypeMetadata{TypeName: "Product", Keys: []KeyDeclaration{{"upc"}}})
	a.RegisterEntityResolver(ByName("Product"), Func(func(_ context.Context, rep Representation) (any, error) {
		started.Done()
		both := make(chan struct{})
		go func() { started.Wait(); close(both) }()
		select {
		case <-both:
		case <-time.After(2 * time.Second):
			return nil, errors.New("other _entities field did not start")
		}
		upc, _ := rep.GetString("upc")
		return catalog[upc], nil
	}))
	sg, err := a.Build(productsBase(), productsSchema(), Options{})
	require.NoError(t, err)

	res := execute(t, sg, `{
		a: _entities(representations: [{__typename: "Product", upc: "1"}]) { ... on Product { name } }
		b: _entities(representations: [{__typename: "Product", upc: "2"}]) { ... on Product { name } }
	}`, nil)
	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{
		"a": []any{map[string]any{"name": "Table"}},
		"b": []any{map[string]any{"name": "Couch"}},
	}, res.Data)
}

func TestPlanThenBuild(t *testing.T) {
	a := NewAssembly()
	a.AddMetadata(PartialTypeMetadata{TypeName: "Product", Keys: []KeyDeclaration{{"upc"}}})
	plan, err := a.Plan(productsSchema(), false)
	require.NoError(t, err)
	require.Equal(t, []string{"Product"}, plan.Entities)
	require.Equal(t, []KeyDeclaration{{"upc"}}, plan.Metadata["Product"].Keys)

	// Resolvers registered after planning are part of the build.
	a.RegisterEntityResolver(ByName("Product"), Sync(func(rep Representation) any {
		upc, _ := rep.GetString("upc")
		return catalog[upc]
	}))
	sg, err := plan.Build(productsBase(), Options{})
	require.NoError(t, err)
	require.Equal(t, plan.Entities, sg.Entities)

	res := execute(t, sg, `{ _entities(representations: [{__typename: "Product", upc: "1"}]) { ... on Product { name } } }`, nil)
	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{"_entities": []any{map[string]any{"name": "Table"}}}, res.Data)
}

func TestSubgraphLeavesInputSchemaUntouched(t *testing.T) {
	sch := productsSchema()
	before := schema.Render(sch)
	sg, err := productsAssembly().Build(productsBase(), sch, Options{})
	require.NoError(t, err)

	require.Equal(t, before, schema.Render(sch))
	require.Nil(t, sch.Types[EntityUnion])
	require.NotNil(t, sg.Schema.Types[EntityUnion])
	require.NotNil(t, sg.Schema.Types[AnyScalar])
	require.NotNil(t, sg.Schema.Directives["key"])
	require.NotNil(t, sg.Schema.Root("query").Field(EntitiesField))
	require.True(t, sg.Schema.Root("query").Field(EntitiesField).Async)
}

func TestSubgraphWithoutEntities(t *testing.T) {
	sch := schema.NewSchema("").AddBuiltins()
	sch.AddType(schema.NewType("Review", schema.TypeKindObject, "").
		AddField(schema.NewField("body", "", schema.NamedType("String"))))

	sg, err := NewAssembly().Build(executortest.New(), sch, Options{})
	require.NoError(t, err)
	require.Empty(t, sg.Entities)
	require.Nil(t, sg.Schema.Types[EntityUnion])

	query := sg.Schema.Root("query")
	require.NotNil(t, query)
	require.Nil(t, query.Field(EntitiesField))
	require.NotNil(t, query.Field(ServiceField))

	res := execute(t, sg, `{ _service { sdl } }`, nil)
	require.Empty(t, res.Errors)
	require.Equal(t, "type Review {\n  body: String\n}\n", res.Data.(map[string]any)["_service"].(map[string]any)["sdl"])

	_, err = NewAssembly().Build(executortest.New(), sch, Options{RequireEntities: true})
	require.ErrorIs(t, err, ErrEmptyEntityUnion)
}

func TestSubgraphRejectsInvalidMetadata(t *testing.T) {
	sch := productsSchema()
	sch.AddType(schema.NewType("Node", schema.TypeKindInterface, "").
		AddField(schema.NewField("id", "", schema.NonNullType(schema.NamedType("ID")))))

	a := NewAssembly()
	a.AddMetadata(
		PartialTypeMetadata{TypeName: "Missing", Keys: []KeyDeclaration{{"id"}}},
		PartialTypeMetadata{TypeName: "Node", Keys: []KeyDeclaration{{"id"}}},
		PartialTypeMetadata{TypeName: "Product", Fields: []FieldDeclaration{{Name: "weight", Marker: FieldMarker{External: true}}}},
	)
	_, err := a.Build(productsBase(), sch, Options{})
	require.Error(t, err)
	require.Contains(t, err.Error(), `unknown type "Missing"`)
	require.Contains(t, err.Error(), `@key on INTERFACE "Node"`)
	require.Contains(t, err.Error(), "unknown field Product.weight")
}

func TestSubgraphUnresolvableResolverType(t *testing.T) {
	a := productsAssembly()
	a.RegisterEntityResolver(TypeOf[unbound](), Sync(func(Representation) any { return nil }))

	_, err := a.Build(productsBase(), productsSchema(), Options{NameResolution: bindings})
	var unresolvable *UnresolvableRuntimeTypeError
	require.ErrorAs(t, err, &unresolvable)
}

func TestSubgraphFieldSetSerialization(t *testing.T) {
	sg, err := productsAssembly().Build(productsBase(), productsSchema(), Options{})
	require.NoError(t, err)

	v, err := sg.Runtime.SerializeLeafValue(context.Background(), FieldSetScalar, "upc")
	require.NoError(t, err)
	require.Equal(t, "upc", v)
	_, err = sg.Runtime.SerializeLeafValue(context.Background(), FieldSetScalar, 3)
	require.Error(t, err)
}
