package entityrpc

import (
	"fmt"

	"github.com/hanpama/fedgraph/internal/federation"
	"github.com/hanpama/fedgraph/internal/value"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Register binds every entity type of c to a resolver that calls the
// type's contract method through caller.
func Register(b *federation.RegistryBuilder, c *Contract, caller Caller) {
	for _, name := range c.Types() {
		federation.AddEntityResolverByName(b, name, Resolver(c.Method(name), caller))
	}
}

// Resolver returns an entity resolver backed by one contract method. The
// representation travels as a JSON object; the entity comes back as a JSON
// object decoded into a value.Value, and an empty payload means not found.
func Resolver(md protoreflect.MethodDescriptor, caller Caller) federation.ResolverFn {
	return func(rc *federation.ResolutionContext) (any, error) {
		payload, err := rc.Representation.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("encode representation: %w", err)
		}

		req := dynamicpb.NewMessage(md.Input())
		fields := md.Input().Fields()
		req.Set(fields.ByName(typenameField), protoreflect.ValueOfString(rc.TypeName()))
		req.Set(fields.ByName(representationField), protoreflect.ValueOfBytes(payload))

		resp, err := caller.Call(rc.Context(), md, req)
		if err != nil {
			return nil, err
		}
		return decodeEntity(resp)
	}
}

func decodeEntity(resp protoreflect.Message) (any, error) {
	fd := resp.Descriptor().Fields().ByName(entityField)
	if fd == nil {
		return nil, fmt.Errorf("missing %s field in response", entityField)
	}
	raw := resp.Get(fd).Bytes()
	if len(raw) == 0 {
		return nil, nil
	}
	v, err := value.ParseJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("decode entity: %w", err)
	}
	switch v.Kind() {
	case value.KindNull:
		return nil, nil
	case value.KindMap:
		return v, nil
	}
	return nil, fmt.Errorf("entity payload must be a JSON object, got %s", v.Kind())
}
