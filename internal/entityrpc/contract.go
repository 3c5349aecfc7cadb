package entityrpc

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hanpama/fedgraph/internal/federation"
	"github.com/jhump/protoreflect/v2/protobuilder"
	"github.com/jhump/protoreflect/v2/protoprint"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// DefaultPackage is the proto package of the entity contract.
const DefaultPackage = "fedgraph.entities"

// Contract is the gRPC contract entity backends implement: one
// EntityService with a Resolve<Type>Entity method per entity type.
//
//	message ResolveEntityRequest {
//	  string typename = 1;
//	  bytes representation = 2; // JSON object
//	}
//	message ResolveEntityResponse {
//	  bytes entity = 1; // JSON object, empty when not found
//	}
type Contract struct {
	file    protoreflect.FileDescriptor
	methods map[string]protoreflect.MethodDescriptor
	types   []string
}

// BuildContract builds the contract for the given entity types. metadata
// supplies the keys documented on each method.
func BuildContract(pkg string, entities []string, metadata map[string]*federation.TypeMetadata) (*Contract, error) {
	if pkg == "" {
		pkg = DefaultPackage
	}
	names := append([]string(nil), entities...)
	sort.Strings(names)

	fb := protobuilder.NewFile(strings.ReplaceAll(pkg, ".", "/") + "/entities.proto")
	fb.SetPackageName(protoreflect.FullName(pkg))
	fb.SetSyntax(protoreflect.Proto3)

	request := protobuilder.NewMessage(requestMessage)
	request.SetComments(comment("Representation of one entity sent by the gateway."))
	typename := protobuilder.NewField(typenameField, protobuilder.FieldTypeScalar(protoreflect.StringKind))
	typename.SetNumber(1)
	representation := protobuilder.NewField(representationField, protobuilder.FieldTypeScalar(protoreflect.BytesKind))
	representation.SetNumber(2)
	representation.SetComments(comment("JSON object including __typename and the key fields."))
	request.AddField(typename)
	request.AddField(representation)

	response := protobuilder.NewMessage(responseMessage)
	entity := protobuilder.NewField(entityField, protobuilder.FieldTypeScalar(protoreflect.BytesKind))
	entity.SetNumber(1)
	entity.SetComments(comment("JSON object of the entity. Empty when the entity does not exist."))
	response.AddField(entity)

	fb.AddMessage(request)
	fb.AddMessage(response)

	svc := protobuilder.NewService(serviceName)
	for _, name := range names {
		mb := protobuilder.NewMethod(
			nameEntityMethod(name),
			protobuilder.RpcTypeMessage(request, false),
			protobuilder.RpcTypeMessage(response, false),
		)
		mb.SetComments(comment(keysComment(name, metadata[name])))
		svc.AddMethod(mb)
	}
	fb.AddService(svc)

	fd, err := fb.Build()
	if err != nil {
		return nil, fmt.Errorf("entityrpc: build contract: %w", err)
	}

	c := &Contract{file: fd, methods: make(map[string]protoreflect.MethodDescriptor, len(names)), types: names}
	methods := fd.Services().ByName(serviceName).Methods()
	for _, name := range names {
		c.methods[name] = methods.ByName(nameEntityMethod(name))
	}
	return c, nil
}

func keysComment(name string, md *federation.TypeMetadata) string {
	if md == nil || len(md.Keys) == 0 {
		return "Resolves " + name
	}
	keys := make([]string, len(md.Keys))
	for i, k := range md.Keys {
		keys[i] = k.FieldSet
	}
	return fmt.Sprintf("Resolves %s by key: %s", name, strings.Join(keys, " | "))
}

// File returns the contract's file descriptor.
func (c *Contract) File() protoreflect.FileDescriptor { return c.file }

// Types returns the entity type names of the contract in sorted order.
func (c *Contract) Types() []string { return c.types }

// Method returns the method resolving typeName, or nil.
func (c *Contract) Method(typeName string) protoreflect.MethodDescriptor {
	return c.methods[typeName]
}

// Service returns the fully-qualified service name.
func (c *Contract) Service() string {
	return string(c.file.Services().ByName(serviceName).FullName())
}

// Print writes the contract as a .proto file.
func (c *Contract) Print(w io.Writer) error {
	pp := protoprint.Printer{}
	return pp.PrintProtoFile(c.file, w)
}

// WriteFile renders the contract under outDir at its file path.
func (c *Contract) WriteFile(outDir string) (string, error) {
	fp := filepath.Join(outDir, filepath.FromSlash(c.file.Path()))
	if err := os.MkdirAll(filepath.Dir(fp), 0755); err != nil {
		return "", err
	}
	f, err := os.OpenFile(fp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := c.Print(f); err != nil {
		return "", err
	}
	return fp, nil
}
