package entityrpc

import (
	"strings"

	"github.com/jhump/protoreflect/v2/protobuilder"
	"google.golang.org/protobuf/reflect/protoreflect"
)

const (
	serviceName         protoreflect.Name = "EntityService"
	requestMessage      protoreflect.Name = "ResolveEntityRequest"
	responseMessage     protoreflect.Name = "ResolveEntityResponse"
	typenameField       protoreflect.Name = "typename"
	representationField protoreflect.Name = "representation"
	entityField         protoreflect.Name = "entity"
)

func nameEntityMethod(typeName string) protoreflect.Name {
	return protoreflect.Name("Resolve" + capitalize(typeName) + "Entity")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func comment(desc string) protobuilder.Comments {
	if desc == "" {
		return protobuilder.Comments{}
	}
	lines := strings.Split(desc, "\n")
	for i, line := range lines {
		lines[i] = " " + line
	}
	return protobuilder.Comments{LeadingComment: strings.Join(lines, "\n") + "\n"}
}
