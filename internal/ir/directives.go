package ir

import (
	"fmt"
	"strings"

	language "github.com/hanpama/fedgraph/internal/language"
)

// federationDirectives are defined by the subgraph itself. User SDL may
// declare them; those declarations are ignored.
var federationDirectives = map[string]bool{
	"key":      true,
	"extends":  true,
	"external": true,
	"requires": true,
	"provides": true,
}

func isTypeDirective(name string) bool  { return name == "key" || name == "extends" }
func isFieldDirective(name string) bool { return federationDirectives[name] && !isTypeDirective(name) }

func (b *builder) defineDirectives() {
	for _, pd := range b.docs {
		for _, dd := range pd.doc.Directives {
			if federationDirectives[dd.Name] {
				continue
			}
			if _, ok := b.directives[dd.Name]; ok {
				b.report(dd.Position, "Directive @%s is already defined", dd.Name)
				continue
			}
			def := &DirectiveDefinition{
				Name:        dd.Name,
				Description: dd.Description,
				Repeatable:  dd.IsRepeatable,
			}
			for _, loc := range dd.Locations {
				def.Locations = append(def.Locations, string(loc))
			}
			for _, arg := range dd.Arguments {
				def.Args = append(def.Args, b.inputValue(arg.Name, arg.Description, arg.Type, arg.DefaultValue))
			}
			b.directives[dd.Name] = def
			doc := b.documents[pd.id]
			doc.Directives = append(doc.Directives, dd.Name)
		}
	}
}

// applyDirectives interprets directive uses in source order and records
// one FederationDeclaration per object node that uses federation directives.
func (b *builder) applyDirectives() {
	for _, pd := range b.docs {
		for _, node := range sourceOrder(pd.doc) {
			def := b.types[node.Name]
			if def == nil {
				continue
			}
			decl := &FederationDeclaration{
				TypeName: node.Name,
				Source:   sourceOf(node.Position),
				Extends:  def.ExtensionOnly && b.extensions[node],
			}
			b.applyTypeDirectives(def, node, decl)

			switch node.Kind {
			case language.Object:
				for _, fn := range node.Fields {
					if fd := def.Field(fn.Name); fd != nil {
						b.applyObjectFieldDirectives(node, fd, fn, decl)
					}
				}
				if len(decl.Keys) > 0 || decl.Extends || len(decl.Fields) > 0 {
					b.federation = append(b.federation, decl)
				}
			case language.Interface:
				for _, fn := range node.Fields {
					if fd := def.Field(fn.Name); fd != nil {
						b.applyInterfaceFieldDirectives(node, fd, fn)
					}
				}
			case language.InputObject:
				for _, fn := range node.Fields {
					if v := def.InputField(fn.Name); v != nil {
						v.Deprecation = b.memberDirectives(node, fn.Name, fn.Directives)
					}
				}
			case language.Enum:
				for _, vn := range node.EnumValues {
					if v := def.Value(vn.Name); v != nil {
						v.Deprecation = b.memberDirectives(node, vn.Name, vn.Directives)
					}
				}
			}
		}
	}
}

func (b *builder) applyTypeDirectives(def *Definition, node *language.Definition, decl *FederationDeclaration) {
	for _, dir := range node.Directives {
		switch {
		case isTypeDirective(dir.Name) && node.Kind != language.Object:
			b.report(dir.Position, "Directive @%s is only allowed on OBJECT types, found on %s type %s", dir.Name, node.Kind, node.Name)
		case dir.Name == "key":
			if b.isRoot(node.Name) {
				b.report(dir.Position, "Root operation type %s cannot declare @key", node.Name)
				continue
			}
			if fields, ok := b.fieldSet(dir); ok {
				decl.Keys = append(decl.Keys, fields)
			}
		case dir.Name == "extends":
			b.noArguments(dir)
			decl.Extends = true
		case isFieldDirective(dir.Name):
			b.report(dir.Position, "Directive @%s is only allowed on fields, found on %s type %s", dir.Name, node.Kind, node.Name)
		case dir.Name == "specifiedBy" && node.Kind == language.Scalar:
			def.SpecifiedBy = b.stringArgument(dir, "url", "")
			if def.SpecifiedBy == "" {
				b.report(dir.Position, "Directive @specifiedBy requires a 'url' argument")
			}
		case dir.Name == "oneOf" && node.Kind == language.InputObject:
			b.noArguments(dir)
			def.OneOf = true
		case b.directives[dir.Name] == nil:
			b.report(dir.Position, "Unknown directive @%s on %s type %s", dir.Name, node.Kind, node.Name)
		}
	}
}

func (b *builder) applyObjectFieldDirectives(node *language.Definition, fd *Field, fn *language.FieldDefinition, decl *FederationDeclaration) {
	marker := &FederationField{Name: fn.Name}
	for _, dir := range fn.Directives {
		switch dir.Name {
		case "external":
			b.noArguments(dir)
			marker.External = true
		case "requires":
			marker.Requires, _ = b.fieldSet(dir)
		case "provides":
			marker.Provides, _ = b.fieldSet(dir)
		case "key", "extends":
			b.report(dir.Position, "Directive @%s is only allowed on types, found on field %s of type %s", dir.Name, fn.Name, node.Name)
		case "deprecated":
			fd.Deprecation = b.deprecation(dir)
		default:
			b.checkDeclared(dir, node, fn.Name)
		}
	}
	if marker.External || marker.Requires != "" || marker.Provides != "" {
		decl.Fields = append(decl.Fields, marker)
	}
	b.applyArgumentDirectives(fd, fn)
}

func (b *builder) applyInterfaceFieldDirectives(node *language.Definition, fd *Field, fn *language.FieldDefinition) {
	for _, dir := range fn.Directives {
		switch {
		case dir.Name == "deprecated":
			fd.Deprecation = b.deprecation(dir)
		case federationDirectives[dir.Name]:
			b.report(dir.Position, "Directive @%s is not allowed on interface field %q", dir.Name, fn.Name)
		default:
			b.checkDeclared(dir, node, fn.Name)
		}
	}
	b.applyArgumentDirectives(fd, fn)
}

func (b *builder) applyArgumentDirectives(fd *Field, fn *language.FieldDefinition) {
	for _, an := range fn.Arguments {
		arg := fd.Arg(an.Name)
		for _, dir := range an.Directives {
			switch {
			case dir.Name == "deprecated" && arg != nil:
				arg.Deprecation = b.deprecation(dir)
			case b.directives[dir.Name] == nil:
				b.report(dir.Position, "Unknown directive @%s on argument %s", dir.Name, an.Name)
			}
		}
	}
}

// memberDirectives checks the directives of an input field or enum value
// and returns its deprecation, if any.
func (b *builder) memberDirectives(node *language.Definition, member string, dirs language.DirectiveList) *Deprecation {
	var dep *Deprecation
	for _, dir := range dirs {
		if dir.Name == "deprecated" {
			dep = b.deprecation(dir)
			continue
		}
		b.checkDeclared(dir, node, member)
	}
	return dep
}

func (b *builder) checkDeclared(dir *language.Directive, node *language.Definition, member string) {
	if b.directives[dir.Name] == nil {
		b.report(dir.Position, "Unknown directive @%s on field %s of type %s", dir.Name, member, node.Name)
	}
}

// fieldSet reads the mandatory `fields` argument of @key, @requires and
// @provides.
func (b *builder) fieldSet(dir *language.Directive) (string, bool) {
	var fields *language.Value
	for _, arg := range dir.Arguments {
		if arg.Name != "fields" {
			b.report(arg.Position, "Unknown argument '%s' in @%s directive", arg.Name, dir.Name)
			continue
		}
		fields = arg.Value
	}
	switch {
	case fields == nil:
		b.report(dir.Position, "Directive @%s requires a 'fields' argument", dir.Name)
	case fields.Kind != language.StringValue:
		b.report(fields.Position, "Expected a string value")
	case strings.TrimSpace(fields.Raw) == "":
		b.report(dir.Position, "Directive @%s must select at least one field", dir.Name)
	default:
		return strings.TrimSpace(fields.Raw), true
	}
	return "", false
}

func (b *builder) deprecation(dir *language.Directive) *Deprecation {
	return &Deprecation{Reason: b.stringArgument(dir, "reason", "No longer supported")}
}

// stringArgument returns the string argument name of dir, or fallback when
// it is absent. Other arguments are reported.
func (b *builder) stringArgument(dir *language.Directive, name, fallback string) string {
	out := fallback
	for _, arg := range dir.Arguments {
		switch {
		case arg.Name != name:
			b.report(arg.Position, "Unknown argument '%s' in @%s directive", arg.Name, dir.Name)
		case arg.Value.Kind != language.StringValue && arg.Value.Kind != language.BlockValue:
			b.report(arg.Value.Position, "Expected a string value")
		default:
			out = arg.Value.Raw
		}
	}
	return out
}

func (b *builder) noArguments(dir *language.Directive) {
	for _, arg := range dir.Arguments {
		b.report(arg.Position, "Directive @%s does not accept arguments", dir.Name)
	}
}

func sourceOf(pos *language.Position) string {
	if pos == nil || pos.Src == nil {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", pos.Src.Name, pos.Line, pos.Column)
}
