package schema

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/acksell/ddbdecl/dynamodb/table"
)

// TagName is the struct tag holding key and index declarations.
//
//	type User struct {
//	    ID    string `dynamodbav:"id" ddb:"key"`
//	    Org   string `dynamodbav:"org" ddb:"index=byOrg"`
//	    Email string `dynamodbav:"email" ddb:"index=byOrg,range;index=byEmail"`
//	}
//
// Declarations on one field are separated by ';'. Each declaration starts with
// "key" or "index[=name]" followed by options:
//
//	hash, range           key role, hash is the default
//	autogen, noautogen    fill the key with a generated ID on put (keys only)
//	projection=all        index projection: keys_only (default) or all
//	kind=S|N|B            attribute type, for types that are not inferred
const TagName = "ddb"

var timeType = reflect.TypeOf(time.Time{})

type declKind int

const (
	declKey declKind = iota
	declIndex
)

type declaration struct {
	kind       declKind
	index      string
	role       table.KeyRole
	autogen    *bool
	projection *table.Projection
	attrKind   table.KeyKind
}

type fieldDecl struct {
	attr  string
	kind  table.KeyKind
	goTyp reflect.Type
	index []int
	decls []declaration
}

// candidate is an exported field visible to the marshaler before name conflicts are resolved.
type candidate struct {
	field reflect.StructField
	attr  string
	index []int
	// Named by a dynamodbav tag rather than the Go field name.
	named bool
}

func (c candidate) depth() int { return len(c.index) - 1 }

// collectFields walks the exported fields of t, including embedded structs,
// and returns every visible field carrying at least one declaration in field order.
func collectFields(t reflect.Type) ([]fieldDecl, error) {
	var cands []candidate
	if err := walkFields(t, nil, &cands); err != nil {
		return nil, err
	}
	visible := visibleFields(cands)

	var out []fieldDecl
	for i, c := range cands {
		if pos, ok := visible[c.attr]; !ok || pos != i {
			continue
		}
		tag, ok := c.field.Tag.Lookup(TagName)
		if !ok || tag == "" {
			continue
		}
		decls, err := parseDeclarations(tag)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", c.field.Name, err)
		}
		kind, err := attributeKind(c.field.Type, decls)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", c.field.Name, err)
		}
		out = append(out, fieldDecl{
			attr:  c.attr,
			kind:  kind,
			goTyp: c.field.Type,
			index: c.index,
			decls: decls,
		})
	}
	return out, nil
}

func walkFields(t reflect.Type, index []int, out *[]candidate) error {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldIndex := append(append([]int{}, index...), i)

		// Embedded structs without an explicit name are flattened by attributevalue.
		if field.Anonymous && !hasNameTag(field) {
			ft := field.Type
			if ft.Kind() == reflect.Ptr {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				if err := walkFields(ft, fieldIndex, out); err != nil {
					return err
				}
				continue
			}
		}
		if !field.IsExported() {
			continue
		}
		attr := getTagName(field)
		if attr == "-" {
			if _, ok := field.Tag.Lookup(TagName); ok {
				return fmt.Errorf("field %s: declared as %s but ignored by the marshaler", field.Name, TagName)
			}
			continue
		}
		*out = append(*out, candidate{
			field: field,
			attr:  attr,
			index: fieldIndex,
			named: hasNameTag(field),
		})
	}
	return nil
}

// visibleFields resolves attribute name conflicts the way attributevalue and
// encoding/json do: the shallowest field wins, then the one named by a tag.
// A remaining tie hides the name altogether. It returns the position in cands
// of the field that owns each visible name.
func visibleFields(cands []candidate) map[string]int {
	byName := make(map[string][]int)
	for i, c := range cands {
		byName[c.attr] = append(byName[c.attr], i)
	}
	visible := make(map[string]int, len(byName))
	for name, positions := range byName {
		best, tie := positions[0], false
		for _, i := range positions[1:] {
			b, c := cands[best], cands[i]
			switch {
			case c.depth() < b.depth(), c.depth() == b.depth() && c.named && !b.named:
				best, tie = i, false
			case c.depth() == b.depth() && c.named == b.named:
				tie = true
			}
		}
		if !tie {
			visible[name] = best
		}
	}
	return visible
}

func parseDeclarations(tag string) ([]declaration, error) {
	var decls []declaration
	for _, raw := range strings.Split(tag, ";") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		d, err := parseDeclaration(raw)
		if err != nil {
			return nil, err
		}
		decls = append(decls, d)
	}
	if len(decls) == 0 {
		return nil, fmt.Errorf("empty %s tag", TagName)
	}
	return decls, nil
}

func parseDeclaration(raw string) (declaration, error) {
	parts := strings.Split(raw, ",")
	head, headVal, _ := strings.Cut(strings.TrimSpace(parts[0]), "=")

	var d declaration
	switch head {
	case "key":
		if headVal != "" {
			return d, fmt.Errorf("key declaration does not take a name: %q", raw)
		}
		d.kind = declKey
	case "index":
		d.kind = declIndex
		d.index = headVal
	default:
		return d, fmt.Errorf("unknown declaration %q, want key or index", head)
	}

	for _, opt := range parts[1:] {
		name, val, _ := strings.Cut(strings.TrimSpace(opt), "=")
		switch name {
		case "hash":
			d.role = table.KeyRoleHash
		case "range", "sort":
			d.role = table.KeyRoleRange
		case "autogen", "noautogen":
			if d.kind != declKey {
				return d, fmt.Errorf("option %q only applies to keys", name)
			}
			on := name == "autogen"
			d.autogen = &on
		case "projection":
			if d.kind != declIndex {
				return d, fmt.Errorf("option %q only applies to indexes", name)
			}
			pt, err := table.ParseProjectionType(val)
			if err != nil {
				return d, err
			}
			if pt == table.ProjectInclude {
				return d, fmt.Errorf("projection include needs attributes, use the IndexProjection table option")
			}
			d.projection = &table.Projection{Type: pt}
		case "kind":
			k := table.KeyKind(strings.ToUpper(val))
			if !k.Valid() {
				return d, fmt.Errorf("invalid kind %q", val)
			}
			d.attrKind = k
		case "":
		default:
			return d, fmt.Errorf("unknown option %q", name)
		}
	}
	return d, nil
}

// attributeKind infers the DynamoDB scalar type of a key field from its Go type.
func attributeKind(t reflect.Type, decls []declaration) (table.KeyKind, error) {
	var explicit table.KeyKind
	for _, d := range decls {
		if d.attrKind == "" {
			continue
		}
		if explicit != "" && explicit != d.attrKind {
			return "", fmt.Errorf("conflicting kinds %q and %q", explicit, d.attrKind)
		}
		explicit = d.attrKind
	}
	if explicit != "" {
		return explicit, nil
	}

	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == timeType {
		return table.KeyKindS, nil
	}
	switch t.Kind() {
	case reflect.String:
		return table.KeyKindS, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return table.KeyKindN, nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return table.KeyKindB, nil
		}
	}
	return "", fmt.Errorf("type %s can not be used as a key, set kind= explicitly", t)
}

// getTagName extracts the attribute name the way attributevalue.Marshal does:
// the dynamodbav tag name, or the field name when the tag has none. Other tags,
// json included, are not consulted.
func getTagName(field reflect.StructField) string {
	if hasNameTag(field) {
		return parseTagName(field.Tag.Get("dynamodbav"))
	}
	return field.Name
}

func hasNameTag(field reflect.StructField) bool {
	tag, ok := field.Tag.Lookup("dynamodbav")
	return ok && parseTagName(tag) != ""
}

// parseTagName extracts the name part from a tag value like "name,omitempty".
func parseTagName(tag string) string {
	if idx := strings.Index(tag, ","); idx != -1 {
		return tag[:idx]
	}
	return tag
}
