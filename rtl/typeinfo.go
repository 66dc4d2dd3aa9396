package rtl

import (
	"fmt"
	"strings"
)

// TypeKind classifies a type tag.
type TypeKind uint8

const (
	KindUnknown TypeKind = iota
	KindInteger
	KindChar
	KindString
	KindEnumeration
	KindSet
	KindDouble
	KindBool
	KindProcVar
	KindMethod
	KindArray
	KindDynArray
	KindRecord
	KindClass
	KindClassRef
	KindPointer
	KindJSValue
	KindRefToProcVar
	KindInterface
	KindHelper
	KindExtClass
)

var kindNames = [...]string{
	KindUnknown:      "unknown",
	KindInteger:      "integer",
	KindChar:         "char",
	KindString:       "string",
	KindEnumeration:  "enumeration",
	KindSet:          "set",
	KindDouble:       "double",
	KindBool:         "bool",
	KindProcVar:      "procvar",
	KindMethod:       "method",
	KindArray:        "array",
	KindDynArray:     "dynarray",
	KindRecord:       "record",
	KindClass:        "class",
	KindClassRef:     "classref",
	KindPointer:      "pointer",
	KindJSValue:      "jsvalue",
	KindRefToProcVar: "reftoprocvar",
	KindInterface:    "interface",
	KindHelper:       "helper",
	KindExtClass:     "extclass",
}

func (k TypeKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("TypeKind(%d)", uint8(k))
}

// ParseTypeKind maps a kind name (case-insensitive) to its TypeKind.
// "float" and "boolean" are accepted as aliases.
func ParseTypeKind(s string) (TypeKind, error) {
	name := strings.ToLower(s)
	switch name {
	case "float":
		return KindDouble, nil
	case "boolean":
		return KindBool, nil
	}
	for k, n := range kindNames {
		if n == name {
			return TypeKind(k), nil
		}
	}
	return KindUnknown, fmt.Errorf("rtl: unknown type kind %q", s)
}

// TypeTag identifies the declared type of a field, parameter or result.
// Name is optional and carries the named type (e.g. a class name) when the
// kind alone is not descriptive enough.
type TypeTag struct {
	Kind TypeKind
	Name string
}

// Predeclared tags.
var (
	TagInteger   = TypeTag{Kind: KindInteger, Name: "longint"}
	TagString    = TypeTag{Kind: KindString, Name: "string"}
	TagDouble    = TypeTag{Kind: KindDouble, Name: "double"}
	TagBool      = TypeTag{Kind: KindBool, Name: "boolean"}
	TagChar      = TypeTag{Kind: KindChar, Name: "char"}
	TagPointer   = TypeTag{Kind: KindPointer, Name: "pointer"}
	TagJSValue   = TypeTag{Kind: KindJSValue, Name: "jsvalue"}
	TagObject    = TypeTag{Kind: KindClass, Name: "TObject"}
	TagInterface = TypeTag{Kind: KindInterface, Name: "IUnknown"}
)

var predeclared = map[TypeKind]TypeTag{
	KindInteger:   TagInteger,
	KindString:    TagString,
	KindDouble:    TagDouble,
	KindBool:      TagBool,
	KindChar:      TagChar,
	KindPointer:   TagPointer,
	KindJSValue:   TagJSValue,
	KindClass:     TagObject,
	KindInterface: TagInterface,
}

// ParseTypeTag accepts either a kind name ("double") or "kind:Name"
// ("class:TShape"). A bare kind name yields its predeclared tag if any.
func ParseTypeTag(s string) (TypeTag, error) {
	kind, name, _ := strings.Cut(s, ":")
	k, err := ParseTypeKind(kind)
	if err != nil {
		return TypeTag{}, err
	}
	if name != "" {
		return TypeTag{Kind: k, Name: name}, nil
	}
	if tag, ok := predeclared[k]; ok {
		return tag, nil
	}
	return TypeTag{Kind: k}, nil
}

// String renders the type name, falling back to the kind.
func (t TypeTag) String() string {
	if t.Name == "" {
		return t.Kind.String()
	}
	return t.Name
}

// Text renders the tag in the form ParseTypeTag accepts.
func (t TypeTag) Text() string {
	if tag, ok := predeclared[t.Kind]; ok && tag == t {
		return t.Kind.String()
	}
	if t.Name == "" {
		return t.Kind.String()
	}
	return t.Kind.String() + ":" + t.Name
}

// Zero returns the value a field of this type holds after its field-init step.
func (t TypeTag) Zero() any {
	switch t.Kind {
	case KindInteger, KindEnumeration:
		return int64(0)
	case KindChar, KindString:
		return ""
	case KindDouble:
		return float64(0)
	case KindBool:
		return false
	default:
		return nil
	}
}

// ParamFlags qualify how a parameter is passed.
type ParamFlags uint8

const (
	ParamVar ParamFlags = 1 << iota
	ParamConst
	ParamOut
)

// ParseParamFlags parses a comma separated flag list ("var", "const", "out").
func ParseParamFlags(s string) (ParamFlags, error) {
	var f ParamFlags
	for _, part := range strings.Split(s, ",") {
		switch strings.TrimSpace(strings.ToLower(part)) {
		case "":
		case "var":
			f |= ParamVar
		case "const":
			f |= ParamConst
		case "out":
			f |= ParamOut
		default:
			return 0, fmt.Errorf("rtl: unknown parameter flag %q", part)
		}
	}
	return f, nil
}

// Param describes one formal parameter of a published method.
type Param struct {
	Name  string
	Type  TypeTag
	Flags ParamFlags
}

// MethodKind distinguishes procedures, functions and lifecycle methods.
type MethodKind uint8

const (
	MethodProcedure MethodKind = iota
	MethodFunction
	MethodConstructor
	MethodDestructor
	MethodClassProcedure
	MethodClassFunction
)

var methodKindNames = [...]string{
	MethodProcedure:      "procedure",
	MethodFunction:       "function",
	MethodConstructor:    "constructor",
	MethodDestructor:     "destructor",
	MethodClassProcedure: "class procedure",
	MethodClassFunction:  "class function",
}

func (k MethodKind) String() string {
	if int(k) < len(methodKindNames) {
		return methodKindNames[k]
	}
	return fmt.Sprintf("MethodKind(%d)", uint8(k))
}

// ParseMethodKind maps a method kind name to its MethodKind.
// Both "class function" and "class-function" spellings are accepted.
func ParseMethodKind(s string) (MethodKind, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", " ")
	if name == "" {
		return MethodProcedure, nil
	}
	for k, n := range methodKindNames {
		if n == name {
			return MethodKind(k), nil
		}
	}
	return MethodProcedure, fmt.Errorf("rtl: unknown method kind %q", s)
}
