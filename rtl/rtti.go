package rtl

import (
	"fmt"
	"strings"
)

// MethodDescriptor is the published RTTI of one method. It is used for
// name- and signature-based reflection only; calls go through the vtable.
type MethodDescriptor struct {
	Name    string
	Ordinal int
	Kind    MethodKind
	Params  []Param
	Result  *TypeTag // nil for procedures
}

// ParamCount returns the number of formal parameters.
func (md *MethodDescriptor) ParamCount() int {
	return len(md.Params)
}

// Signature renders the descriptor as "name(p: type; ...): result".
func (md *MethodDescriptor) Signature() string {
	var b strings.Builder
	b.WriteString(md.Name)
	b.WriteByte('(')
	for i, p := range md.Params {
		if i > 0 {
			b.WriteString("; ")
		}
		switch {
		case p.Flags&ParamVar != 0:
			b.WriteString("var ")
		case p.Flags&ParamConst != 0:
			b.WriteString("const ")
		case p.Flags&ParamOut != 0:
			b.WriteString("out ")
		}
		b.WriteString(p.Name)
		b.WriteString(": ")
		b.WriteString(p.Type.String())
	}
	b.WriteByte(')')
	if md.Result != nil {
		b.WriteString(": ")
		b.WriteString(md.Result.String())
	}
	return b.String()
}

// FieldDescriptor is the published RTTI of one field.
type FieldDescriptor struct {
	Name    string
	Ordinal int
	Type    TypeTag
}

// ClassInfo holds the RTTI a class publishes about its own members.
// Inherited members live on the ancestor's ClassInfo; lookups walk Ancestor.
type ClassInfo struct {
	Name     string
	Ancestor *ClassInfo

	methods []*MethodDescriptor
	fields  []*FieldDescriptor
}

func newClassInfo(name string, ancestor *ClassInfo) *ClassInfo {
	return &ClassInfo{Name: name, Ancestor: ancestor}
}

// AddMethod appends a method descriptor and assigns its ordinal.
func (ci *ClassInfo) AddMethod(md *MethodDescriptor) error {
	for _, m := range ci.methods {
		if strings.EqualFold(m.Name, md.Name) {
			return fmt.Errorf("%w: method %s.%s", ErrDuplicateMember, ci.Name, md.Name)
		}
	}
	md.Ordinal = len(ci.methods)
	ci.methods = append(ci.methods, md)
	return nil
}

// AddField appends a field descriptor and assigns its ordinal.
func (ci *ClassInfo) AddField(fd *FieldDescriptor) error {
	for _, f := range ci.fields {
		if strings.EqualFold(f.Name, fd.Name) {
			return fmt.Errorf("%w: field %s.%s", ErrDuplicateMember, ci.Name, fd.Name)
		}
	}
	fd.Ordinal = len(ci.fields)
	ci.fields = append(ci.fields, fd)
	return nil
}

// NumMethods returns the number of methods this class publishes itself.
func (ci *ClassInfo) NumMethods() int { return len(ci.methods) }

// NumFields returns the number of fields this class publishes itself.
func (ci *ClassInfo) NumFields() int { return len(ci.fields) }

// Method returns the i-th own method descriptor.
func (ci *ClassInfo) Method(i int) *MethodDescriptor { return ci.methods[i] }

// Field returns the i-th own field descriptor.
func (ci *ClassInfo) Field(i int) *FieldDescriptor { return ci.fields[i] }

// Methods returns a copy of the own method descriptors in ordinal order.
func (ci *ClassInfo) Methods() []*MethodDescriptor {
	result := make([]*MethodDescriptor, len(ci.methods))
	copy(result, ci.methods)
	return result
}

// Fields returns a copy of the own field descriptors in ordinal order.
func (ci *ClassInfo) Fields() []*FieldDescriptor {
	result := make([]*FieldDescriptor, len(ci.fields))
	copy(result, ci.fields)
	return result
}

// FindMethod looks a method up by case-insensitive name, most-derived first.
// Returns nil if no class in the chain publishes it.
func (ci *ClassInfo) FindMethod(name string) *MethodDescriptor {
	if name == "" {
		return nil
	}
	for ti := ci; ti != nil; ti = ti.Ancestor {
		for _, m := range ti.methods {
			if strings.EqualFold(m.Name, name) {
				return m
			}
		}
	}
	return nil
}

// FindField looks a field up by case-insensitive name, most-derived first.
// Returns nil if no class in the chain publishes it.
func (ci *ClassInfo) FindField(name string) *FieldDescriptor {
	if name == "" {
		return nil
	}
	for ti := ci; ti != nil; ti = ti.Ancestor {
		for _, f := range ti.fields {
			if strings.EqualFold(f.Name, name) {
				return f
			}
		}
	}
	return nil
}
