// Package decl compiles TOML unit declarations into loader units.
//
// A unit document lists the units it uses and declares interfaces and
// classes. The compiled unit's initializer registers them with a runtime in
// document order, interfaces first. Method bodies are bound by name from a
// table of native Go functions; a method without a native binding is a
// published slot that returns nil.
package decl

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/tliron/commonlog"

	"github.com/chazu/rtl/loader"
	"github.com/chazu/rtl/rtl"
)

// SystemUnit is the unit every declared unit implicitly uses.
const SystemUnit = "system"

// ErrUnknownNative is returned when a method names a native binding that
// the compiler's table does not provide.
var ErrUnknownNative = errors.New("unknown native method")

// Document is a parsed unit declaration.
type Document struct {
	Uses       []string        `toml:"uses"`
	Interfaces []InterfaceDecl `toml:"interface"`
	Classes    []ClassDecl     `toml:"class"`
}

// InterfaceDecl declares one interface.
type InterfaceDecl struct {
	Name     string   `toml:"name"`
	GUID     string   `toml:"guid"`
	Ancestor string   `toml:"ancestor"`
	Kind     string   `toml:"kind"`
	Methods  []string `toml:"methods"`
}

// ClassDecl declares one class.
type ClassDecl struct {
	Name           string            `toml:"name"`
	Ancestor       string            `toml:"ancestor"`
	Implements     []string          `toml:"implements"`
	Messages       map[string]string `toml:"messages"`
	StringMessages map[string]string `toml:"string-messages"`
	Fields         []FieldDecl       `toml:"field"`
	Methods        []MethodDecl      `toml:"method"`
}

// FieldDecl declares one published field.
type FieldDecl struct {
	Name string `toml:"name"`
	Type string `toml:"type"`
}

// MethodDecl declares one published method.
type MethodDecl struct {
	Name   string      `toml:"name"`
	Kind   string      `toml:"kind"`
	Result string      `toml:"result"`
	Native string      `toml:"native"`
	Params []ParamDecl `toml:"params"`
}

// ParamDecl declares one formal parameter.
type ParamDecl struct {
	Name  string `toml:"name"`
	Type  string `toml:"type"`
	Flags string `toml:"flags"`
}

// Parse decodes a unit document. Unknown keys are an error.
func Parse(data []byte) (*Document, error) {
	var doc Document
	md, err := toml.Decode(string(data), &doc)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return &doc, nil
}

// Compiler implements loader.Compiler for unit documents.
type Compiler struct {
	Runtime *rtl.Runtime
	Natives map[string]rtl.MethodFunc

	log commonlog.Logger
}

// NewCompiler returns a compiler registering into rt and binding method
// bodies from natives.
func NewCompiler(rt *rtl.Runtime, natives map[string]rtl.MethodFunc) *Compiler {
	return &Compiler{
		Runtime: rt,
		Natives: natives,
		log:     commonlog.GetLogger("rtl.decl"),
	}
}

// Compile parses and validates the source. Everything that can be checked
// without the runtime (GUIDs, type tags, method kinds, native bindings,
// duplicate members) is checked here. Name resolution happens when the
// initializer runs, in full before the first registration.
func (c *Compiler) Compile(src *loader.Source) (*loader.Unit, error) {
	doc, err := Parse(src.Data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.Path, err)
	}
	plan, err := c.plan(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.Path, err)
	}

	uses := doc.Uses
	if src.Name != SystemUnit && !contains(uses, SystemUnit) {
		uses = append([]string{SystemUnit}, uses...)
	}
	name := src.Name
	return &loader.Unit{
		Name: name,
		Uses: uses,
		Init: func() error {
			return c.register(name, plan)
		},
	}, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

type interfacePlan struct {
	decl InterfaceDecl
	guid rtl.GUID
	kind *rtl.InterfaceKind // nil inherits the ancestor's kind
}

type methodPlan struct {
	desc *rtl.MethodDescriptor
	fn   rtl.MethodFunc
}

type fieldPlan struct {
	name string
	tag  rtl.TypeTag
}

type classPlan struct {
	decl     ClassDecl
	fields   []fieldPlan
	methods  []methodPlan
	messages map[int]string
}

type unitPlan struct {
	interfaces []interfacePlan
	classes    []classPlan
}

func (c *Compiler) plan(doc *Document) (*unitPlan, error) {
	p := &unitPlan{}
	for _, d := range doc.Interfaces {
		if d.Name == "" {
			return nil, fmt.Errorf("interface without a name")
		}
		guid, err := rtl.ParseGUID(d.GUID)
		if err != nil {
			return nil, fmt.Errorf("interface %s: %w", d.Name, err)
		}
		ip := interfacePlan{decl: d, guid: guid}
		switch strings.ToLower(d.Kind) {
		case "":
		case "com":
			kind := rtl.KindCOM
			ip.kind = &kind
		case "corba":
			kind := rtl.KindCORBA
			ip.kind = &kind
		default:
			return nil, fmt.Errorf("interface %s: unknown kind %q", d.Name, d.Kind)
		}
		p.interfaces = append(p.interfaces, ip)
	}

	for _, d := range doc.Classes {
		if d.Name == "" {
			return nil, fmt.Errorf("class without a name")
		}
		cp, err := c.planClass(d)
		if err != nil {
			return nil, fmt.Errorf("class %s: %w", d.Name, err)
		}
		p.classes = append(p.classes, cp)
	}
	return p, nil
}

func (c *Compiler) planClass(d ClassDecl) (classPlan, error) {
	cp := classPlan{decl: d, messages: make(map[int]string, len(d.Messages))}

	for key, method := range d.Messages {
		id, err := strconv.Atoi(key)
		if err != nil {
			return cp, fmt.Errorf("message id %q is not an integer", key)
		}
		cp.messages[id] = method
	}

	seen := make(map[string]bool, len(d.Fields)+len(d.Methods))
	for _, f := range d.Fields {
		key := "field " + strings.ToLower(f.Name)
		if seen[key] {
			return cp, fmt.Errorf("%w: field %s", rtl.ErrDuplicateMember, f.Name)
		}
		seen[key] = true
		tag, err := rtl.ParseTypeTag(f.Type)
		if err != nil {
			return cp, fmt.Errorf("field %s: %w", f.Name, err)
		}
		cp.fields = append(cp.fields, fieldPlan{name: f.Name, tag: tag})
	}

	for _, m := range d.Methods {
		key := "method " + strings.ToLower(m.Name)
		if seen[key] {
			return cp, fmt.Errorf("%w: method %s", rtl.ErrDuplicateMember, m.Name)
		}
		seen[key] = true
		md, err := parseMethod(m)
		if err != nil {
			return cp, fmt.Errorf("method %s: %w", m.Name, err)
		}
		var fn rtl.MethodFunc
		if m.Native != "" {
			var ok bool
			if fn, ok = c.Natives[m.Native]; !ok {
				return cp, fmt.Errorf("method %s: %w: %s", m.Name, ErrUnknownNative, m.Native)
			}
		}
		cp.methods = append(cp.methods, methodPlan{desc: md, fn: fn})
	}
	return cp, nil
}

func parseMethod(m MethodDecl) (*rtl.MethodDescriptor, error) {
	kind, err := rtl.ParseMethodKind(m.Kind)
	if err != nil {
		return nil, err
	}
	md := &rtl.MethodDescriptor{Name: m.Name, Kind: kind}
	if m.Result != "" {
		result, err := rtl.ParseTypeTag(m.Result)
		if err != nil {
			return nil, fmt.Errorf("result: %w", err)
		}
		md.Result = &result
	}
	for _, p := range m.Params {
		tag, err := rtl.ParseTypeTag(p.Type)
		if err != nil {
			return nil, fmt.Errorf("param %s: %w", p.Name, err)
		}
		flags, err := rtl.ParseParamFlags(p.Flags)
		if err != nil {
			return nil, fmt.Errorf("param %s: %w", p.Name, err)
		}
		md.Params = append(md.Params, rtl.Param{Name: p.Name, Type: tag, Flags: flags})
	}
	return md, nil
}

// ---------------------------------------------------------------------------
// Registration
// ---------------------------------------------------------------------------

// check resolves every name the plan refers to against the runtime and the
// plan's own earlier declarations. It runs before anything is registered,
// so a failing initializer leaves the runtime untouched and can be retried.
func (c *Compiler) check(p *unitPlan) error {
	rt := c.Runtime
	interfaces := make(map[string]bool, len(p.interfaces))
	guids := make(map[rtl.GUID]bool, len(p.interfaces))
	knownInterface := func(ref string) bool {
		if _, ok := rt.ResolveInterface(ref); ok {
			return true
		}
		if g, err := rtl.ParseGUID(ref); err == nil {
			return guids[g]
		}
		return interfaces[strings.ToLower(ref)]
	}

	for _, ip := range p.interfaces {
		name := ip.decl.Name
		if rt.Interfaces.Lookup(name) != nil || interfaces[strings.ToLower(name)] {
			return fmt.Errorf("%w: %s", rtl.ErrDuplicateInterface, name)
		}
		if ip.decl.Ancestor != "" && !knownInterface(ip.decl.Ancestor) {
			return fmt.Errorf("interface %s: %w: %s", name, rtl.ErrUnknownInterface, ip.decl.Ancestor)
		}
		interfaces[strings.ToLower(name)] = true
		guids[ip.guid] = true
	}

	classes := make(map[string]bool, len(p.classes))
	for _, cp := range p.classes {
		name := cp.decl.Name
		if rt.Classes.Has(name) || classes[strings.ToLower(name)] {
			return fmt.Errorf("%w: %s", rtl.ErrDuplicateClass, name)
		}
		if anc := cp.decl.Ancestor; anc != "" && !rt.Classes.Has(anc) && !classes[strings.ToLower(anc)] {
			return fmt.Errorf("class %s: %w: %s", name, rtl.ErrUnknownClass, anc)
		}
		for _, ref := range cp.decl.Implements {
			if !knownInterface(ref) {
				return fmt.Errorf("class %s: %w: %s", name, rtl.ErrUnknownInterface, ref)
			}
		}
		classes[strings.ToLower(name)] = true
	}
	return nil
}

func (c *Compiler) register(unit string, p *unitPlan) error {
	if err := c.check(p); err != nil {
		return err
	}
	rt := c.Runtime
	for _, ip := range p.interfaces {
		var ancestor *rtl.Interface
		if ip.decl.Ancestor != "" {
			var ok bool
			if ancestor, ok = rt.ResolveInterface(ip.decl.Ancestor); !ok {
				return fmt.Errorf("interface %s: %w: %s", ip.decl.Name, rtl.ErrUnknownInterface, ip.decl.Ancestor)
			}
		}
		kind := ip.kind
		_, err := rt.RegisterInterface(ip.decl.Name, ip.guid, ip.decl.Methods, ancestor, func(i *rtl.Interface) error {
			if kind != nil {
				i.Kind = *kind
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	for _, cp := range p.classes {
		if err := c.registerClass(cp); err != nil {
			return err
		}
	}
	c.log.Infof("unit %s: %d interfaces, %d classes", unit, len(p.interfaces), len(p.classes))
	return nil
}

func (c *Compiler) registerClass(cp classPlan) error {
	rt := c.Runtime
	var ancestor *rtl.Class
	if cp.decl.Ancestor != "" {
		var err error
		if ancestor, err = rt.LookupClass(cp.decl.Ancestor); err != nil {
			return fmt.Errorf("class %s: %w", cp.decl.Name, err)
		}
	}

	implements := make([]*rtl.Interface, 0, len(cp.decl.Implements))
	for _, name := range cp.decl.Implements {
		intf, ok := rt.ResolveInterface(name)
		if !ok {
			return fmt.Errorf("class %s: %w: %s", cp.decl.Name, rtl.ErrUnknownInterface, name)
		}
		implements = append(implements, intf)
	}

	_, err := rt.RegisterClass(cp.decl.Name, ancestor, func(cls *rtl.Class) error {
		for _, f := range cp.fields {
			if _, err := cls.AddField(f.name, f.tag); err != nil {
				return err
			}
		}
		for _, m := range cp.methods {
			// The plan outlives a failed initializer; copy so a retry
			// starts from fresh ordinals.
			desc := *m.desc
			if _, err := cls.AddMethod(&desc, m.fn); err != nil {
				return err
			}
		}
		for _, intf := range implements {
			cls.Implements(intf, nil)
		}
		for id, method := range cp.messages {
			cls.SetMessageHandler(id, method)
		}
		for id, method := range cp.decl.StringMessages {
			cls.SetStringMessageHandler(id, method)
		}
		return nil
	})
	return err
}
