package relay

import (
	"reflect"
	"strings"
	"weak"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"ctpbridge/internal/codec"
	"ctpbridge/internal/schema"
	"ctpbridge/pkg/exception"
)

var (
	intType   = reflect.TypeFor[int]()
	boolType  = reflect.TypeFor[bool]()
	errorType = reflect.TypeFor[error]()
)

// DefaultRequired is the set of kinds every target must handle.
var DefaultRequired = []schema.EventKind{
	schema.EventFrontConnected,
	schema.EventFrontDisconnected,
}

// TableOptions selects which event kinds a Table resolves.
type TableOptions struct {
	// Enabled limits resolution to these kinds. Nil enables every kind.
	Enabled []schema.EventKind
	// Required kinds must resolve or NewTable fails. Nil means
	// DefaultRequired.
	Required []schema.EventKind
}

// Binding is the resolved handler for one event kind.
type Binding struct {
	Kind   schema.EventKind
	Method string
	// Params is the handler's parameter list, receiver excluded.
	Params []reflect.Type

	fn         reflect.Value
	returnsErr bool
}

// Table maps event kinds to handler methods of one target. It is built once
// and never mutated, so lookups need no locking.
type Table struct {
	target   string
	receiver func() (reflect.Value, bool)
	bindings [schema.NumEventKinds]*Binding
}

// NewTable resolves the handler methods of target. The table keeps only a
// weak reference to target: the caller owns its lifetime, and once it is
// collected every lookup of the receiver fails.
func NewTable[T any](target *T, opts TableOptions) (*Table, error) {
	if target == nil {
		return nil, exception.ErrNilTarget
	}

	ptr := weak.Make(target)
	rt := reflect.TypeFor[*T]()
	t := &Table{
		target: rt.String(),
		receiver: func() (reflect.Value, bool) {
			p := ptr.Value()
			if p == nil {
				return reflect.Value{}, false
			}
			return reflect.ValueOf(p), true
		},
	}

	enabled := schema.EventKinds()
	if opts.Enabled != nil {
		enabled = opts.Enabled
	}

	var unbound []string
	for _, kind := range enabled {
		if !kind.Valid() {
			continue
		}
		b, err := resolve(rt, kind)
		if err != nil {
			logs.Errorf("relay: %s.%s not bound, err: %+v", t.target, kind.Method(), err)
		}
		if b == nil {
			unbound = append(unbound, kind.String())
			continue
		}
		t.bindings[kind] = b
	}

	required := opts.Required
	if required == nil {
		required = DefaultRequired
	}
	var missing []string
	for _, kind := range required {
		if _, ok := t.Lookup(kind); !ok {
			missing = append(missing, kind.Method())
		}
	}
	if len(missing) != 0 {
		return nil, errors.Wrapf(exception.ErrRequiredBinding, "%s missing %s", t.target, strings.Join(missing, ", "))
	}

	logs.Infof("relay: %s binds %d event kinds, unbound: [%s]", t.target, len(t.Kinds()), strings.Join(unbound, " "))
	return t, nil
}

// Lookup returns the binding for kind.
func (t *Table) Lookup(kind schema.EventKind) (*Binding, bool) {
	if t == nil || int(kind) >= len(t.bindings) {
		return nil, false
	}
	b := t.bindings[kind]
	return b, b != nil
}

// Kinds lists the bound event kinds in declaration order.
func (t *Table) Kinds() []schema.EventKind {
	var out []schema.EventKind
	for _, b := range t.bindings {
		if b != nil {
			out = append(out, b.Kind)
		}
	}
	return out
}

// Target is the type name of the bound target.
func (t *Table) Target() string {
	return t.target
}

// Receiver returns the live target, or false once it has been collected.
func (t *Table) Receiver() (reflect.Value, bool) {
	return t.receiver()
}

// Signature is the parameter list a handler for kind must declare.
func Signature(kind schema.EventKind) []reflect.Type {
	spec := kind.Spec()
	info := codec.PointerType(schema.RecordRspInfo)
	switch spec.Shape {
	case schema.ShapeReason:
		return []reflect.Type{intType}
	case schema.ShapeRsp:
		return []reflect.Type{codec.PointerType(spec.Record), info, intType, boolType}
	case schema.ShapeInfo:
		return []reflect.Type{info, intType, boolType}
	case schema.ShapeRtn:
		return []reflect.Type{codec.PointerType(spec.Record)}
	case schema.ShapeErrRtn:
		return []reflect.Type{codec.PointerType(spec.Record), info}
	default:
		return nil
	}
}

// resolve finds the handler for kind. A missing method is not an error;
// a method with the wrong signature is.
func resolve(rt reflect.Type, kind schema.EventKind) (*Binding, error) {
	m, ok := rt.MethodByName(kind.Method())
	if !ok {
		return nil, nil
	}

	want := Signature(kind)
	ft := m.Type
	if ft.IsVariadic() || ft.NumIn() != len(want)+1 {
		return nil, errors.Errorf("signature %s, want %s", ft, describe(want))
	}
	for i, p := range want {
		if ft.In(i+1) != p {
			return nil, errors.Errorf("signature %s, want %s", ft, describe(want))
		}
	}

	returnsErr := false
	switch {
	case ft.NumOut() == 0:
	case ft.NumOut() == 1 && ft.Out(0) == errorType:
		returnsErr = true
	default:
		return nil, errors.Errorf("handler may only return error, got %s", ft)
	}

	return &Binding{
		Kind:       kind,
		Method:     m.Name,
		Params:     want,
		fn:         m.Func,
		returnsErr: returnsErr,
	}, nil
}

func describe(params []reflect.Type) string {
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.String()
	}
	return "(" + strings.Join(names, ", ") + ")"
}

// call invokes the handler on recv. A returned non-nil error is passed
// through; panics are left to the caller.
func (b *Binding) call(recv reflect.Value, args []reflect.Value) error {
	in := make([]reflect.Value, 0, len(args)+1)
	in = append(in, recv)
	in = append(in, args...)
	out := b.fn.Call(in)
	if b.returnsErr && !out[0].IsNil() {
		return out[0].Interface().(error)
	}
	return nil
}
