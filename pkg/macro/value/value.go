// Package value implements the tagged union attached to every tree node as
// its evaluated result.
//
// A Value is replaced wholesale by every setter, so a payload of one kind
// can never leak into a value of another kind.
package value

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Kind is the discriminator of a Value.
type Kind int

const (
	NotSet Kind = iota
	Int
	Float
	Bool
	String
	StringList
	ObjectList
	Reference
)

func (k Kind) String() string {
	switch k {
	case NotSet:
		return "not-set"
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case String:
		return "string"
	case StringList:
		return "string-list"
	case ObjectList:
		return "object-list"
	case Reference:
		return "reference"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// MaxDereferenceHops bounds how many references Dereference follows.
const MaxDereferenceHops = 64

// ErrReferenceCycle is returned when a reference chain is longer than
// MaxDereferenceHops, which in practice means it loops.
var ErrReferenceCycle = errors.New("reference chain too long or cyclic")

// ObjectRef identifies a location in host data: the object holding a field
// and the field itself. Both handles are opaque to the language core.
type ObjectRef struct {
	Parent any
	Field  any
}

// Value is the evaluated result of a node. The zero Value is NotSet.
type Value struct {
	kind    Kind
	i       int64
	f       float64
	b       bool
	s       string
	strs    []string
	objects []ObjectRef
	ref     *Value
}

// Constructors

func NewInt(n int64) Value { return Value{kind: Int, i: n} }
func NewFloat(f float64) Value { return Value{kind: Float, f: f} }
func NewBool(b bool) Value { return Value{kind: Bool, b: b} }
func NewString(s string) Value { return Value{kind: String, s: s} }
func NewStringList(items []string) Value { return Value{kind: StringList, strs: items} }
func NewObjectList(objs []ObjectRef) Value { return Value{kind: ObjectList, objects: objs} }
func NewRef(target *Value) Value { return Value{kind: Reference, ref: target} }

// Setters. Each one installs a freshly constructed Value.

func (v *Value) SetNotSet() { *v = Value{} }
func (v *Value) SetInt(n int64) { *v = NewInt(n) }
func (v *Value) SetFloat(f float64) { *v = NewFloat(f) }
func (v *Value) SetBool(b bool) { *v = NewBool(b) }
func (v *Value) SetString(s string) { *v = NewString(s) }
func (v *Value) SetStringList(items []string) { *v = NewStringList(items) }
func (v *Value) SetObjectList(objs []ObjectRef) { *v = NewObjectList(objs) }
func (v *Value) SetRef(target *Value) { *v = NewRef(target) }

// Set replaces v with a copy of other.
func (v *Value) Set(other Value) { *v = other }

// Accessors return the zero value of the payload when the kind differs.

func (v Value) Kind() Kind { return v.kind }

func (v Value) Int() int64 {
	if v.kind != Int {
		return 0
	}
	return v.i
}

func (v Value) Float() float64 {
	if v.kind != Float {
		return 0
	}
	return v.f
}

func (v Value) Bool() bool {
	return v.kind == Bool && v.b
}

func (v Value) Str() string {
	if v.kind != String {
		return ""
	}
	return v.s
}

func (v Value) StringList() []string {
	if v.kind != StringList {
		return nil
	}
	return v.strs
}

func (v Value) ObjectList() []ObjectRef {
	if v.kind != ObjectList {
		return nil
	}
	return v.objects
}

func (v Value) Ref() *Value {
	if v.kind != Reference {
		return nil
	}
	return v.ref
}

// Predicates

func (v Value) IsNotSet() bool { return v.kind == NotSet }
func (v Value) IsReference() bool { return v.kind == Reference }

// IsSimpleType reports whether v is an int, bool, string or float.
func (v Value) IsSimpleType() bool {
	switch v.kind {
	case Int, Bool, String, Float:
		return true
	}
	return false
}

// IsNumeric reports whether v is an int or a float.
func (v Value) IsNumeric() bool {
	return v.kind == Int || v.kind == Float
}

// AsFloat returns the numeric payload widened to float64.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case Int:
		return float64(v.i), true
	case Float:
		return v.f, true
	}
	return 0, false
}

// Dereference follows a reference chain and copies the first
// non-reference value into v. A nil reference yields NotSet. A chain longer
// than MaxDereferenceHops returns ErrReferenceCycle and leaves v unchanged.
// Calling it on a non-reference is a no-op.
func (v *Value) Dereference() error {
	r, err := v.Resolved()
	if err != nil {
		return err
	}
	*v = r
	return nil
}

// Resolved returns the terminal value of the reference chain without
// modifying v.
func (v Value) Resolved() (Value, error) {
	cur := v
	for hops := 0; cur.kind == Reference; hops++ {
		if hops >= MaxDereferenceHops {
			return v, ErrReferenceCycle
		}
		if cur.ref == nil {
			return Value{}, nil
		}
		cur = *cur.ref
	}
	return cur, nil
}

// AssignToRef writes src into the value v refers to. It reports false when
// v is not a reference.
func (v Value) AssignToRef(src Value) bool {
	if v.kind != Reference || v.ref == nil {
		return false
	}
	*v.ref = src
	return true
}

// Equal compares two values of the same kind. References are compared
// after resolution.
func (v Value) Equal(other Value) bool {
	a, err1 := v.Resolved()
	b, err2 := other.Resolved()
	if err1 != nil || err2 != nil || a.kind != b.kind {
		return false
	}
	switch a.kind {
	case NotSet:
		return true
	case Int:
		return a.i == b.i
	case Float:
		return a.f == b.f
	case Bool:
		return a.b == b.b
	case String:
		return a.s == b.s
	case StringList:
		if len(a.strs) != len(b.strs) {
			return false
		}
		for i := range a.strs {
			if a.strs[i] != b.strs[i] {
				return false
			}
		}
		return true
	case ObjectList:
		if len(a.objects) != len(b.objects) {
			return false
		}
		for i := range a.objects {
			if !sameObject(a.objects[i], b.objects[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func sameObject(a, b ObjectRef) bool {
	return sameHandle(a.Parent, b.Parent) && sameHandle(a.Field, b.Field)
}

// sameHandle compares handles of any dynamic type without panicking on
// uncomparable ones such as maps, which are compared by identity.
func sameHandle(a, b any) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta == nil {
		return true
	}
	if ta.Comparable() {
		return a == b
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch va.Kind() {
	case reflect.Map, reflect.Slice, reflect.Func:
		return va.Pointer() == vb.Pointer()
	}
	return false
}

// String renders the value the way the macro source would spell it.
func (v Value) String() string {
	switch v.kind {
	case NotSet:
		return "<not set>"
	case Int:
		return strconv.FormatInt(v.i, 10)
	case Float:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case Bool:
		return strconv.FormatBool(v.b)
	case String:
		return strconv.Quote(v.s)
	case StringList:
		quoted := make([]string, len(v.strs))
		for i, s := range v.strs {
			quoted[i] = strconv.Quote(s)
		}
		return "{" + strings.Join(quoted, ", ") + "}"
	case ObjectList:
		return fmt.Sprintf("<%d object(s)>", len(v.objects))
	case Reference:
		if r, err := v.Resolved(); err == nil {
			return "&" + r.String()
		}
		return "&<cycle>"
	}
	return "?"
}

// Text is the unquoted display form: strings are returned as-is.
func (v Value) Text() string {
	if v.kind == String {
		return v.s
	}
	return v.String()
}

// Interface converts the value to a plain Go value for hosts and encoders.
func (v Value) Interface() any {
	r, err := v.Resolved()
	if err != nil {
		return nil
	}
	switch r.kind {
	case Int:
		return r.i
	case Float:
		return r.f
	case Bool:
		return r.b
	case String:
		return r.s
	case StringList:
		return append([]string(nil), r.strs...)
	case ObjectList:
		return append([]ObjectRef(nil), r.objects...)
	}
	return nil
}

// FromAny converts a host value to a Value. Unsupported types yield NotSet.
func FromAny(x any) Value {
	switch t := x.(type) {
	case nil:
		return Value{}
	case Value:
		return t
	case *Value:
		return NewRef(t)
	case int:
		return NewInt(int64(t))
	case int32:
		return NewInt(int64(t))
	case int64:
		return NewInt(t)
	case uint32:
		return NewInt(int64(t))
	case float32:
		return NewFloat(float64(t))
	case float64:
		return NewFloat(t)
	case bool:
		return NewBool(t)
	case string:
		return NewString(t)
	case []string:
		return NewStringList(t)
	case []any:
		items := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return Value{}
			}
			items = append(items, s)
		}
		return NewStringList(items)
	case []ObjectRef:
		return NewObjectList(t)
	}
	return Value{}
}
