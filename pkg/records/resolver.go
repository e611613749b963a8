package records

import (
	"fmt"
	"strings"

	"github.com/sambeau/seqmacro/pkg/macro/ast"
	"github.com/sambeau/seqmacro/pkg/macro/engine"
	"github.com/sambeau/seqmacro/pkg/macro/evaluator"
	"github.com/sambeau/seqmacro/pkg/macro/value"
)

// Resolver binds one record to a macro execution. Identifiers name dotted
// field paths; `id` and `annot` fall back to the record's identity.
type Resolver struct {
	*evaluator.BaseResolver
	Record *Record
	Out    engine.Logger

	caseSensitive bool
}

// NewResolver creates a resolver for rec. A nil out discards Log output.
func NewResolver(rec *Record, funcs *evaluator.FunctionTable, caseSensitive bool, out engine.Logger) *Resolver {
	if out == nil {
		out = engine.NullLogger()
	}
	r := &Resolver{
		BaseResolver:  evaluator.NewBaseResolver(funcs, caseSensitive),
		Record:        rec,
		Out:           out,
		caseSensitive: caseSensitive,
	}
	r.Host = r
	return r
}

func (r *Resolver) ResolveIdentifier(name string, out *value.Value, parent *ast.Node) bool {
	if r.BaseResolver.ResolveIdentifier(name, out, parent) {
		return true
	}

	// o.field where o is the object a statement filter is looking at
	if head, rest, dotted := strings.Cut(name, "."); dotted {
		if obj, ok := r.GetTmpRTVarObject(head); ok {
			target, ok := objectTarget(obj)
			if !ok {
				return false
			}
			return r.resolvePath(target, rest, out)
		}
	}

	if r.resolvePath(r.Record.Fields, name, out) {
		return true
	}
	switch strings.ToLower(name) {
	case "id":
		out.SetString(r.Record.ID)
		return true
	case "annot":
		out.SetString(r.Record.Annot)
		return true
	}
	return false
}

// resolvePath walks path from root and converts the field it reaches.
func (r *Resolver) resolvePath(root any, path string, out *value.Value) bool {
	container, key, ok := r.walk(root, path)
	if !ok {
		return false
	}
	v, ok := fieldValue(container, key)
	if !ok {
		return false
	}
	out.Set(v)
	return true
}

// walk returns the container of the last segment of path, matching map keys
// without regard to case unless the resolver is case sensitive.
func (r *Resolver) walk(root any, path string) (any, string, bool) {
	segs := strings.Split(path, ".")
	cur := root
	for i, seg := range segs {
		key, ok := r.matchKey(cur, seg)
		if !ok {
			return nil, "", false
		}
		if i == len(segs)-1 {
			return cur, key, true
		}
		cur, _ = getField(cur, key)
	}
	return nil, "", false
}

func (r *Resolver) matchKey(container any, seg string) (string, bool) {
	if _, ok := getField(container, seg); ok {
		return seg, true
	}
	m, isMap := container.(map[string]any)
	if !isMap || r.caseSensitive {
		return "", false
	}
	for k := range m {
		if strings.EqualFold(k, seg) {
			return k, true
		}
	}
	return "", false
}

// AssignObjects writes v into each referenced field.
func (r *Resolver) AssignObjects(objs []value.ObjectRef, v value.Value) error {
	data := fieldData(v)
	for _, obj := range objs {
		key := fmt.Sprint(obj.Field)
		if !setField(obj.Parent, key, data) {
			return fmt.Errorf("cannot assign to field %q", key)
		}
	}
	return nil
}

var (
	_ evaluator.Resolver       = (*Resolver)(nil)
	_ evaluator.ObjectAssigner = (*Resolver)(nil)
)

// fieldValue converts the field at container[key] to a macro value. Objects
// and lists of objects become object lists whose references point back into
// the record, so assignments through them change it.
func fieldValue(container any, key string) (value.Value, bool) {
	raw, ok := getField(container, key)
	if !ok || raw == nil {
		return value.Value{}, false
	}
	switch t := raw.(type) {
	case string:
		return value.NewString(t), true
	case bool:
		return value.NewBool(t), true
	case int:
		return value.NewInt(int64(t)), true
	case int64:
		return value.NewInt(t), true
	case int32:
		return value.NewInt(int64(t)), true
	case float64:
		return value.NewFloat(t), true
	case float32:
		return value.NewFloat(float64(t)), true
	case []string:
		return value.NewStringList(t), true
	case map[string]any:
		return value.NewObjectList([]value.ObjectRef{{Parent: container, Field: key}}), true
	case []any:
		if strs, ok := stringItems(t); ok {
			return value.NewStringList(strs), true
		}
		return value.NewObjectList(elementRefs(t)), true
	case jsonNumber:
		return fieldValue(map[string]any{key: normalize(t)}, key)
	}
	return value.NewString(fmt.Sprint(raw)), true
}

func stringItems(items []any) ([]string, bool) {
	out := make([]string, len(items))
	for i, it := range items {
		s, ok := it.(string)
		if !ok {
			return nil, false
		}
		out[i] = s
	}
	return out, true
}

func elementRefs(items []any) []value.ObjectRef {
	refs := make([]value.ObjectRef, len(items))
	for i := range items {
		refs[i] = value.ObjectRef{Parent: items, Field: i}
	}
	return refs
}

// objectTarget returns what obj points at.
func objectTarget(obj value.ObjectRef) (any, bool) {
	v, ok := getField(obj.Parent, fmt.Sprint(obj.Field))
	return v, ok && v != nil
}
