// Package records is a small record host for the macro engine: records with
// nested fields, stores that persist them and the function library macros
// call on them.
package records

import (
	"strconv"
	"strings"
)

// Record is one annotated object. Fields nest through map[string]any and
// []any values, the shapes produced by the JSON and YAML decoders.
type Record struct {
	ID     string         `json:"id" yaml:"id"`
	Annot  string         `json:"annot,omitempty" yaml:"annot,omitempty"`
	Fields map[string]any `json:"fields" yaml:"fields"`
}

// New creates a record with no fields.
func New(id string) *Record {
	return &Record{ID: id, Fields: map[string]any{}}
}

// Get returns the value at a dotted path. Numeric segments index lists.
func (r *Record) Get(path string) (any, bool) {
	container, key, ok := r.locate(path, false)
	if !ok {
		return nil, false
	}
	return getField(container, key)
}

// Set stores v at a dotted path, creating intermediate objects.
func (r *Record) Set(path string, v any) bool {
	container, key, ok := r.locate(path, true)
	if !ok {
		return false
	}
	return setField(container, key, v)
}

// Delete removes the field at path.
func (r *Record) Delete(path string) bool {
	container, key, ok := r.locate(path, false)
	if !ok {
		return false
	}
	m, isMap := container.(map[string]any)
	if !isMap {
		return false
	}
	if _, exists := m[key]; !exists {
		return false
	}
	delete(m, key)
	return true
}

// locate walks to the container of the last path segment.
func (r *Record) locate(path string, create bool) (any, string, bool) {
	if r.Fields == nil {
		if !create {
			return nil, "", false
		}
		r.Fields = map[string]any{}
	}
	segs := strings.Split(path, ".")
	var cur any = r.Fields
	for _, seg := range segs[:len(segs)-1] {
		next, ok := getField(cur, seg)
		if !ok || next == nil {
			m, isMap := cur.(map[string]any)
			if !create || !isMap {
				return nil, "", false
			}
			child := map[string]any{}
			m[seg] = child
			next = child
		}
		cur = next
	}
	return cur, segs[len(segs)-1], true
}

func getField(container any, key string) (any, bool) {
	switch c := container.(type) {
	case map[string]any:
		v, ok := c[key]
		return v, ok
	case []any:
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= len(c) {
			return nil, false
		}
		return c[i], true
	}
	return nil, false
}

func setField(container any, key string, v any) bool {
	switch c := container.(type) {
	case map[string]any:
		c[key] = v
		return true
	case []any:
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= len(c) {
			return false
		}
		c[i] = v
		return true
	}
	return false
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	cp := &Record{ID: r.ID, Annot: r.Annot}
	if r.Fields != nil {
		cp.Fields = cloneAny(r.Fields).(map[string]any)
	}
	return cp
}

func cloneAny(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = cloneAny(e)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = cloneAny(e)
		}
		return s
	case []string:
		return append([]string(nil), t...)
	}
	return v
}
