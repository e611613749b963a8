package records

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sambeau/seqmacro/pkg/macro/evaluator"
	"github.com/sambeau/seqmacro/pkg/macro/value"
)

var (
	anyArg = evaluator.Any
	str    = value.String
)

// Functions returns the record function library.
func Functions() *evaluator.FunctionTable {
	ft := evaluator.NewFunctionTable()

	// WHERE
	ft.Register("CONTAINS", evaluator.Function{Fn: stringTest(strings.Contains), Contract: evaluator.Fixed(str, str), Clause: evaluator.ClauseWhere,
		Description: "CONTAINS(s, sub) is true when s contains sub."})
	ft.Register("STARTS_WITH", evaluator.Function{Fn: stringTest(strings.HasPrefix), Contract: evaluator.Fixed(str, str), Clause: evaluator.ClauseWhere,
		Description: "STARTS_WITH(s, prefix) is true when s begins with prefix."})
	ft.Register("ENDS_WITH", evaluator.Function{Fn: stringTest(strings.HasSuffix), Contract: evaluator.Fixed(str, str), Clause: evaluator.ClauseWhere,
		Description: "ENDS_WITH(s, suffix) is true when s ends with suffix."})
	ft.Register("ISPRESENT", evaluator.Function{Fn: isPresent, Contract: evaluator.Fixed(anyArg), Clause: evaluator.ClauseWhere,
		Description: "ISPRESENT(field) is true when the field has a value."})
	ft.Register("DATE_BEFORE", evaluator.Function{Fn: dateBefore, Contract: evaluator.Fixed(str, str), Clause: evaluator.ClauseWhere,
		Description: "DATE_BEFORE(a, b) is true when date a is earlier than date b."})

	// both
	ft.Register("UPPER", evaluator.Function{Fn: caseMap(func() cases.Caser { return cases.Upper(language.Und) }), Contract: evaluator.Fixed(str), Clause: evaluator.ClauseBoth,
		Description: "UPPER(s) returns s in upper case."})
	ft.Register("LOWER", evaluator.Function{Fn: caseMap(func() cases.Caser { return cases.Lower(language.Und) }), Contract: evaluator.Fixed(str), Clause: evaluator.ClauseBoth,
		Description: "LOWER(s) returns s in lower case."})
	ft.Register("LENGTH", evaluator.Function{Fn: length, Contract: evaluator.Fixed(anyArg), Clause: evaluator.ClauseBoth,
		Description: "LENGTH(x) counts the characters of a string or the items of a list."})
	ft.Register("YEAR", evaluator.Function{Fn: year, Contract: evaluator.Fixed(str), Clause: evaluator.ClauseBoth,
		Description: "YEAR(date) returns the year of a date."})
	ft.Register("FORMAT_DATE", evaluator.Function{Fn: formatDateFn, Contract: evaluator.Between(2, 3, str), Clause: evaluator.ClauseBoth,
		Description: "FORMAT_DATE(date, style[, locale]) renders a date; style is short, medium, long, full, iso or a layout."})
	ft.Register("FORMAT_NUMBER", evaluator.Function{Fn: formatNumberFn, Contract: evaluator.Between(1, 2, value.Float, str), Clause: evaluator.ClauseBoth,
		Description: "FORMAT_NUMBER(n[, locale]) groups the digits of n."})
	ft.Register("Concat", evaluator.Function{Fn: concat, Contract: evaluator.Variadic(1, anyArg), Clause: evaluator.ClauseBoth,
		Description: "Concat(a, ...) joins its arguments as text."})

	// DO
	ft.Register("SetProperty", evaluator.Function{Fn: setProperty, Contract: evaluator.Fixed(str, anyArg), Clause: evaluator.ClauseDo,
		Description: "SetProperty(path, value) stores value at a field path."})
	ft.Register("SetColor", evaluator.Function{Fn: setColor, Contract: evaluator.Fixed(str), Clause: evaluator.ClauseDo,
		Description: "SetColor(color) sets the display color of the record."})
	ft.Register("RemoveProperty", evaluator.Function{Fn: removeProperty, Contract: evaluator.Fixed(str), Clause: evaluator.ClauseDo,
		Description: "RemoveProperty(path) deletes a field."})
	ft.Register("AppendProperty", evaluator.Function{Fn: appendProperty, Contract: evaluator.Fixed(str, anyArg), Clause: evaluator.ClauseDo,
		Description: "AppendProperty(path, value) adds value to the list at path."})
	ft.Register("Resolve", evaluator.Function{Fn: resolve, Contract: evaluator.Fixed(str), Clause: evaluator.ClauseDo,
		Description: "Resolve(path) returns the objects at path for filtering and assignment."})
	ft.Register("Log", evaluator.Function{Fn: logLine, Contract: evaluator.Variadic(0, anyArg), Clause: evaluator.ClauseDo,
		Description: "Log(a, ...) prints its arguments."})

	return ft
}

func host(c *evaluator.Call) (*Resolver, error) {
	r, ok := c.Host.(*Resolver)
	if !ok {
		return nil, fmt.Errorf("%s: no record bound", c.Name)
	}
	return r, nil
}

func stringTest(test func(s, sub string) bool) evaluator.Func {
	return func(c *evaluator.Call) error {
		s, sub := c.Arg(0).Str(), c.Arg(1).Str()
		if r, ok := c.Host.(*Resolver); !ok || !r.caseSensitive {
			fold := cases.Fold()
			s, sub = fold.String(s), fold.String(sub)
		}
		c.Return(value.NewBool(test(s, sub)))
		return nil
	}
}

// caseMap builds a Caser per call; Casers are not safe for concurrent use.
func caseMap(newCaser func() cases.Caser) evaluator.Func {
	return func(c *evaluator.Call) error {
		c.Return(value.NewString(newCaser().String(c.Arg(0).Str())))
		return nil
	}
}

func isPresent(c *evaluator.Call) error {
	c.Return(value.NewBool(!c.Arg(0).IsNotSet()))
	return nil
}

func length(c *evaluator.Call) error {
	v := c.Arg(0)
	switch v.Kind() {
	case value.NotSet:
		c.Return(value.Value{})
	case value.String:
		c.Return(value.NewInt(int64(utf8.RuneCountInString(v.Str()))))
	case value.StringList:
		c.Return(value.NewInt(int64(len(v.StringList()))))
	case value.ObjectList:
		c.Return(value.NewInt(int64(len(v.ObjectList()))))
	default:
		return fmt.Errorf("LENGTH: %s has no length", v.Kind())
	}
	return nil
}

func year(c *evaluator.Call) error {
	if t, ok := parseDate(c.Arg(0).Str()); ok {
		c.Return(value.NewInt(int64(t.Year())))
	}
	return nil
}

func dateBefore(c *evaluator.Call) error {
	a, okA := parseDate(c.Arg(0).Str())
	b, okB := parseDate(c.Arg(1).Str())
	if okA && okB {
		c.Return(value.NewBool(a.Before(b)))
	}
	return nil
}

func formatDateFn(c *evaluator.Call) error {
	t, ok := parseDate(c.Arg(0).Str())
	if !ok {
		return nil
	}
	c.Return(value.NewString(formatDate(t, c.Arg(1).Str(), c.Arg(2).Str())))
	return nil
}

func formatNumberFn(c *evaluator.Call) error {
	n := c.Arg(0)
	f := n.Float()
	if n.Kind() == value.Int {
		f = float64(n.Int())
	}
	c.Return(value.NewString(formatNumber(f, c.Arg(1).Str())))
	return nil
}

func concat(c *evaluator.Call) error {
	var sb strings.Builder
	for i := 0; i < c.NArgs(); i++ {
		if v := c.Arg(i); !v.IsNotSet() {
			sb.WriteString(v.Text())
		}
	}
	c.Return(value.NewString(sb.String()))
	return nil
}

func setProperty(c *evaluator.Call) error {
	r, err := host(c)
	if err != nil {
		return err
	}
	v := c.Arg(1)
	if v.IsNotSet() {
		return nil
	}
	path := c.Arg(0).Str()
	if !r.Record.Set(path, fieldData(v)) {
		return fmt.Errorf("SetProperty: cannot set %q", path)
	}
	c.Return(v)
	return nil
}

// fieldData converts a macro value for storage in a record. Objects are
// copied.
func fieldData(v value.Value) any {
	switch v.Kind() {
	case value.StringList:
		items := v.StringList()
		out := make([]any, len(items))
		for i, s := range items {
			out[i] = s
		}
		return out
	case value.ObjectList:
		objs := v.ObjectList()
		out := make([]any, 0, len(objs))
		for _, obj := range objs {
			if target, ok := objectTarget(obj); ok {
				out = append(out, cloneAny(target))
			}
		}
		return out
	}
	return v.Interface()
}

// Colors lists the names SetColor accepts.
var Colors = []string{"red", "green", "blue", "yellow", "orange", "purple", "gray", "black", "white"}

func setColor(c *evaluator.Call) error {
	r, err := host(c)
	if err != nil {
		return err
	}
	color := strings.ToLower(strings.TrimSpace(c.Arg(0).Str()))
	known := false
	for _, name := range Colors {
		known = known || name == color
	}
	if !known && !strings.HasPrefix(color, "#") {
		return fmt.Errorf("SetColor: unknown color %q", c.Arg(0).Str())
	}
	r.Record.Set("color", color)
	return nil
}

func removeProperty(c *evaluator.Call) error {
	r, err := host(c)
	if err != nil {
		return err
	}
	c.Return(value.NewBool(r.Record.Delete(c.Arg(0).Str())))
	return nil
}

func appendProperty(c *evaluator.Call) error {
	r, err := host(c)
	if err != nil {
		return err
	}
	path, v := c.Arg(0).Str(), c.Arg(1)
	if v.IsNotSet() {
		return nil
	}

	var list []any
	switch cur, _ := r.Record.Get(path); t := cur.(type) {
	case nil:
	case []any:
		list = t
	case []string:
		for _, s := range t {
			list = append(list, s)
		}
	default:
		list = []any{t}
	}
	switch data := fieldData(v).(type) {
	case []any:
		list = append(list, data...)
	default:
		list = append(list, data)
	}
	if !r.Record.Set(path, list) {
		return fmt.Errorf("AppendProperty: cannot set %q", path)
	}
	c.Return(value.NewInt(int64(len(list))))
	return nil
}

// resolve returns the objects at a path: the elements of a list, or the
// field itself. A missing path gives an empty list.
func resolve(c *evaluator.Call) error {
	r, err := host(c)
	if err != nil {
		return err
	}
	container, key, ok := r.walk(r.Record.Fields, c.Arg(0).Str())
	if !ok {
		c.Return(value.NewObjectList(nil))
		return nil
	}
	cur, _ := getField(container, key)
	if items, isList := cur.([]any); isList {
		c.Return(value.NewObjectList(elementRefs(items)))
		return nil
	}
	c.Return(value.NewObjectList([]value.ObjectRef{{Parent: container, Field: key}}))
	return nil
}

func logLine(c *evaluator.Call) error {
	r, err := host(c)
	if err != nil {
		return err
	}
	args := make([]any, c.NArgs())
	for i := range args {
		args[i] = c.Arg(i).Text()
	}
	r.Out.LogLine(args...)
	return nil
}
