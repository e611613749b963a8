package evaluator

import (
	"sort"
	"strings"

	"github.com/sambeau/seqmacro/pkg/macro/ast"
	merrors "github.com/sambeau/seqmacro/pkg/macro/errors"
	"github.com/sambeau/seqmacro/pkg/macro/value"
)

// ---------------------------------------------------------------------------
// run-time variables

// RTVarTable holds the run-time variables of one macro execution and the
// temporary object bindings used by statement filters.
type RTVarTable struct {
	caseSensitive bool
	vars          map[string]*value.Value
	names         []string // first spelling, in creation order
	tmp           map[string]value.ObjectRef
}

// NewRTVarTable creates an empty table.
func NewRTVarTable(caseSensitive bool) *RTVarTable {
	return &RTVarTable{
		caseSensitive: caseSensitive,
		vars:          make(map[string]*value.Value),
		tmp:           make(map[string]value.ObjectRef),
	}
}

func (t *RTVarTable) key(name string) string {
	if t.caseSensitive {
		return name
	}
	return strings.ToLower(name)
}

// Seed installs the declared variables of m with their default values.
func (t *RTVarTable) Seed(m *ast.Macro) {
	for _, v := range m.Vars {
		t.Set(v.Name, v.Default)
	}
}

// Set creates or overwrites a variable.
func (t *RTVarTable) Set(name string, v value.Value) {
	t.GetOrCreateRTVar(name).Set(v)
}

// GetOrCreateRTVar returns the slot for name, creating a NotSet one.
func (t *RTVarTable) GetOrCreateRTVar(name string) *value.Value {
	k := t.key(name)
	if slot, ok := t.vars[k]; ok {
		return slot
	}
	slot := &value.Value{}
	t.vars[k] = slot
	t.names = append(t.names, name)
	return slot
}

// ExistRTVar reports whether name has a slot.
func (t *RTVarTable) ExistRTVar(name string) bool {
	_, ok := t.vars[t.key(name)]
	return ok
}

// Lookup returns a copy of the variable's value.
func (t *RTVarTable) Lookup(name string) (value.Value, bool) {
	slot, ok := t.vars[t.key(name)]
	if !ok {
		return value.Value{}, false
	}
	return *slot, true
}

// Names lists the variables in creation order.
func (t *RTVarTable) Names() []string {
	return append([]string(nil), t.names...)
}

func (t *RTVarTable) AddTmpRTVarObject(name string, obj value.ObjectRef) {
	t.tmp[t.key(name)] = obj
}

func (t *RTVarTable) GetTmpRTVarObject(name string) (value.ObjectRef, bool) {
	obj, ok := t.tmp[t.key(name)]
	return obj, ok
}

func (t *RTVarTable) ResetTmpRTVarObjects() {
	clear(t.tmp)
}

// ---------------------------------------------------------------------------
// functions

// Clause says where a function may be called.
type Clause int

const (
	ClauseWhere Clause = 1 << iota
	ClauseDo
	ClauseBoth = ClauseWhere | ClauseDo
)

// Call is what a host function receives.
type Call struct {
	Name string    // canonical spelling
	Node *ast.Node // the call node; the result goes into Node.Value
	Host Resolver
}

// NArgs returns the number of arguments.
func (c *Call) NArgs() int { return len(c.Node.Children) }

// Arg returns the i-th evaluated argument, NotSet when out of range.
func (c *Call) Arg(i int) value.Value {
	if i < 0 || i >= len(c.Node.Children) {
		return value.Value{}
	}
	v, _ := c.Node.Children[i].Value.Resolved()
	return v
}

// Return stores the call's result.
func (c *Call) Return(v value.Value) { c.Node.Value = v }

// Func implements a host function.
type Func func(c *Call) error

// Function is one entry of a FunctionTable.
type Function struct {
	Fn          Func
	Contract    Contract
	Clause      Clause
	Description string
}

// FunctionTable maps function names, matched case-insensitively, to their
// implementations.
type FunctionTable struct {
	funcs map[string]Function
	names map[string]string // lower-case -> canonical
}

// NewFunctionTable creates an empty table.
func NewFunctionTable() *FunctionTable {
	return &FunctionTable{
		funcs: make(map[string]Function),
		names: make(map[string]string),
	}
}

// Register adds or replaces a function.
func (ft *FunctionTable) Register(name string, fn Function) {
	k := strings.ToLower(name)
	ft.funcs[k] = fn
	ft.names[k] = name
}

// Lookup finds a function and its canonical name.
func (ft *FunctionTable) Lookup(name string) (string, Function, bool) {
	k := strings.ToLower(name)
	fn, ok := ft.funcs[k]
	return ft.names[k], fn, ok
}

// Names lists every function, sorted.
func (ft *FunctionTable) Names() []string { return ft.namesFor(ClauseBoth) }

// WhereNames lists the functions callable in WHERE clauses.
func (ft *FunctionTable) WhereNames() []string { return ft.namesFor(ClauseWhere) }

// DoNames lists the functions callable as DO statements.
func (ft *FunctionTable) DoNames() []string { return ft.namesFor(ClauseDo) }

func (ft *FunctionTable) namesFor(c Clause) []string {
	var out []string
	for k, fn := range ft.funcs {
		if fn.Clause&c != 0 {
			out = append(out, ft.names[k])
		}
	}
	sort.Strings(out)
	return out
}

// ---------------------------------------------------------------------------
// base resolver

// BaseResolver is a complete Resolver over a variable table and a function
// table. Hosts embed it and override ResolveIdentifier.
type BaseResolver struct {
	*RTVarTable
	Functions *FunctionTable

	// Host is passed to functions as Call.Host; it defaults to the
	// BaseResolver itself. Embedding hosts set it to themselves.
	Host Resolver
}

// NewBaseResolver creates a resolver with an empty variable table.
func NewBaseResolver(funcs *FunctionTable, caseSensitive bool) *BaseResolver {
	if funcs == nil {
		funcs = NewFunctionTable()
	}
	return &BaseResolver{RTVarTable: NewRTVarTable(caseSensitive), Functions: funcs}
}

// ResolveIdentifier resolves run-time variables only.
func (b *BaseResolver) ResolveIdentifier(name string, out *value.Value, parent *ast.Node) bool {
	v, ok := b.Lookup(name)
	if !ok {
		return false
	}
	resolved, err := v.Resolved()
	if err != nil {
		return false
	}
	out.Set(resolved)
	return true
}

// CallFunction runs a registered function.
func (b *BaseResolver) CallFunction(name string, node *ast.Node) error {
	canonical, fn, ok := b.Functions.Lookup(name)
	if !ok || fn.Fn == nil {
		return merrors.New("EXEC-0007", map[string]any{"Name": name})
	}
	host := b.Host
	if host == nil {
		host = b
	}
	return fn.Fn(&Call{Name: canonical, Node: node, Host: host})
}

// FunctionContract publishes the registered contracts.
func (b *BaseResolver) FunctionContract(name string) (Contract, bool) {
	_, fn, ok := b.Functions.Lookup(name)
	if !ok || fn.Contract.IsZero() {
		return Contract{}, false
	}
	return fn.Contract, true
}

var (
	_ Resolver         = (*BaseResolver)(nil)
	_ ContractProvider = (*BaseResolver)(nil)
)
