package evaluator

import (
	"github.com/sambeau/seqmacro/pkg/macro/ast"
	"github.com/sambeau/seqmacro/pkg/macro/value"
)

// Resolver is implemented by the host. It resolves the names the language
// core cannot: record fields, domain functions and run-time variables.
type Resolver interface {
	// ResolveIdentifier stores the value of name in out. It returns false
	// when the host does not know the name.
	ResolveIdentifier(name string, out *value.Value, parent *ast.Node) bool

	// CallFunction runs the named function. The arguments are the node's
	// evaluated children; the result goes into node.Value.
	CallFunction(name string, node *ast.Node) error

	GetOrCreateRTVar(name string) *value.Value
	ExistRTVar(name string) bool

	// The temporary object cache binds a variable name to one host object
	// while a statement filter is evaluated.
	AddTmpRTVarObject(name string, obj value.ObjectRef)
	GetTmpRTVarObject(name string) (value.ObjectRef, bool)
	ResetTmpRTVarObjects()
}

// ContractProvider is implemented by resolvers that publish argument
// contracts; calls are checked before CallFunction runs.
type ContractProvider interface {
	FunctionContract(name string) (Contract, bool)
}

// ObjectAssigner is implemented by resolvers that can write a simple value
// into host objects, as in `objs = "x"` after `objs = Resolve(...)`.
type ObjectAssigner interface {
	AssignObjects(objs []value.ObjectRef, v value.Value) error
}
