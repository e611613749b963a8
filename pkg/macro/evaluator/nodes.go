package evaluator

import (
	"github.com/sambeau/seqmacro/pkg/macro/ast"
	"github.com/sambeau/seqmacro/pkg/macro/value"
)

func evalConst(ex *Executor, n *ast.Node) error {
	n.Value = n.Literal
	return nil
}

// evalIdentifier asks the host for the value. An unresolved identifier is
// NotSet, never an error: WHERE clauses treat unknown fields as absent.
func evalIdentifier(ex *Executor, n *ast.Node) error {
	n.Value.SetNotSet()
	if ex.resolver.ResolveIdentifier(n.Name, &n.Value, ex.Parent()) {
		return nil
	}
	n.Value.SetNotSet()
	ex.log.WithField("identifier", n.Name).Trace("unresolved identifier")
	return nil
}

// evalRTVar binds the node to the variable slot, or to the object a
// statement filter is currently testing.
func evalRTVar(ex *Executor, n *ast.Node) error {
	if obj, ok := ex.resolver.GetTmpRTVarObject(n.Name); ok {
		n.Value = value.NewObjectList([]value.ObjectRef{obj})
		return nil
	}
	n.Value = value.NewRef(ex.resolver.GetOrCreateRTVar(n.Name))
	return nil
}

// evalAssignment stores the right-hand side in the variable slot.
//
// With a filter, an object-list value is narrowed to the objects for which
// the filter holds, each bound in turn under the variable's name; any other
// value is assigned only when the filter holds. A simple value assigned to
// a variable holding objects is written to those objects when the resolver
// supports it.
func evalAssignment(ex *Executor, n *ast.Node) error {
	if len(n.Children) != 2 {
		return ex.errorAt(n, "EXEC-0003", map[string]any{"Op": "=", "Expected": 2, "Got": len(n.Children)})
	}
	lhs, rhs := n.Children[0], n.Children[1]
	src, err := ex.operand(rhs)
	if err != nil {
		return err
	}

	if n.Filter != nil {
		if src.Kind() == value.ObjectList {
			src, err = ex.filterObjects(n, lhs.Name, src.ObjectList())
			if err != nil {
				return err
			}
		} else {
			ok, err := ex.evalFilter(n)
			if err != nil {
				return err
			}
			if !ok {
				n.Value.SetNotSet()
				return nil
			}
		}
	}

	slot := ex.resolver.GetOrCreateRTVar(lhs.Name)
	if slot.Kind() == value.ObjectList && src.IsSimpleType() {
		assigner, ok := ex.resolver.(ObjectAssigner)
		if !ok {
			return ex.errorAt(n, "EXEC-0006", map[string]any{"Type": src.Kind().String(), "Name": lhs.Name})
		}
		if err := assigner.AssignObjects(slot.ObjectList(), src); err != nil {
			return ex.locate(n, err)
		}
		n.Value = src
		return nil
	}
	slot.Set(src)
	n.Value = src
	return nil
}

func (ex *Executor) filterObjects(n *ast.Node, name string, objs []value.ObjectRef) (value.Value, error) {
	kept := make([]value.ObjectRef, 0, len(objs))
	for _, obj := range objs {
		ex.resolver.AddTmpRTVarObject(name, obj)
		ok, err := ex.evalFilter(n)
		ex.resolver.ResetTmpRTVarObjects()
		if err != nil {
			return value.Value{}, err
		}
		if ok {
			kept = append(kept, obj)
		}
	}
	return value.NewObjectList(kept), nil
}

// evalCall dereferences the arguments, checks them against the function's
// contract when the resolver publishes one, and hands the node to the
// resolver. A NotSet argument where a typed one is required makes the call
// NotSet without running it.
func evalCall(ex *Executor, n *ast.Node) error {
	for _, c := range n.Children {
		if err := c.Value.Dereference(); err != nil {
			return ex.errorAt(c, "EXEC-0005", map[string]any{"Name": c.Name, "Limit": value.MaxDereferenceHops})
		}
	}

	if cp, ok := ex.resolver.(ContractProvider); ok {
		if contract, found := cp.FunctionContract(n.Name); found {
			notSet, err := contract.Check(n)
			if err != nil {
				return ex.locate(n, err)
			}
			if notSet {
				n.Value.SetNotSet()
				return nil
			}
		}
	}

	n.Value.SetNotSet()
	if err := ex.resolver.CallFunction(n.Name, n); err != nil {
		return ex.locate(n, err)
	}
	ex.log.WithField("function", n.Name).WithField("result", n.Value.String()).Trace("call")
	return nil
}
