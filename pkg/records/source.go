package records

import (
	"context"
	"fmt"
	"strings"

	"github.com/sambeau/seqmacro/pkg/macro/ast"
	"github.com/sambeau/seqmacro/pkg/macro/engine"
	"github.com/sambeau/seqmacro/pkg/macro/evaluator"
)

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithCollection sets the collection used when a macro has no FOR EACH
// selector or selects "*".
func WithCollection(name string) SourceOption {
	return func(s *Source) { s.collection = name }
}

// WithOutput sets where Log statements print.
func WithOutput(out engine.Logger) SourceOption {
	return func(s *Source) { s.out = out }
}

// WithSourceCaseSensitive matches field names and string functions by case.
func WithSourceCaseSensitive(cs bool) SourceOption {
	return func(s *Source) { s.caseSensitive = cs }
}

// Source offers the records of a store to the engine. The FOR EACH selector
// names the collection and FROM restricts records by annotation.
type Source struct {
	store         Store
	funcs         *evaluator.FunctionTable
	collection    string
	caseSensitive bool
	out           engine.Logger
}

// DefaultCollection is used when no collection is configured.
const DefaultCollection = "default"

func NewSource(store Store, funcs *evaluator.FunctionTable, opts ...SourceOption) *Source {
	s := &Source{store: store, funcs: funcs, collection: DefaultCollection, out: engine.NullLogger()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type handle struct {
	collection string
	rec        *Record
}

// CollectionFor returns the collection a target reads.
func (s *Source) CollectionFor(target ast.Target) string {
	if target.Selector == "" || target.Selector == "*" {
		return s.collection
	}
	return target.Selector
}

func (s *Source) Items(ctx context.Context, target ast.Target) ([]engine.Item, error) {
	coll := s.CollectionFor(target)
	recs, err := s.store.Load(ctx, coll)
	if err != nil {
		return nil, err
	}
	items := make([]engine.Item, 0, len(recs))
	for _, r := range recs {
		if target.NamedAnnot != "" && !strings.EqualFold(r.Annot, target.NamedAnnot) {
			continue
		}
		items = append(items, engine.Item{ID: r.ID, Handle: handle{collection: coll, rec: r}})
	}
	return items, nil
}

func (s *Source) Resolver(item engine.Item, m *ast.Macro) evaluator.Resolver {
	h := item.Handle.(handle)
	return NewResolver(h.rec, s.funcs, s.caseSensitive, s.out)
}

// Commit saves the changed records, one Save per collection.
func (s *Source) Commit(ctx context.Context, items []engine.Item) error {
	byColl := map[string][]*Record{}
	var order []string
	for _, it := range items {
		h, ok := it.Handle.(handle)
		if !ok {
			return fmt.Errorf("record %s was not loaded by this source", it.ID)
		}
		if _, seen := byColl[h.collection]; !seen {
			order = append(order, h.collection)
		}
		byColl[h.collection] = append(byColl[h.collection], h.rec)
	}
	for _, coll := range order {
		if err := s.store.Save(ctx, coll, byColl[coll]); err != nil {
			return err
		}
	}
	return nil
}

var _ engine.RecordSource = (*Source)(nil)
