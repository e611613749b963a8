package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sambeau/seqmacro/pkg/macro/ast"
	"github.com/sambeau/seqmacro/pkg/macro/evaluator"
	"github.com/sambeau/seqmacro/pkg/macro/value"
)

// Item is one record offered to a macro.
type Item struct {
	ID     string
	Handle any // host record
}

// RecordSource is implemented by hosts that hold records.
//
// Items returns the candidates for target; the host applies the selector
// and named annotation, the engine applies the range and choice. Resolver
// returns a fresh resolver for one record; it is used by one goroutine.
// Commit persists the records the DO clause ran on.
type RecordSource interface {
	Items(ctx context.Context, target ast.Target) ([]Item, error)
	Resolver(item Item, m *ast.Macro) evaluator.Resolver
	Commit(ctx context.Context, items []Item) error
}

// seeder is implemented by resolvers built on evaluator.RTVarTable.
type seeder interface {
	Seed(m *ast.Macro)
	Set(name string, v value.Value)
}

// RecordError is a failure on one record.
type RecordError struct {
	ID  string
	Err error
}

func (e RecordError) Error() string { return e.ID + ": " + e.Err.Error() }

func (e RecordError) Unwrap() error { return e.Err }

// Report summarizes one run.
type Report struct {
	RunID    string
	Macro    string
	Total    int // records after range and choice
	Matched  int // WHERE true
	Executed int // DO clause completed
	NotSet   int // WHERE produced no value
	Errors   []RecordError
	Duration time.Duration
}

// Failed returns the number of records that raised an error.
func (r *Report) Failed() int { return len(r.Errors) }

// String renders a one-line summary.
func (r *Report) String() string {
	return fmt.Sprintf("%s: %d records, %d matched, %d executed, %d not set, %d failed in %s",
		r.Macro, r.Total, r.Matched, r.Executed, r.NotSet, r.Failed(), r.Duration.Round(time.Millisecond))
}

type outcome int

const (
	skipped outcome = iota
	notSet
	failed
	executed
)

type itemResult struct {
	outcome outcome
	matched bool
	err     error
}

// Run executes m over the records of src.
func (e *Engine) Run(ctx context.Context, m *ast.Macro, src RecordSource) (*Report, error) {
	return e.RunWithParams(ctx, m, src, nil)
}

// RunWithParams executes m with values for its parameters. Records are
// processed by up to the macro's thread count of goroutines, each with its
// own copy of the trees. A failing record is reported and the run goes on;
// a cancelled context stops it.
func (e *Engine) RunWithParams(ctx context.Context, m *ast.Macro, src RecordSource, params map[string]value.Value) (*Report, error) {
	start := time.Now()
	report := &Report{RunID: uuid.NewString(), Macro: m.Name}
	runLog := e.log.WithFields(log.Fields{"run_id": report.RunID, "macro": m.Name})

	items, err := src.Items(ctx, m.ForEach)
	if err != nil {
		return nil, fmt.Errorf("loading records: %w", err)
	}
	items = selectTargets(items, m.ForEach)
	report.Total = len(items)

	threads := m.Threads
	if threads <= 0 {
		threads = e.defaultThreads
	}
	if threads < 1 {
		threads = 1
	}
	runLog.WithFields(log.Fields{"records": len(items), "threads": threads}).Info("run started")

	results := make([]itemResult, len(items))
	if threads == 1 {
		tree := m.Clone()
		for i, item := range items {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			results[i] = e.runItem(tree, src, item, params, runLog)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(threads)
		for i, item := range items {
			i, item := i, item
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				results[i] = e.runItem(m.Clone(), src, item, params, runLog)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	var done []Item
	for i, res := range results {
		if res.matched {
			report.Matched++
		}
		switch res.outcome {
		case executed:
			report.Executed++
			done = append(done, items[i])
		case notSet:
			report.NotSet++
		case failed:
			report.Errors = append(report.Errors, RecordError{ID: items[i].ID, Err: res.err})
		}
	}

	if len(done) > 0 {
		if err := src.Commit(ctx, done); err != nil {
			return report, fmt.Errorf("committing records: %w", err)
		}
	}

	report.Duration = time.Since(start)
	runLog.WithFields(log.Fields{
		"matched":  report.Matched,
		"executed": report.Executed,
		"failed":   report.Failed(),
		"duration": report.Duration,
	}).Info("run finished")
	return report, nil
}

// runItem evaluates WHERE for one record and, when it holds, the DO clause.
func (e *Engine) runItem(m *ast.Macro, src RecordSource, item Item, params map[string]value.Value, runLog *log.Entry) itemResult {
	r := src.Resolver(item, m)
	if s, ok := r.(seeder); ok {
		s.Seed(m)
		for name, v := range params {
			s.Set(name, v)
		}
	}
	recLog := runLog.WithField("record", item.ID)
	ex := e.executor(r, recLog)

	if m.Where != nil {
		if err := ex.EvaluateTree(m.Where, r, true, e.caseSensitive); err != nil {
			recLog.WithError(err).Warn("where clause failed")
			return itemResult{outcome: failed, err: err}
		}
		if ex.IsNotSetType() {
			return itemResult{outcome: notSet}
		}
		if !ex.GetBoolValue() {
			return itemResult{outcome: skipped}
		}
	}

	if err := ex.ExecuteStatements(m.Do, r, e.caseSensitive); err != nil {
		recLog.WithError(err).Warn("do clause failed")
		return itemResult{outcome: failed, matched: true, err: err}
	}
	recLog.Debug("executed")
	return itemResult{outcome: executed, matched: true}
}

// selectTargets applies the range (record ordinals, inclusive) and the
// choice list (record IDs) of target.
func selectTargets(items []Item, target ast.Target) []Item {
	if target.Range == nil && len(target.Choice) == 0 {
		return items
	}
	var ids map[string]bool
	if len(target.Choice) > 0 {
		ids = make(map[string]bool, len(target.Choice))
		for _, c := range target.Choice {
			ids[strings.ToLower(c.Text())] = true
		}
	}

	out := make([]Item, 0, len(items))
	for i, item := range items {
		if !target.Range.Contains(int64(i)) {
			continue
		}
		if ids != nil && !ids[strings.ToLower(item.ID)] {
			continue
		}
		out = append(out, item)
	}
	return out
}
