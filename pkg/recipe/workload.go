package recipe

import (
	"context"
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/l7mp/dflow/pkg/engine"
)

// ParseWorkload decodes a workload. Unknown fields are rejected.
func ParseWorkload(b []byte) (*Workload, error) {
	var w Workload
	if err := yaml.UnmarshalStrict(b, &w); err != nil {
		return nil, fmt.Errorf("failed to parse workload: %w", err)
	}
	return &w, nil
}

// LoadWorkload reads a workload from a file.
func LoadWorkload(file string) (*Workload, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read workload file %q: %w", file, err)
	}
	return ParseWorkload(b)
}

// Apply performs the writes in order and returns the sequence number of the last one.
func (w *Workload) Apply(ctx context.Context, e *engine.Engine) (uint64, error) {
	var seq uint64
	for i, wr := range w.Writes {
		s, err := wr.apply(ctx, e)
		if err != nil {
			return seq, fmt.Errorf("write %d: %w", i, err)
		}
		seq = s
	}
	return seq, nil
}

func (wr *Write) apply(ctx context.Context, e *engine.Engine) (uint64, error) {
	switch {
	case wr.Insert != nil && wr.Delete == nil && wr.Update == nil:
		return e.Insert(ctx, wr.Table, wr.Insert)
	case wr.Delete != nil && wr.Insert == nil && wr.Update == nil:
		return e.Delete(ctx, wr.Table, wr.Delete)
	case wr.Update != nil && wr.Insert == nil && wr.Delete == nil:
		return e.Update(ctx, wr.Table, wr.Update.Key, wr.Update.Row)
	}
	return 0, fmt.Errorf("write to %q must specify exactly one of insert, delete or update", wr.Table)
}

// Run applies the writes and then performs the lookups, each of them blocking until the writes
// are visible.
func (w *Workload) Run(ctx context.Context, e *engine.Engine) ([]LookupResult, error) {
	if _, err := w.Apply(ctx, e); err != nil {
		return nil, err
	}

	ret := make([]LookupResult, 0, len(w.Lookups))
	for _, l := range w.Lookups {
		v, err := e.View(l.View)
		if err != nil {
			return ret, err
		}
		rows, err := v.Lookup(ctx, l.Key, true)
		if err != nil {
			return ret, fmt.Errorf("lookup on %q: %w", l.View, err)
		}
		ret = append(ret, LookupResult{View: l.View, Key: l.Key, Rows: rows})
	}
	return ret, nil
}
