package engine

import (
	"encoding/json"
	"fmt"
	"sort"

	toolscache "k8s.io/client-go/tools/cache"

	"github.com/l7mp/dflow/pkg/dbsp"
)

const lookupIndex = "lookup"

// indexEntry is a distinct row stored in an index. Entries are immutable, updates store a new
// entry.
type indexEntry struct {
	rowKey    string
	lookupKey string
	row       dbsp.Row
	count     int
}

func entryKeyFunc(obj any) (string, error) {
	e, ok := obj.(*indexEntry)
	if !ok {
		return "", fmt.Errorf("unexpected index object %T", obj)
	}
	return e.rowKey, nil
}

func entryLookupFunc(obj any) ([]string, error) {
	e, ok := obj.(*indexEntry)
	if !ok {
		return nil, fmt.Errorf("unexpected index object %T", obj)
	}
	return []string{e.lookupKey}, nil
}

// Index is the materialized state of a maintained node: the multiset of its rows, indexed by the
// projection on the key columns. Only the propagation goroutine writes an index, readers may
// access it concurrently.
type Index struct {
	key   []int
	store toolscache.Indexer
}

func NewIndex(key []int) *Index {
	return &Index{
		key: key,
		store: toolscache.NewIndexer(entryKeyFunc,
			toolscache.Indexers{lookupIndex: entryLookupFunc}),
	}
}

// Key returns the key columns.
func (x *Index) Key() []int { return x.key }

// Apply adds a delta batch to the index. Multiplicities never drop below zero, surplus
// deletions are dropped and reported.
func (x *Index) Apply(delta *dbsp.ZSet) error {
	var underflow error
	for _, e := range delta.Entries() {
		k := e.Row.Key()
		count := e.Multiplicity
		item, exists, err := x.store.GetByKey(k)
		if err != nil {
			return err
		}
		if exists {
			count += item.(*indexEntry).count
		}

		switch {
		case count > 0:
			err = x.store.Update(&indexEntry{
				rowKey:    k,
				lookupKey: e.Row.Project(x.key).Key(),
				row:       e.Row,
				count:     count,
			})
		case exists:
			err = x.store.Delete(item)
		}
		if err != nil {
			return err
		}
		if count < 0 && underflow == nil {
			underflow = fmt.Errorf("row %s deleted %d more times than inserted", e.Row, -count)
		}
	}
	return underflow
}

// Lookup returns the rows stored under key, sorted.
func (x *Index) Lookup(key dbsp.Row) ([]dbsp.Row, error) {
	if len(key) != len(x.key) {
		return nil, dbsp.NewArityError("lookup key", len(x.key), len(key))
	}
	items, err := x.store.ByIndex(lookupIndex, key.Key())
	if err != nil {
		return nil, err
	}
	return expand(items), nil
}

// All returns every row in the index, sorted.
func (x *Index) All() []dbsp.Row { return expand(x.store.List()) }

// Keys returns the distinct key values with at least one row, sorted.
func (x *Index) Keys() []dbsp.Row {
	vals := x.store.ListIndexFuncValues(lookupIndex)
	ret := make([]dbsp.Row, 0, len(vals))
	for _, v := range vals {
		var key dbsp.Row
		if err := json.Unmarshal([]byte(v), &key); err != nil {
			continue
		}
		ret = append(ret, key)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Compare(ret[j]) < 0 })
	return ret
}

// Len returns the number of rows counted with multiplicity.
func (x *Index) Len() int {
	n := 0
	for _, item := range x.store.List() {
		n += item.(*indexEntry).count
	}
	return n
}

// Contents returns the index as a Z-set.
func (x *Index) Contents() *dbsp.ZSet {
	z := dbsp.NewZSet()
	for _, item := range x.store.List() {
		e := item.(*indexEntry)
		z.AddRow(e.row, e.count)
	}
	return z
}

func expand(items []any) []dbsp.Row {
	ret := []dbsp.Row{}
	for _, item := range items {
		e := item.(*indexEntry)
		for i := 0; i < e.count; i++ {
			ret = append(ret, e.row)
		}
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Compare(ret[j]) < 0 })
	return ret
}
