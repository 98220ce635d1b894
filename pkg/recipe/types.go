package recipe

import "github.com/l7mp/dflow/pkg/dbsp"

// Recipe is the declarative description of a dataflow graph. Nodes may refer to each other in
// any order and to nodes that already exist in the engine.
type Recipe struct {
	Tables []Table `json:"tables,omitempty"`
	Nodes  []Node  `json:"nodes,omitempty"`
}

// Table is a base table.
type Table struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	// Key lists the primary key columns, the whole row if empty.
	Key      []int `json:"key,omitempty"`
	Maintain []int `json:"maintain,omitempty"`
}

// Node is an operator node. Exactly one of the operator fields must be set.
type Node struct {
	Name     string   `json:"name"`
	Columns  []string `json:"columns"`
	Maintain []int    `json:"maintain,omitempty"`

	Join    *Join    `json:"join,omitempty"`
	Filter  *Filter  `json:"filter,omitempty"`
	Rewrite *Rewrite `json:"rewrite,omitempty"`
	Union   *Union   `json:"union,omitempty"`
}

type Join struct {
	Left  string `json:"left"`
	Right string `json:"right"`
	// Type is "inner" (default) or "left".
	Type string       `json:"type,omitempty"`
	Emit []JoinColumn `json:"emit"`
}

// JoinColumn selects a left column, a right column, or a pair of columns that must be equal.
type JoinColumn struct {
	Left  *int  `json:"left,omitempty"`
	Right *int  `json:"right,omitempty"`
	Both  []int `json:"both,omitempty"`
}

type Filter struct {
	Input      string      `json:"input"`
	Conditions []Condition `json:"conditions"`
}

type Condition struct {
	Column int          `json:"column"`
	Op     string       `json:"op"`
	Values []dbsp.Value `json:"values,omitempty"`
}

type Rewrite struct {
	Input        string     `json:"input"`
	Reference    string     `json:"reference"`
	Column       int        `json:"column"`
	Value        dbsp.Value `json:"value"`
	Signal       int        `json:"signal"`
	ReferenceKey int        `json:"referenceKey"`
}

type Union struct {
	Inputs []UnionInput `json:"inputs"`
}

type UnionInput struct {
	From    string `json:"from"`
	Columns []int  `json:"columns"`
}

// Workload is a list of writes followed by a list of lookups.
type Workload struct {
	Writes  []Write  `json:"writes,omitempty"`
	Lookups []Lookup `json:"lookups,omitempty"`
}

// Write is a single base table write. Exactly one of Insert, Delete and Update must be set.
type Write struct {
	Table  string   `json:"table"`
	Insert dbsp.Row `json:"insert,omitempty"`
	Delete dbsp.Row `json:"delete,omitempty"`
	Update *Update  `json:"update,omitempty"`
}

type Update struct {
	Key dbsp.Row `json:"key"`
	Row dbsp.Row `json:"row"`
}

type Lookup struct {
	View string   `json:"view"`
	Key  dbsp.Row `json:"key"`
}

// LookupResult is the answer to a lookup.
type LookupResult struct {
	View string     `json:"view"`
	Key  dbsp.Row   `json:"key"`
	Rows []dbsp.Row `json:"rows"`
}
