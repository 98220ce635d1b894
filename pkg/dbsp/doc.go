// Package dbsp implements the relational operators of the dataflow engine on Z-sets (multisets of
// rows with integer multiplicities), following the incremental model of Database Stream
// Processing (DBSP), see https://mihaibudiu.github.io/work/dbsp-spec.pdf.
//
// A batch of changes is represented as a ZSet: positive multiplicities are insertions, negative
// ones are deletions, an update is a deletion of the old row plus an insertion of the new one.
// Every operator consumes one batch per input and produces one output batch.
//
// Key components:
//   - Value, Row, Schema: tagged scalars and fixed-arity tuples.
//   - ZSet: multiset of rows, used both for delta batches and for materialized state.
//   - Operator: the closed set of operators of the graph.
//
// Operator types:
//   - Source: TableOp, a base table with upsert-by-key semantics.
//   - Linear: FilterOp, RewriteOp, UnionOp (stateless, Op^Δ = Op).
//   - Bilinear: JoinOp (inner and left outer equi-joins, keeps an index of both inputs).
//
// Example usage:
//
//	table := dbsp.NewTable(2, 0)
//	delta, err := table.PrepareInsert(dbsp.NewRow(1, "a"))
//	filter := dbsp.NewFilter(dbsp.Equal(1, dbsp.Text("a")))
//	result, err := filter.Process(delta)
package dbsp
