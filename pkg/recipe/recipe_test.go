package recipe

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/l7mp/dflow/internal/testutils"
	"github.com/l7mp/dflow/pkg/dbsp"
	"github.com/l7mp/dflow/pkg/engine"
)

var _ = Describe("Recipe", func() {
	var (
		e      *engine.Engine
		ctx    context.Context
		cancel context.CancelFunc
	)

	BeforeEach(func() {
		ctx, cancel = testutils.Context()
		e = engine.New(engine.Options{Workers: 2, Logger: logger})
	})

	AfterEach(func() {
		Expect(e.Close()).To(Succeed())
		cancel()
	})

	It("should parse the policy recipe", func() {
		r, err := Parse([]byte(testutils.PolicyRecipe))
		Expect(err).NotTo(HaveOccurred())
		Expect(r.Tables).To(HaveLen(2))
		Expect(r.Nodes).To(HaveLen(4))
		Expect(r.Nodes[0].Inputs()).To(Equal([]string{"r_rewrite", "filter"}))
		Expect(r.Nodes[2].Rewrite.Value).To(Equal(dbsp.Text("anonymous")))
		Expect(r.Nodes[3].Filter.Conditions[0].Values).To(Equal([]dbsp.Value{dbsp.Text("r2")}))
	})

	It("should reject unknown fields", func() {
		_, err := Parse([]byte("tables:\n  - name: t\n    colums: [a]\n"))
		Expect(err).To(HaveOccurred())
	})

	It("should build the graph and run the workload", func() {
		r, err := Parse([]byte(testutils.PolicyRecipe))
		Expect(err).NotTo(HaveOccurred())
		res, err := r.Apply(e)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Added).To(HaveLen(6))
		Expect(res.Maintained).To(HaveLen(1))

		w, err := ParseWorkload([]byte(testutils.PolicyData))
		Expect(err).NotTo(HaveOccurred())
		results, err := w.Run(ctx, e)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(2))

		Expect(results[0].View).To(Equal("bottom_join"))
		Expect(results[0].Rows).To(ConsistOf(
			dbsp.NewRow(2, "anonymous", "great paper"),
			dbsp.NewRow(2, "anonymous", "interesting"),
		))
		Expect(results[1].Rows).To(BeEmpty())
	})

	It("should apply updates and deletes", func() {
		r, err := Parse([]byte(testutils.PolicyRecipe))
		Expect(err).NotTo(HaveOccurred())
		_, err = r.Apply(e)
		Expect(err).NotTo(HaveOccurred())

		w, err := ParseWorkload([]byte(testutils.PolicyData))
		Expect(err).NotTo(HaveOccurred())
		_, err = w.Apply(ctx, e)
		Expect(err).NotTo(HaveOccurred())

		w, err = ParseWorkload([]byte(`
writes:
  - table: review
    update:
      key: [2, r1]
      row: [2, r1, boring paper]
  - table: review
    delete: [2, r2]
lookups:
  - view: bottom_join
    key: [2]
`))
		Expect(err).NotTo(HaveOccurred())
		results, err := w.Run(ctx, e)
		Expect(err).NotTo(HaveOccurred())
		// the only r2 review is gone, so nothing passes the filter
		Expect(results[0].Rows).To(BeEmpty())
	})

	It("should reject ambiguous writes", func() {
		w, err := ParseWorkload([]byte("writes:\n  - table: review\n"))
		Expect(err).NotTo(HaveOccurred())
		_, err = w.Apply(ctx, e)
		Expect(err).To(HaveOccurred())
	})

	It("should extend an existing graph", func() {
		r, err := Parse([]byte(testutils.PolicyRecipe))
		Expect(err).NotTo(HaveOccurred())
		_, err = r.Apply(e)
		Expect(err).NotTo(HaveOccurred())

		ext, err := Parse([]byte(`
nodes:
  - name: r1_reviews
    columns: [paper, reviewer, contents]
    maintain: [0]
    filter:
      input: review
      conditions:
        - column: 1
          op: "=="
          values: [r1]
`))
		Expect(err).NotTo(HaveOccurred())
		_, err = ext.Apply(e)
		Expect(err).NotTo(HaveOccurred())

		_, err = e.Insert(ctx, "review", dbsp.NewRow(4, "r1", "ok"))
		Expect(err).NotTo(HaveOccurred())
		v, err := e.View("r1_reviews")
		Expect(err).NotTo(HaveOccurred())
		rows, err := v.Lookup(ctx, dbsp.NewRow(4), true)
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(ConsistOf([]dbsp.Row{dbsp.NewRow(4, "r1", "ok")}))
	})

	It("should reject unknown inputs without changing the graph", func() {
		r, err := Parse([]byte(`
tables:
  - name: t
    columns: [a]
nodes:
  - name: f
    columns: [a]
    filter:
      input: missing
      conditions: []
`))
		Expect(err).NotTo(HaveOccurred())
		_, err = r.Apply(e)
		Expect(err).To(MatchError(engine.ErrUnknownParent))
		Expect(e.Graph().Arena().Len()).To(Equal(0))
	})

	It("should reject cycles", func() {
		r, err := Parse([]byte(`
tables:
  - name: t
    columns: [a]
nodes:
  - name: u
    columns: [a]
    union:
      inputs:
        - from: t
          columns: [0]
        - from: v
          columns: [0]
  - name: v
    columns: [a]
    filter:
      input: u
      conditions: []
`))
		Expect(err).NotTo(HaveOccurred())
		_, err = r.Apply(e)
		Expect(err).To(MatchError(engine.ErrCyclicGraph))
		Expect(e.Graph().Arena().Len()).To(Equal(0))
	})

	It("should reject duplicate names", func() {
		r, err := Parse([]byte(`
tables:
  - name: t
    columns: [a]
nodes:
  - name: t
    columns: [a]
    filter:
      input: t
      conditions: []
`))
		Expect(err).NotTo(HaveOccurred())
		_, err = r.Apply(e)
		Expect(err).To(MatchError(engine.ErrDuplicateName))
	})

	It("should reject nodes with several operators", func() {
		r, err := Parse([]byte(`
tables:
  - name: t
    columns: [a]
nodes:
  - name: f
    columns: [a]
    filter:
      input: t
      conditions: []
    union:
      inputs:
        - from: t
          columns: [0]
`))
		Expect(err).NotTo(HaveOccurred())
		_, err = r.Apply(e)
		Expect(err).To(MatchError(engine.ErrInvalidOperator))
	})

	It("should reject malformed join columns", func() {
		j := &Join{Left: "a", Right: "b", Emit: []JoinColumn{{Both: []int{0}}}}
		_, err := j.operator()
		Expect(err).To(MatchError(engine.ErrInvalidOperator))

		j = &Join{Left: "a", Right: "b", Type: "full"}
		_, err = j.operator()
		Expect(err).To(MatchError(engine.ErrInvalidOperator))
	})
})
