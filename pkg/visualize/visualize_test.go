package visualize

import (
	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/l7mp/dflow/pkg/dbsp"
	"github.com/l7mp/dflow/pkg/graph"
)

var _ = Describe("Visualize", func() {
	var g *Graph

	BeforeEach(func() {
		gr := graph.New(logr.Discard())
		mig := gr.Migrate()
		review, err := mig.AddBase("review", dbsp.Schema{"paper", "reviewer", "contents"}, []int{0, 1})
		Expect(err).NotTo(HaveOccurred())
		rw, err := mig.AddOperator("r_rewrite", dbsp.Schema{"paper", "reviewer", "contents"},
			dbsp.NewRewrite(1, dbsp.Text("anonymous"), 0, 0), review, review)
		Expect(err).NotTo(HaveOccurred())
		Expect(mig.Maintain(rw, []int{0})).To(Succeed())
		_, err = mig.Commit()
		Expect(err).NotTo(HaveOccurred())

		g = BuildGraph("policy", gr.Arena())
	})

	It("should build the model", func() {
		Expect(g.Nodes).To(HaveLen(2))
		Expect(g.Nodes[0].Kind).To(Equal("table"))
		Expect(g.Nodes[0].Leaf).To(BeFalse())
		Expect(g.Nodes[1].Kind).To(Equal("rewrite"))
		Expect(g.Nodes[1].Key).To(Equal([]int{0}))
		Expect(g.Nodes[1].Leaf).To(BeTrue())
		Expect(g.Edges).To(Equal([]Edge{{From: 0, To: 1, Input: 0}, {From: 0, To: 1, Input: 1}}))
	})

	It("should render DOT", func() {
		gen, err := NewGenerator("dot")
		Expect(err).NotTo(HaveOccurred())
		out := gen.Generate(g)
		Expect(out).To(HavePrefix("digraph"))
		Expect(out).To(ContainSubstring("r_rewrite [1]"))
		Expect(out).To(ContainSubstring("maintained on [0]"))
		Expect(out).To(ContainSubstring("->"))
	})

	It("should render Mermaid", func() {
		gen, err := NewGenerator("mermaid")
		Expect(err).NotTo(HaveOccurred())
		out := gen.Generate(g)
		Expect(out).To(HavePrefix("```mermaid\n"))
		Expect(out).To(ContainSubstring("-->"))
	})

	It("should render every node kind in both formats", func() {
		gr := graph.New(logr.Discard())
		mig := gr.Migrate()
		t, err := mig.AddBase("t", dbsp.Schema{"a", "b"}, nil)
		Expect(err).NotTo(HaveOccurred())
		f, err := mig.AddOperator("f", dbsp.Schema{"a", "b"}, dbsp.NewFilter(dbsp.Equal(0, dbsp.Int(1))), t)
		Expect(err).NotTo(HaveOccurred())
		v, err := mig.AddOperator("v", dbsp.Schema{"a", "b"}, dbsp.NewFilter(dbsp.NotEqual(1, dbsp.Null())), f)
		Expect(err).NotTo(HaveOccurred())
		Expect(mig.Maintain(v, []int{0})).To(Succeed())
		_, err = mig.Commit()
		Expect(err).NotTo(HaveOccurred())

		model := BuildGraph("kinds", gr.Arena())
		Expect(BuildDotGraph(model, DotShapes).String()).To(ContainSubstring("ellipse"))

		var out string
		Expect(func() { out = (&MermaidGenerator{}).Generate(model) }).NotTo(Panic())
		Expect(out).To(HavePrefix("```mermaid\n"))
		Expect(out).To(ContainSubstring("-->"))
	})

	It("should render a graph with a single table as Mermaid", func() {
		gr := graph.New(logr.Discard())
		mig := gr.Migrate()
		_, err := mig.AddBase("t", dbsp.Schema{"a"}, nil)
		Expect(err).NotTo(HaveOccurred())
		_, err = mig.Commit()
		Expect(err).NotTo(HaveOccurred())

		Expect(func() { (&MermaidGenerator{}).Generate(BuildGraph("single", gr.Arena())) }).NotTo(Panic())
	})

	It("should reject unknown formats", func() {
		_, err := NewGenerator("svg")
		Expect(err).To(HaveOccurred())
	})
})
