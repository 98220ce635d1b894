package dbsp_test

import (
	"github.com/l7mp/dflow/pkg/dbsp"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Linear operators", func() {
	Describe("Filter", func() {
		var reviews *dbsp.ZSet

		BeforeEach(func() {
			reviews = dbsp.FromRows(
				dbsp.NewRow(1, "r1", "good"),
				dbsp.NewRow(2, "r2", "great paper"),
				dbsp.NewRow(2, "r3", "interesting"),
				dbsp.NewRow(3, nil, "meh"),
			)
		})

		It("should keep matching rows with their multiplicity", func() {
			op := dbsp.NewFilter(dbsp.In(1, dbsp.Text("r2"), dbsp.Text("r3")))
			Expect(op.Validate([]int{3}, 3)).To(Succeed())

			in := reviews.Clone()
			in.AddRow(dbsp.NewRow(2, "r2", "great paper"), 1)
			out, err := op.Process(in)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Multiplicity(dbsp.NewRow(2, "r2", "great paper"))).To(Equal(2))
			Expect(out.Multiplicity(dbsp.NewRow(2, "r3", "interesting"))).To(Equal(1))
			Expect(out.Entries()).To(HaveLen(2))
		})

		It("should pass retractions through", func() {
			op := dbsp.NewFilter(dbsp.Equal(0, dbsp.Int(2)))
			out, err := op.Process(dbsp.FromDeltas(dbsp.Delta{Row: dbsp.NewRow(2, "r2", "x"), Sign: dbsp.Delete}))
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Multiplicity(dbsp.NewRow(2, "r2", "x"))).To(Equal(-1))
		})

		It("should be idempotent", func() {
			op := dbsp.NewFilter(dbsp.NotEqual(1, dbsp.Text("r1")))
			once, err := op.Process(reviews)
			Expect(err).NotTo(HaveOccurred())
			twice, err := op.Process(once)
			Expect(err).NotTo(HaveOccurred())
			Expect(twice.Entries()).To(Equal(once.Entries()))
		})

		It("should conjoin conditions", func() {
			op := dbsp.NewFilter(dbsp.Equal(0, dbsp.Int(2)), dbsp.NotEqual(1, dbsp.Text("r2")))
			out, err := op.Process(reviews)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Rows()).To(Equal([]dbsp.Row{dbsp.NewRow(2, "r3", "interesting")}))
		})

		It("should handle null and ordered comparisons", func() {
			out, err := dbsp.NewFilter(dbsp.Condition{Column: 1, Op: dbsp.CmpIsNull}).Process(reviews)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Rows()).To(Equal([]dbsp.Row{dbsp.NewRow(3, nil, "meh")}))

			out, err = dbsp.NewFilter(dbsp.Condition{Column: 0, Op: dbsp.CmpGreaterOrEqual, Values: []dbsp.Value{dbsp.Int(2)}}).Process(reviews)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Size()).To(Equal(3))

			// ordered comparisons never match null
			out, err = dbsp.NewFilter(dbsp.Condition{Column: 1, Op: dbsp.CmpLess, Values: []dbsp.Value{dbsp.Text("zzz")}}).Process(reviews)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Size()).To(Equal(3))
		})

		It("should parse comparisons", func() {
			for s, c := range map[string]dbsp.Comparison{"==": dbsp.CmpEqual, "ne": dbsp.CmpNotEqual, "in": dbsp.CmpIn, ">=": dbsp.CmpGreaterOrEqual, "lt": dbsp.CmpLess} {
				got, err := dbsp.ParseComparison(s)
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(Equal(c))
			}
			_, err := dbsp.ParseComparison("like")
			Expect(err).To(MatchError(dbsp.ErrInvalidOperator))
		})

		It("should reject bad configs", func() {
			Expect(dbsp.NewFilter(dbsp.Equal(5, dbsp.Int(1))).Validate([]int{3}, 3)).To(MatchError(dbsp.ErrInvalidOperator))
			Expect(dbsp.NewFilter(dbsp.Equal(0, dbsp.Int(1))).Validate([]int{3}, 2)).To(MatchError(dbsp.ErrArityMismatch))
			Expect(dbsp.NewFilter(dbsp.Condition{Column: 0, Op: dbsp.CmpLess}).Validate([]int{3}, 3)).To(MatchError(dbsp.ErrInvalidOperator))
		})
	})

	Describe("Rewrite", func() {
		It("should redact the target column on every row", func() {
			op := dbsp.NewRewrite(1, dbsp.Text("anonymous"), 0, 0)
			Expect(op.Validate([]int{3, 4}, 3)).To(Succeed())

			out, err := op.Process(dbsp.FromRows(dbsp.NewRow(2, "r2", "great paper"), dbsp.NewRow(2, "r3", "interesting")), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Rows()).To(Equal([]dbsp.Row{
				dbsp.NewRow(2, "anonymous", "great paper"),
				dbsp.NewRow(2, "anonymous", "interesting"),
			}))
		})

		It("should ignore the reference input", func() {
			op := dbsp.NewRewrite(1, dbsp.Text("anonymous"), 0, 0)
			out, err := op.Process(nil, dbsp.FromRows(dbsp.NewRow(2, "r2", "great paper")))
			Expect(err).NotTo(HaveOccurred())
			Expect(out.IsZero()).To(BeTrue())
		})

		It("should merge rows that become equal", func() {
			op := dbsp.NewRewrite(1, dbsp.Text("anonymous"), 0, 0)
			out, err := op.Process(dbsp.FromRows(dbsp.NewRow(2, "r2", "ok"), dbsp.NewRow(2, "r3", "ok")), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Multiplicity(dbsp.NewRow(2, "anonymous", "ok"))).To(Equal(2))
		})

		It("should reject out of range columns", func() {
			Expect(dbsp.NewRewrite(3, dbsp.Text("x"), 0, 0).Validate([]int{3, 3}, 3)).To(MatchError(dbsp.ErrInvalidOperator))
			Expect(dbsp.NewRewrite(0, dbsp.Text("x"), 0, 4).Validate([]int{3, 3}, 3)).To(MatchError(dbsp.ErrInvalidOperator))
			Expect(dbsp.NewRewrite(0, dbsp.Text("x"), 0, 0).Validate([]int{3}, 3)).To(MatchError(dbsp.ErrInvalidOperator))
		})
	})

	Describe("Union", func() {
		It("should project and merge inputs without dedup", func() {
			op := dbsp.NewUnion([]int{0, 1}, []int{1, 0})
			Expect(op.Validate([]int{3, 2}, 2)).To(Succeed())

			out, err := op.Process(
				dbsp.FromRows(dbsp.NewRow(1, "a", "x")),
				dbsp.FromRows(dbsp.NewRow("a", 1), dbsp.NewRow("b", 2)),
			)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Multiplicity(dbsp.NewRow(1, "a"))).To(Equal(2))
			Expect(out.Multiplicity(dbsp.NewRow(2, "b"))).To(Equal(1))
		})

		It("should cancel opposite deltas from different inputs", func() {
			op := dbsp.NewUnion([]int{0}, []int{0})
			out, err := op.Process(
				dbsp.FromDeltas(dbsp.Delta{Row: dbsp.NewRow(1), Sign: dbsp.Insert}),
				dbsp.FromDeltas(dbsp.Delta{Row: dbsp.NewRow(1), Sign: dbsp.Delete}),
			)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.IsZero()).To(BeTrue())
		})

		It("should reject column lists of the wrong width", func() {
			Expect(dbsp.NewUnion([]int{0}, []int{0, 1}).Validate([]int{2, 2}, 1)).To(MatchError(dbsp.ErrArityMismatch))
			Expect(dbsp.NewUnion().Validate([]int{}, 1)).To(MatchError(dbsp.ErrInvalidOperator))
		})
	})
})
