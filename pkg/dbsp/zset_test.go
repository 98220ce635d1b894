package dbsp_test

import (
	"github.com/l7mp/dflow/pkg/dbsp"

	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Values and rows", func() {
	It("should order values by kind and payload", func() {
		Expect(dbsp.Null().Compare(dbsp.Int(0))).To(Equal(-1))
		Expect(dbsp.Int(10).Compare(dbsp.Text("1"))).To(Equal(-1))
		Expect(dbsp.Int(2).Compare(dbsp.Int(10))).To(Equal(-1))
		Expect(dbsp.Text("b").Compare(dbsp.Text("a"))).To(Equal(1))
		Expect(dbsp.Null().Equal(dbsp.Null())).To(BeTrue())
		Expect(dbsp.Int(2).Equal(dbsp.Text("2"))).To(BeFalse())
	})

	It("should convert native values", func() {
		row := dbsp.NewRow(2, "r1", nil, int64(-3))
		Expect(row).To(HaveLen(4))
		Expect(row[0].Kind()).To(Equal(dbsp.KindInt))
		Expect(row[1].Kind()).To(Equal(dbsp.KindText))
		Expect(row[2].IsNull()).To(BeTrue())

		_, err := dbsp.ParseRow([]any{1.5})
		Expect(err).To(MatchError(dbsp.ErrInvalidValue))
		_, err = dbsp.ParseRow([]any{struct{}{}})
		Expect(err).To(MatchError(dbsp.ErrInvalidValue))
	})

	It("should round-trip rows through JSON", func() {
		row := dbsp.NewRow(2, "anonymous", nil)
		data, err := json.Marshal(row)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal(`[2,"anonymous",null]`))

		var back dbsp.Row
		Expect(json.Unmarshal(data, &back)).To(Succeed())
		Expect(back.Equal(row)).To(BeTrue())
	})

	It("should distinguish integer and string keys", func() {
		Expect(dbsp.NewRow(2).Key()).NotTo(Equal(dbsp.NewRow("2").Key()))
		Expect(dbsp.NewRow(2, "a").Key()).To(Equal(dbsp.NewRow(2, "a").Key()))
	})

	It("should project and rewrite without touching the input", func() {
		row := dbsp.NewRow(1, "a", "b")
		Expect(row.Project([]int{2, 0})).To(Equal(dbsp.NewRow("b", 1)))
		rw := row.With(1, dbsp.Text("x"))
		Expect(rw).To(Equal(dbsp.NewRow(1, "x", "b")))
		Expect(row).To(Equal(dbsp.NewRow(1, "a", "b")))
	})

	It("should resolve schema columns", func() {
		s := dbsp.Schema{"paper", "reviewer"}
		i, ok := s.ColumnIndex("reviewer")
		Expect(ok).To(BeTrue())
		Expect(i).To(Equal(1))
		_, ok = s.ColumnIndex("contents")
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("ZSet", func() {
	var r1, r2 dbsp.Row

	BeforeEach(func() {
		r1 = dbsp.NewRow(1, "a")
		r2 = dbsp.NewRow(2, "b")
	})

	It("should accumulate multiplicities and drop zero entries", func() {
		z := dbsp.NewZSet()
		z.AddRow(r1, 2)
		z.AddRow(r2, 1)
		Expect(z.Size()).To(Equal(3))
		z.AddRow(r1, -2)
		Expect(z.Multiplicity(r1)).To(Equal(0))
		Expect(z.Entries()).To(HaveLen(1))
	})

	It("should add and subtract", func() {
		a := dbsp.FromRows(r1, r2)
		b := dbsp.FromRows(r1)
		Expect(a.Add(b).Multiplicity(r1)).To(Equal(2))
		diff := a.Subtract(b)
		Expect(diff.Multiplicity(r1)).To(Equal(0))
		Expect(diff.Contains(r2)).To(BeTrue())
		// inputs are untouched
		Expect(a.Size()).To(Equal(2))
	})

	It("should keep negative multiplicities", func() {
		z := dbsp.FromDeltas(dbsp.Delta{Row: r1, Sign: dbsp.Delete}, dbsp.Delta{Row: r2, Sign: dbsp.Insert})
		Expect(z.Multiplicity(r1)).To(Equal(-1))
		Expect(z.Size()).To(Equal(1))
		Expect(z.TotalSize()).To(Equal(2))
		Expect(z.Weight()).To(Equal(0))
		Expect(z.Rows()).To(Equal([]dbsp.Row{r2}))
	})

	It("should expand into sorted unit deltas", func() {
		z := dbsp.NewZSet()
		z.AddRow(r2, -1)
		z.AddRow(r1, 2)
		Expect(z.Deltas()).To(Equal([]dbsp.Delta{
			{Row: r1, Sign: dbsp.Insert},
			{Row: r1, Sign: dbsp.Insert},
			{Row: r2, Sign: dbsp.Delete},
		}))
	})

	It("should print itself", func() {
		Expect(dbsp.NewZSet().String()).To(Equal("∅"))
		Expect(dbsp.FromRows(r1).String()).To(Equal(`{(1, "a")×1}`))
	})
})
