package persist

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/l7mp/dflow/pkg/dbsp"
)

var _ = Describe("Log", func() {
	var (
		ctx context.Context
		dir string
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		dir, err = os.MkdirTemp("", "dflow-persist-")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { os.RemoveAll(dir) })
	})

	collect := func(l Log) []Record {
		var recs []Record
		Expect(l.Replay(ctx, func(r Record) error {
			recs = append(recs, r)
			return nil
		})).To(Succeed())
		return recs
	}

	It("should parse modes", func() {
		m, err := ParseMode("")
		Expect(err).NotTo(HaveOccurred())
		Expect(m).To(Equal(ModeMemory))
		m, err = ParseMode("permanent")
		Expect(err).NotTo(HaveOccurred())
		Expect(m).To(Equal(ModePermanent))
		_, err = ParseMode("sometimes")
		Expect(err).To(MatchError(ErrInvalidMode))
	})

	It("should not record anything in memory mode", func() {
		l, err := Open(Params{Mode: ModeMemory, Logger: logger})
		Expect(err).NotTo(HaveOccurred())
		Expect(l.Append(ctx, Record{Seq: 1, Table: "review", Kind: KindInsert, Row: dbsp.NewRow(1)})).To(Succeed())
		Expect(collect(l)).To(BeEmpty())
		Expect(l.Close()).To(Succeed())
	})

	It("should keep permanent logs across reopen", func() {
		path := filepath.Join(dir, "log.db")
		l, err := Open(Params{Mode: ModePermanent, Path: path, Logger: logger})
		Expect(err).NotTo(HaveOccurred())

		Expect(l.Append(ctx, Record{Seq: 1, Table: "review", Kind: KindInsert,
			Row: dbsp.NewRow(2, "r2", "great paper")})).To(Succeed())
		Expect(l.Append(ctx, Record{Seq: 2, Table: "review", Kind: KindDelete,
			Key: dbsp.NewRow(2, "r2")})).To(Succeed())
		Expect(l.Append(ctx, Record{Seq: 3, Table: "review", Kind: KindUpdate,
			Key: dbsp.NewRow(1, "r1"), Row: dbsp.NewRow(1, "r1", nil)})).To(Succeed())
		Expect(l.Close()).To(Succeed())

		l, err = Open(Params{Mode: ModePermanent, Path: path, Logger: logger})
		Expect(err).NotTo(HaveOccurred())
		defer l.Close()

		recs := collect(l)
		Expect(recs).To(HaveLen(3))
		Expect(recs[0].Seq).To(Equal(uint64(1)))
		Expect(recs[0].Row.Equal(dbsp.NewRow(2, "r2", "great paper"))).To(BeTrue())
		Expect(recs[1].Kind).To(Equal(KindDelete))
		Expect(recs[1].Key.Equal(dbsp.NewRow(2, "r2"))).To(BeTrue())
		Expect(recs[2].Row[2].IsNull()).To(BeTrue())

		n, err := l.(*SQLiteLog).Len(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(3))
	})

	It("should reject duplicate sequence numbers", func() {
		l, err := OpenSQLiteLog(filepath.Join(dir, "dup.db"), SQLiteOptions{Logger: logger})
		Expect(err).NotTo(HaveOccurred())
		defer l.Close()
		Expect(l.Append(ctx, Record{Seq: 1, Table: "t", Kind: KindInsert, Row: dbsp.NewRow(1)})).To(Succeed())
		Expect(l.Append(ctx, Record{Seq: 1, Table: "t", Kind: KindInsert, Row: dbsp.NewRow(2)})).NotTo(Succeed())
	})

	It("should remove delete-on-exit logs on close", func() {
		l, err := Open(Params{Mode: ModeDeleteOnExit, Path: dir, FlushInterval: 10 * time.Millisecond, Logger: logger})
		Expect(err).NotTo(HaveOccurred())
		path := l.(*SQLiteLog).Path()
		Expect(filepath.Dir(path)).To(Equal(dir))
		Expect(l.Append(ctx, Record{Seq: 1, Table: "t", Kind: KindInsert, Row: dbsp.NewRow(1)})).To(Succeed())
		Expect(path).To(BeAnExistingFile())

		Expect(l.Close()).To(Succeed())
		Expect(path).NotTo(BeAnExistingFile())
		Expect(l.Append(ctx, Record{Seq: 2})).To(MatchError(ErrClosed))
		// second close is a no-op
		Expect(l.Close()).To(Succeed())
	})

	It("should stop replay on the first callback error", func() {
		l, err := OpenSQLiteLog(filepath.Join(dir, "replay.db"), SQLiteOptions{})
		Expect(err).NotTo(HaveOccurred())
		defer l.Close()
		for i := 1; i <= 3; i++ {
			Expect(l.Append(ctx, Record{Seq: uint64(i), Table: "t", Kind: KindInsert, Row: dbsp.NewRow(i)})).To(Succeed())
		}
		calls := 0
		err = l.Replay(ctx, func(Record) error {
			calls++
			return ErrClosed
		})
		Expect(err).To(MatchError(ErrClosed))
		Expect(calls).To(Equal(1))
	})

	It("should refuse a permanent log without a path", func() {
		_, err := Open(Params{Mode: ModePermanent})
		Expect(err).To(MatchError(ErrInvalidMode))
	})
})
