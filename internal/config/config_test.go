package config_test

import (
	"github.com/l7mp/dflow/internal/config"

	"os"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/l7mp/dflow/pkg/engine"
	"github.com/l7mp/dflow/pkg/persist"
)

var _ = Describe("Config", func() {
	It("should apply defaults", func() {
		cfg, err := config.Parse("")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg).To(Equal(config.Default()))
		Expect(cfg.Workers).To(Equal(0))
		Expect(cfg.Persistence.Mode).To(Equal(string(persist.ModeMemory)))
		Expect(cfg.Persistence.FlushInterval).To(Equal(config.DefaultFlushInterval))
		Expect(cfg.Persistence.QueueCapacity).To(Equal(engine.DefaultQueueCapacity))
		Expect(cfg.Metrics.Enabled).To(BeFalse())
		Expect(cfg.Metrics.Address).To(Equal(config.DefaultMetricsAddress))
	})

	It("should parse a full config", func() {
		cfg, err := config.Parse(`
workers = 4

[persistence]
mode = "permanent"
path = "/var/lib/dflow/log.db"
flush-interval = "250ms"
queue-capacity = 64

[metrics]
enabled = true
address = "127.0.0.1:9090"
`)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Workers).To(Equal(4))
		Expect(cfg.Persistence.Mode).To(Equal("permanent"))
		Expect(cfg.Persistence.Path).To(Equal("/var/lib/dflow/log.db"))
		Expect(cfg.Persistence.FlushInterval).To(Equal(250 * time.Millisecond))
		Expect(cfg.Persistence.QueueCapacity).To(Equal(64))
		Expect(cfg.Metrics.Enabled).To(BeTrue())
		Expect(cfg.Metrics.Address).To(Equal("127.0.0.1:9090"))
	})

	It("should reject unknown keys", func() {
		_, err := config.Parse("wrokers = 4\n")
		Expect(err).To(MatchError(config.ErrInvalidConfig))
	})

	It("should reject invalid values", func() {
		_, err := config.Parse("workers = -1\n")
		Expect(err).To(MatchError(config.ErrInvalidConfig))

		_, err = config.Parse("[persistence]\nmode = \"disk\"\n")
		Expect(err).To(MatchError(config.ErrInvalidConfig))
		Expect(err).To(MatchError(persist.ErrInvalidMode))

		_, err = config.Parse("[persistence]\nmode = \"permanent\"\n")
		Expect(err).To(MatchError(config.ErrInvalidConfig))
	})

	It("should load a file and open the log", func() {
		dir := GinkgoT().TempDir()
		file := filepath.Join(dir, "dflow.toml")
		Expect(os.WriteFile(file, []byte("workers = 2\n[persistence]\nmode = \"delete-on-exit\"\npath = \""+
			dir+"\"\n"), 0o644)).To(Succeed())

		cfg, err := config.Load(file)
		Expect(err).NotTo(HaveOccurred())
		opts, err := cfg.EngineOptions(logr.Discard())
		Expect(err).NotTo(HaveOccurred())
		Expect(opts.Workers).To(Equal(2))
		Expect(opts.Log).To(BeAssignableToTypeOf(&persist.SQLiteLog{}))
		Expect(opts.Log.Close()).To(Succeed())
	})

	It("should fail on a missing file", func() {
		_, err := config.Load(filepath.Join(GinkgoT().TempDir(), "missing.toml"))
		Expect(err).To(HaveOccurred())
	})
})
