package shortlist

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

const (
	driverValkey = "valkey"
	driverRedis  = "redis"
	driverBolt   = "bolt"
	driverSQLite = "sqlite"
)

type clientConfig struct {
	driver    string
	addrs     []string
	password  string
	path      string
	keyPrefix string

	embedder   Embedder
	dimensions int
	generator  Generator
	fetcher    bool

	policy       string
	workers      int
	maxDocuments int
	maxChars     int
	preamble     string

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithValkey stores pools in a Valkey instance.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverValkey
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis stores pools in a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverRedis
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithBolt stores pools in a bbolt file.
func WithBolt(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverBolt
		c.path = path
	})
}

// WithSQLite stores pools in a SQLite database. ":memory:" keeps everything in process.
func WithSQLite(dsn string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverSQLite
		c.path = dsn
	})
}

// WithKeyPrefix namespaces Redis/Valkey keys. Default: "shortlist:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithEmbedder sets the embedding provider and the dimension it produces. Required.
func WithEmbedder(e Embedder, dimensions int) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
		c.dimensions = dimensions
	})
}

// WithGenerator sets the generative model. Without it ingestion embeds the
// job description directly and Query fails with ErrGenerationFailure.
func WithGenerator(g Generator) Option {
	return optionFunc(func(c *clientConfig) {
		c.generator = g
	})
}

// WithURLDocuments allows documents addressed by URL; they are downloaded during ingestion.
func WithURLDocuments() Option {
	return optionFunc(func(c *clientConfig) {
		c.fetcher = true
	})
}

// WithDirectScoring embeds the job description as is instead of its key-point summary.
func WithDirectScoring() Option {
	return optionFunc(func(c *clientConfig) {
		c.policy = policyDirect
	})
}

// WithWorkers bounds concurrent document scoring. Default: 4.
func WithWorkers(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.workers = n
	})
}

// WithPromptBudget limits how many documents and document characters reach the
// generator. Zero means unlimited.
func WithPromptBudget(maxDocuments, maxChars int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxDocuments = maxDocuments
		c.maxChars = maxChars
	})
}

// WithPreamble replaces the built-in generator instructions.
func WithPreamble(p string) Option {
	return optionFunc(func(c *clientConfig) {
		c.preamble = p
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
