// Package natssource consumes ingestion items from a JetStream stream
// through a durable pull consumer. Each Fetch pulls and acks one message;
// an empty pull ends the run, so a pipeline pass drains whatever the
// stream holds at that moment.
package natssource

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/kohr2/dashboard-killer-graph-sub005/errors"
	"github.com/kohr2/dashboard-killer-graph-sub005/pkg/retry"
)

// Config describes a JetStream source.
type Config struct {
	ID string `yaml:"id"`
	// URL is the NATS server address.
	URL string `yaml:"url"`
	// Stream is the JetStream stream to consume.
	Stream string `yaml:"stream"`
	// Subject filters the consumer. Empty consumes the whole stream.
	Subject string `yaml:"subject"`
	// Durable names the pull consumer; reuse resumes from the last ack.
	Durable string `yaml:"durable"`
	// FetchWait bounds how long an empty pull blocks before the source
	// reports exhaustion. Defaults to 2s.
	FetchWait time.Duration `yaml:"fetch_wait"`
}

// Validate checks the config.
func (c Config) Validate() error {
	if c.URL == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "natssource", "Validate", "require url")
	}
	if c.Stream == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "natssource", "Validate", "require stream")
	}
	if c.Durable == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "natssource", "Validate", "require durable")
	}
	return nil
}

// Source is a single-pass JetStream pull source.
type Source struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	conn     *nats.Conn
	consumer jetstream.Consumer
}

// New builds a Source from cfg.
func New(cfg Config, logger *slog.Logger) (*Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ID == "" {
		cfg.ID = cfg.Stream + "/" + cfg.Durable
	}
	if cfg.FetchWait <= 0 {
		cfg.FetchWait = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{cfg: cfg, logger: logger}, nil
}

// ID implements pipeline.Source.
func (s *Source) ID() string { return s.cfg.ID }

// Type implements pipeline.Source.
func (s *Source) Type() string { return "api" }

// Connect dials the server and binds the durable pull consumer. The dial
// is retried with backoff so a briefly unavailable broker does not fail
// the run.
func (s *Source) Connect(ctx context.Context) error {
	conn, err := retry.DoWithResult(ctx, retry.Quick(), func() (*nats.Conn, error) {
		return nats.Connect(s.cfg.URL, nats.Name("kgraph-"+s.cfg.ID))
	})
	if err != nil {
		return errors.WrapTransient(err, "natssource", "Connect", "dial "+s.cfg.URL)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return errors.WrapTransient(err, "natssource", "Connect", "initialize jetstream")
	}

	consumerCfg := jetstream.ConsumerConfig{
		Durable:       s.cfg.Durable,
		AckPolicy:     jetstream.AckExplicitPolicy,
		FilterSubject: s.cfg.Subject,
	}
	consumer, err := js.CreateOrUpdateConsumer(ctx, s.cfg.Stream, consumerCfg)
	if err != nil {
		conn.Close()
		return errors.WrapTransient(err, "natssource", "Connect", "bind consumer "+s.cfg.Durable)
	}

	s.mu.Lock()
	s.conn = conn
	s.consumer = consumer
	s.mu.Unlock()

	s.logger.Debug("nats source connected",
		"source_id", s.cfg.ID, "stream", s.cfg.Stream, "durable", s.cfg.Durable)
	return nil
}

// Fetch pulls and acks the next message. An empty pull after FetchWait
// means the stream is drained for this pass.
func (s *Source) Fetch(_ context.Context) (json.RawMessage, error) {
	s.mu.Lock()
	consumer := s.consumer
	s.mu.Unlock()
	if consumer == nil {
		return nil, errors.WrapInvalid(errors.ErrStoreUnavailable, "natssource", "Fetch", "fetch before connect")
	}

	batch, err := consumer.Fetch(1, jetstream.FetchMaxWait(s.cfg.FetchWait))
	if err != nil {
		return nil, errors.WrapTransient(err, "natssource", "Fetch", "pull message")
	}
	for msg := range batch.Messages() {
		if err := msg.Ack(); err != nil {
			s.logger.Warn("message ack failed", "source_id", s.cfg.ID, "error", err)
		}
		return msg.Data(), nil
	}
	if err := batch.Error(); err != nil {
		return nil, errors.WrapTransient(err, "natssource", "Fetch", "drain batch")
	}
	return nil, errors.ErrSourceExhausted
}

// Disconnect closes the connection. Safe to call after a failed Connect.
func (s *Source) Disconnect(_ context.Context) error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.consumer = nil
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	return nil
}

// HealthCheck verifies the connection is alive.
func (s *Source) HealthCheck(_ context.Context) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil || !conn.IsConnected() {
		return errors.WrapTransient(errors.ErrSourceConnection, "natssource", "HealthCheck", "check connection")
	}
	return nil
}
