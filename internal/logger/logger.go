package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/axiomhq/axiom-go/axiom"
	"github.com/axiomhq/axiom-go/axiom/ingest"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const serviceName = "qrprint"

// Rotation bounds the size and age of the log file.
type Rotation struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Axiom enables forwarding of info and above to an Axiom dataset.
type Axiom struct {
	Token      string
	OrgID      string
	Dataset    string
	FlushEvery time.Duration
}

// Options defines logger initialization parameters.
type Options struct {
	Level  string
	Pretty bool
	// Console defaults to os.Stderr.
	Console io.Writer
	// File is optional; it is rotated with lumberjack.
	File     string
	Rotation Rotation
	// Axiom is nil when forwarding is off.
	Axiom *Axiom
}

var sink *axiomSink

// Init sets up the global logger. Console output goes to opts.Console, or stderr when unset,
// so command output on stdout stays clean.
func Init(opts Options) error {
	var writers []io.Writer

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	if opts.Pretty {
		writers = append(writers, zerolog.ConsoleWriter{Out: console, TimeFormat: time.Kitchen})
	} else {
		writers = append(writers, console)
	}

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return fmt.Errorf("create logs dir: %w", err)
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.Rotation.MaxSizeMB,
			MaxBackups: opts.Rotation.MaxBackups,
			MaxAge:     opts.Rotation.MaxAgeDays,
			Compress:   opts.Rotation.Compress,
		})
	}

	if opts.Axiom != nil {
		s, err := newAxiomSink(*opts.Axiom)
		if err != nil {
			// keep going without forwarding
			fmt.Fprintf(os.Stderr, "Axiom disabled: %v\n", err)
		} else {
			sink = s
			writers = append(writers, s)
		}
	}

	lvl, err := zerolog.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(lvl).
		With().Timestamp().Str("service", serviceName).
		Logger()
	return nil
}

// Close flushes pending Axiom events.
func Close() {
	if sink != nil {
		sink.Close()
		sink = nil
	}
}

// WithRun returns a child logger tagged with a run identifier.
func WithRun(runID string) zerolog.Logger {
	return log.Logger.With().Str("run_id", runID).Logger()
}

const (
	axiomBuffer = 1000
	axiomBatch  = 200
)

// axiomSink batches log lines and ingests them in the background.
type axiomSink struct {
	client  *axiom.Client
	dataset string
	events  chan axiom.Event
	done    chan struct{}
	wg      sync.WaitGroup
}

func newAxiomSink(cfg Axiom) (*axiomSink, error) {
	opts := []axiom.Option{axiom.SetToken(cfg.Token)}
	if cfg.OrgID != "" {
		opts = append(opts, axiom.SetOrganizationID(cfg.OrgID))
	}
	c, err := axiom.NewClient(opts...)
	if err != nil {
		return nil, err
	}
	every := cfg.FlushEvery
	if every <= 0 {
		every = 10 * time.Second
	}
	s := &axiomSink{
		client:  c,
		dataset: cfg.Dataset,
		events:  make(chan axiom.Event, axiomBuffer),
		done:    make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run(every)
	return s, nil
}

func (s *axiomSink) Write(p []byte) (int, error) {
	return s.WriteLevel(zerolog.NoLevel, p)
}

// WriteLevel drops debug and trace lines and queues the rest. A full queue drops the line.
func (s *axiomSink) WriteLevel(l zerolog.Level, p []byte) (int, error) {
	if l < zerolog.InfoLevel && l != zerolog.NoLevel {
		return len(p), nil
	}
	ev := axiom.Event{}
	if err := json.Unmarshal(p, &ev); err != nil {
		ev = axiom.Event{"message": string(p), "level": "info"}
	}
	if _, ok := ev[ingest.TimestampField]; !ok {
		ev[ingest.TimestampField] = time.Now()
	}
	select {
	case s.events <- ev:
	default:
	}
	return len(p), nil
}

func (s *axiomSink) run(every time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	batch := make([]axiom.Event, 0, axiomBatch)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_, _ = s.client.IngestEvents(ctx, s.dataset, batch)
		batch = batch[:0]
	}
	for {
		select {
		case <-s.done:
			flush()
			return
		case <-ticker.C:
			flush()
		case ev := <-s.events:
			batch = append(batch, ev)
			if len(batch) >= axiomBatch {
				flush()
			}
		}
	}
}

func (s *axiomSink) Close() {
	close(s.done)
	s.wg.Wait()
}
