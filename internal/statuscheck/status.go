package statuscheck

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/local/qrprint/internal/communes"
)

// Pinger models the minimal capability we need from a backing service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker aggregates readiness checks for what a print job touches.
type Checker struct {
	store        Pinger
	publisher    Pinger
	outputDir    string
	communesFile string
}

// Options configures the Checker. Publisher may be nil when S3 is disabled.
type Options struct {
	Store        Pinger
	Publisher    Pinger
	OutputDir    string
	CommunesFile string
}

// Status represents the readiness of a subsystem.
type Status struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Summary bundles all subsystem statuses for the front-end.
type Summary struct {
	Store     Status `json:"store"`
	S3        Status `json:"s3"`
	OutputDir Status `json:"output_dir"`
	Communes  Status `json:"communes"`
}

// Ready reports whether jobs can run. S3 is optional and not part of it.
func (s Summary) Ready() bool {
	return s.Store.OK && s.OutputDir.OK && s.Communes.OK
}

// New creates a new Checker with the provided options.
func New(opts Options) *Checker {
	return &Checker{
		store:        opts.Store,
		publisher:    opts.Publisher,
		outputDir:    opts.OutputDir,
		communesFile: opts.CommunesFile,
	}
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
	return Summary{
		Store:     c.checkStore(ctx),
		S3:        c.checkS3(ctx),
		OutputDir: c.checkOutputDir(),
		Communes:  c.checkCommunes(),
	}
}

func (c *Checker) checkStore(ctx context.Context) Status {
	if c.store == nil {
		return Status{OK: false, Message: "store unavailable"}
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.store.Ping(ctx); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: "Connected"}
}

func (c *Checker) checkS3(ctx context.Context) Status {
	if c.publisher == nil {
		return Status{OK: false, Message: "Bucket not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.publisher.Ping(ctx); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: "Connected"}
}

func (c *Checker) checkOutputDir() Status {
	info, err := os.Stat(c.outputDir)
	if err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	if !info.IsDir() {
		return Status{OK: false, Message: "Not a directory"}
	}
	f, err := os.CreateTemp(c.outputDir, ".writecheck-*")
	if err != nil {
		return Status{OK: false, Message: "Not writable"}
	}
	name := f.Name()
	f.Close()
	_ = os.Remove(name)
	return Status{OK: true, Message: "Writable"}
}

func (c *Checker) checkCommunes() Status {
	if _, err := os.Stat(c.communesFile); err != nil {
		return Status{OK: false, Message: "File missing, run the communes command"}
	}
	list, err := communes.ReadJSON(c.communesFile)
	if err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: len(list) > 0, Message: fmt.Sprintf("%d communes", len(list))}
}

func trimError(err error) string {
	if err == nil {
		return ""
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	msg := err.Error()
	if len(msg) > 120 {
		return msg[:120]
	}
	return msg
}
