// Package engine wires the catalog, classifier, differ and inspector into
// the single-threaded inspection loop: one write is fully inspected, every
// derived event published, before the next write is read.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/cylab/gammaray/catalog"
	"github.com/cylab/gammaray/classify"
	"github.com/cylab/gammaray/diff"
	"github.com/cylab/gammaray/event"
	"github.com/cylab/gammaray/inspect"
	"github.com/cylab/gammaray/stream"
)

const maxVMNameBytes = 512

// Config is the caller-assembled configuration for one Engine: no env var or
// flag parsing here, since a command-line surface is out of scope.
type Config struct {
	VMName    string
	Index     *catalog.Index
	Publisher event.Publisher
	Logger    logrus.FieldLogger
}

// Engine runs one inspection pipeline over a write-event stream.
type Engine struct {
	hostname string
	vmname   string
	inspect  *inspect.Inspector
	logger   logrus.FieldLogger
	stopped  atomic.Bool
}

// New resolves the current hostname once (capped at 256 bytes) and
// builds an Engine ready to Run. The hostname is stored on the returned
// value, never read from a package-level global.
func New(cfg Config) (*Engine, error) {
	if len(cfg.VMName) > maxVMNameBytes {
		return nil, fmt.Errorf("engine: vmname exceeds %d bytes", maxVMNameBytes)
	}
	if cfg.Index == nil {
		return nil, fmt.Errorf("engine: Config.Index is required")
	}
	if cfg.Publisher == nil {
		return nil, fmt.Errorf("engine: Config.Publisher is required")
	}

	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("engine: resolve hostname: %w", err)
	}
	if len(hostname) > 256 {
		hostname = hostname[:256]
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	e := &Engine{
		hostname: hostname,
		vmname:   cfg.VMName,
		logger:   logger,
	}
	e.inspect = &inspect.Inspector{
		Index:     cfg.Index,
		Differ:    diff.Differ{Publisher: cfg.Publisher},
		Publisher: cfg.Publisher,
		Hostname:  hostname,
		VMName:    cfg.VMName,
		Logger:    logger,
	}
	return e, nil
}

// Stop requests the engine to exit after the in-flight write, if any,
// finishes. Checked only between writes, never mid-write: an in-flight write
// always runs to completion.
func (e *Engine) Stop() {
	e.stopped.Store(true)
}

// Run reads writes from the stream one at a time, inspecting each to
// completion before reading the next, until the stream ends, Stop is
// called, or a fatal error occurs.
func (e *Engine) Run(ctx context.Context, writes *stream.Reader) error {
	for {
		if e.stopped.Load() {
			return nil
		}

		w, err := writes.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("engine: read write event: %w", err)
		}

		if len(w.Data) > 0 {
			role, path := e.pathHint(w)
			e.logger.WithFields(logrus.Fields{
				"sector": w.FirstSector,
				"count":  w.Count,
				"role":   role.String(),
				"path":   path,
			}).Debug("inspecting write")
		}

		if _, err := e.inspect.OnWrite(ctx, w); err != nil {
			return fmt.Errorf("engine: publish event: %w", err)
		}
	}
}

func (e *Engine) pathHint(w stream.Write) (classify.SectorRole, string) {
	role := classify.Classify(classify.Write{FirstSector: w.FirstSector, Count: w.Count}, e.inspect.Index)
	part, ok := e.inspect.Index.PartitionFor(w.FirstSector)
	if !ok {
		return role, ""
	}
	return role, part.FS.MountPoint
}
