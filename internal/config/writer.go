package config

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// WriteFunc persists serialized bytes to a path. Injectable for tests.
type WriteFunc func(path string, data []byte) error

// Writer is the single-flight config persister. At most one write is in
// flight; mutations that arrive during a write coalesce into exactly one
// follow-up using the latest snapshot. A failed write does not block the
// follow-up.
type Writer struct {
	path      string
	logger    *slog.Logger
	writeFile WriteFunc
	onResult  func(error)

	mu      sync.Mutex
	writing bool
	pending bool
	latest  *Config
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithWriteFunc replaces the file write implementation.
func WithWriteFunc(fn WriteFunc) WriterOption {
	return func(w *Writer) {
		w.writeFile = fn
	}
}

// WithWriterLogHandler sets a custom log handler for the Writer.
func WithWriterLogHandler(handler slog.Handler) WriterOption {
	return func(w *Writer) {
		w.logger = slog.New(handler).WithGroup("config.Writer")
	}
}

// WithOnResult registers a callback invoked after every write attempt with
// its outcome. Used to wire metrics.
func WithOnResult(fn func(error)) WriterOption {
	return func(w *Writer) {
		w.onResult = fn
	}
}

// NewWriter creates a writer targeting path.
func NewWriter(path string, opts ...WriterOption) *Writer {
	w := &Writer{
		path:   path,
		logger: slog.Default().WithGroup("config.Writer"),
		writeFile: func(path string, data []byte) error {
			return os.WriteFile(path, data, 0o644)
		},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Schedule requests persistence of the given snapshot. If a write is in
// flight the snapshot is held for the single coalesced follow-up.
func (w *Writer) Schedule(snapshot *Config) {
	w.mu.Lock()
	if w.writing {
		w.pending = true
		w.latest = snapshot
		w.mu.Unlock()
		return
	}
	w.writing = true
	w.mu.Unlock()

	go w.write(snapshot)
}

// InFlight reports whether a write (or pending follow-up) is outstanding.
func (w *Writer) InFlight() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writing
}

func (w *Writer) write(snapshot *Config) {
	err := w.persist(snapshot)
	if err != nil {
		w.logger.Error("Config write failed", "path", w.path, "error", err)
	} else {
		w.logger.Debug("Config written", "path", w.path)
	}
	if w.onResult != nil {
		w.onResult(err)
	}

	w.mu.Lock()
	if w.pending {
		w.pending = false
		next := w.latest
		w.latest = nil
		w.mu.Unlock()
		go w.write(next)
		return
	}
	w.writing = false
	w.mu.Unlock()
}

func (w *Writer) persist(snapshot *Config) error {
	data, err := snapshot.Marshal()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if err := w.writeFile(w.path, data); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return nil
}
