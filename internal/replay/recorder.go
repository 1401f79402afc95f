package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// Recorder persists replay records. Implementations must never block the
// table's event path.
type Recorder interface {
	Write(rec Record)
	Close() error
}

// NopRecorder discards everything. Used when replay logging is disabled.
type NopRecorder struct{}

func (NopRecorder) Write(Record) {}
func (NopRecorder) Close() error { return nil }

// FileSink appends records as JSON lines to a file. Writes go through a
// bounded queue drained by a single background goroutine; when the queue is
// full the record is dropped and counted rather than stalling the game.
type FileSink struct {
	logger  *log.Logger
	file    *os.File
	queue   chan Record
	done    chan struct{}
	dropped atomic.Int64
	closeMu sync.Mutex
	closed  atomic.Bool
}

// NewFileSink opens (or creates) the replay log at path and starts the writer
// goroutine. The parent directory is created if missing.
func NewFileSink(logger *log.Logger, path string, buffer int) (*FileSink, error) {
	if buffer <= 0 {
		buffer = 1024
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating replay directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening replay log: %w", err)
	}

	s := &FileSink{
		logger: logger.WithPrefix("replay"),
		file:   f,
		queue:  make(chan Record, buffer),
		done:   make(chan struct{}),
	}
	go s.drain()
	return s, nil
}

// Write enqueues a record. Never blocks: a full queue drops the record, and
// writes after Close are dropped silently.
func (s *FileSink) Write(rec Record) {
	if s.closed.Load() {
		return
	}
	select {
	case s.queue <- rec:
	default:
		if n := s.dropped.Add(1); n == 1 || n%1000 == 0 {
			s.logger.Warn("replay queue full, dropping records", "dropped", n)
		}
	}
}

// Dropped returns how many records were lost to backpressure.
func (s *FileSink) Dropped() int64 {
	return s.dropped.Load()
}

// Close stops accepting records, flushes the queue, and closes the file.
func (s *FileSink) Close() error {
	s.closeMu.Lock()
	if !s.closed.CompareAndSwap(false, true) {
		s.closeMu.Unlock()
		return nil
	}
	close(s.queue)
	s.closeMu.Unlock()

	<-s.done
	if n := s.dropped.Load(); n > 0 {
		s.logger.Warn("replay log closed with dropped records", "dropped", n)
	}
	return s.file.Close()
}

func (s *FileSink) drain() {
	defer close(s.done)
	enc := json.NewEncoder(s.file)
	for rec := range s.queue {
		if err := enc.Encode(rec); err != nil {
			s.logger.Error("writing replay record", "error", err)
		}
	}
}
