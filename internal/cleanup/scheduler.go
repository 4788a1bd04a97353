// Package cleanup removes transient output files after they have been served.
package cleanup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	// OutputPrefix starts the name of every transient output file
	OutputPrefix = "filled_"
	// OutputPattern matches transient output files in the output directory
	OutputPattern = OutputPrefix + "*.pdf"
)

var (
	// ErrAlreadyRemoved is reported when the file was gone before its deletion ran
	ErrAlreadyRemoved = errors.New("file already removed")
	// ErrCanceled is reported when a task was canceled before it ran
	ErrCanceled = errors.New("cleanup canceled")
	// ErrClosed is reported for tasks scheduled after Close
	ErrClosed = errors.New("scheduler closed")
)

// NewOutputName returns a unique file name for a transient output file
func NewOutputName() string {
	return OutputPrefix + uuid.NewString() + ".pdf"
}

// Task is the handle of one scheduled deletion
type Task struct {
	path  string
	timer *time.Timer
	done  chan struct{}
	once  sync.Once
	err   error
}

// Path returns the file the task deletes
func (t *Task) Path() string {
	return t.path
}

// Done is closed once the task has run or been canceled
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err returns the outcome of the task. It is nil until Done is closed and
// nil afterwards when the file was removed.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Cancel stops a pending deletion. It reports whether the task was still pending.
func (t *Task) Cancel() bool {
	if t.timer != nil && !t.timer.Stop() {
		return false
	}
	return t.finish(ErrCanceled)
}

func (t *Task) finish(err error) bool {
	finished := false
	t.once.Do(func() {
		t.err = err
		close(t.done)
		finished = true
	})
	return finished
}

// Scheduler deletes output files after a delay and periodically sweeps the
// output directory for files that outlived their TTL
type Scheduler struct {
	dir    string
	ttl    time.Duration
	logger *zap.Logger

	cron    *cron.Cron
	now     func() time.Time
	mu      sync.Mutex
	tasks   map[*Task]struct{}
	running bool
	closed  bool
}

// NewScheduler creates a scheduler for output files in dir older than ttl.
// A nil logger discards all output.
func NewScheduler(dir string, ttl time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		dir:    dir,
		ttl:    ttl,
		logger: logger,
		cron:   cron.New(),
		now:    time.Now,
		tasks:  make(map[*Task]struct{}),
	}
}

// Start runs the directory sweep every interval until Close
func (s *Scheduler) Start(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %v", interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.running {
		return fmt.Errorf("cleanup scheduler already running")
	}

	spec := fmt.Sprintf("@every %s", interval)
	if _, err := s.cron.AddFunc(spec, s.sweepJob); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("Output sweep started",
		zap.String("dir", s.dir),
		zap.Duration("interval", interval),
		zap.Duration("ttl", s.ttl))
	return nil
}

// Schedule deletes path after delay and returns the handle of the deletion
func (s *Scheduler) Schedule(path string, delay time.Duration) *Task {
	task := &Task{path: path, done: make(chan struct{})}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		task.finish(ErrClosed)
		return task
	}

	s.tasks[task] = struct{}{}
	task.timer = time.AfterFunc(delay, func() {
		s.run(task)
	})
	return task
}

// Pending returns the number of deletions that have not run yet
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for task := range s.tasks {
		select {
		case <-task.done:
		default:
			n++
		}
	}
	return n
}

func (s *Scheduler) run(task *Task) {
	defer func() {
		s.mu.Lock()
		delete(s.tasks, task)
		s.mu.Unlock()
	}()

	err := os.Remove(task.path)
	switch {
	case err == nil:
		s.logger.Debug("Removed output file", zap.String("path", task.path))
	case errors.Is(err, os.ErrNotExist):
		err = ErrAlreadyRemoved
		s.logger.Debug("Output file was already removed", zap.String("path", task.path))
	default:
		s.logger.Warn("Failed to remove output file", zap.String("path", task.path), zap.Error(err))
	}
	task.finish(err)
}

func (s *Scheduler) sweepJob() {
	if _, err := s.Sweep(); err != nil {
		s.logger.Error("Output sweep failed", zap.Error(err))
	}
}

// Sweep deletes every output file in the directory last modified more than
// the TTL ago and returns the removed paths
func (s *Scheduler) Sweep() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, OutputPattern))
	if err != nil {
		return nil, fmt.Errorf("failed to list output files: %w", err)
	}

	cutoff := s.now().Add(-s.ttl)
	var removed []string
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("Failed to remove stale output file", zap.String("path", path), zap.Error(err))
			continue
		}
		removed = append(removed, path)
	}

	if len(removed) > 0 {
		s.logger.Debug("Swept stale output files", zap.String("dir", s.dir), zap.Int("count", len(removed)))
	}
	return removed, nil
}

// Close stops the sweep and cancels pending deletions. Files of canceled
// deletions are left for the next sweep.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	running := s.running
	s.running = false
	tasks := make([]*Task, 0, len(s.tasks))
	for task := range s.tasks {
		tasks = append(tasks, task)
	}
	s.mu.Unlock()

	for _, task := range tasks {
		task.Cancel()
	}

	if running {
		<-s.cron.Stop().Done()
	}
}
