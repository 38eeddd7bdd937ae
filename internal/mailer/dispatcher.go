package mailer

import (
	"context"
	"fmt"
	"sync"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"
)

type Job func(ctx context.Context) error

type task struct {
	name string
	job  Job
}

// Dispatcher runs fire-and-forget jobs on a fixed pool of workers. Callers
// never see a job's outcome; failures are logged.
type Dispatcher struct {
	logger echo.Logger
	tasks  chan task
	group  errgroup.Group

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(workers, queueSize int, logger echo.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	d := &Dispatcher{logger: logger, tasks: make(chan task, queueSize)}
	for i := 0; i < workers; i++ {
		d.group.Go(func() error {
			for t := range d.tasks {
				d.run(t)
			}
			return nil
		})
	}
	return d
}

// Submit queues job and returns immediately. It reports false when the job
// was dropped because the queue is full or the dispatcher is closed.
func (d *Dispatcher) Submit(name string, job Job) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warnf("dispatcher closed, dropping %s job", name)
		return false
	}

	select {
	case d.tasks <- task{name: name, job: job}:
		return true
	default:
		d.logger.Warnf("dispatch queue full, dropping %s job", name)
		return false
	}
}

func (d *Dispatcher) run(t task) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Errorf("%s job panicked: %v", t.name, r)
		}
	}()

	if err := t.job(context.Background()); err != nil {
		d.logger.Errorf("%s job: %+v", t.name, err)
	}
}

// Close stops accepting jobs and waits for queued ones to finish or ctx to
// expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.tasks)
	}
	d.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- d.group.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("draining dispatcher: %w", ctx.Err())
	}
}
