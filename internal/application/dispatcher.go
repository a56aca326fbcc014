package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/sirupsen/logrus"

	"defect-inspector/internal/domain/entity"
	"defect-inspector/internal/domain/port"
)

var (
	// ErrQueueFull: все воркеры заняты, а очередь заполнена.
	ErrQueueFull = errors.New("job queue is full")
	// ErrDispatcherStopped: диспетчер больше не принимает задания.
	ErrDispatcherStopped = errors.New("dispatcher is stopped")
)

// task описывает одну проверку для воркера.
type task struct {
	job      *entity.Job
	template []byte
	test     []byte
	params   entity.Params
}

// Dispatcher раздаёт проверки фиксированному числу воркеров через
// ограниченную очередь и сохраняет результаты в JobStore.
type Dispatcher struct {
	inspections *InspectionService
	jobs        port.JobStore
	maxWorkers  int
	jobQueue    chan task
	log         logrus.FieldLogger
	now         func() time.Time

	mu      sync.RWMutex
	started bool
	stopped bool
	wg      sync.WaitGroup
}

// NewDispatcher создаёт диспетчер; воркеры стартуют в Run.
func NewDispatcher(inspections *InspectionService, jobs port.JobStore, maxWorkers, queueSize int, log logrus.FieldLogger) *Dispatcher {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Dispatcher{
		inspections: inspections,
		jobs:        jobs,
		maxWorkers:  maxWorkers,
		jobQueue:    make(chan task, queueSize),
		log:         log.WithField("component", "dispatcher"),
		now:         time.Now,
	}
}

// Run запускает воркеров. Повторный вызов ничего не делает.
func (d *Dispatcher) Run() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.started = true

	for i := 0; i < d.maxWorkers; i++ {
		d.wg.Add(1)
		go d.work(i + 1)
	}
	d.log.WithField("workers", d.maxWorkers).Info("dispatcher started")
}

// Submit ставит проверку в очередь и возвращает задание в статусе pending.
func (d *Dispatcher) Submit(ctx context.Context, template, test []byte, params entity.Params) (*entity.Job, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("generate job id: %w", err)
	}
	job := entity.NewJob(id.String(), d.now())

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return nil, ErrDispatcherStopped
	}

	// pending сохраняется до постановки в очередь, иначе воркер может
	// записать результат раньше и его затрёт pending.
	if err := d.jobs.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("save job: %w", err)
	}

	// После отправки задание принадлежит воркеру.
	snapshot := *job
	select {
	case d.jobQueue <- task{job: job, template: template, test: test, params: params}:
		d.log.WithField("job_id", snapshot.ID).Debug("job queued")
		return &snapshot, nil
	default:
		job.Fail(ErrQueueFull, d.now())
		if err := d.jobs.Save(ctx, job); err != nil {
			d.log.WithError(err).WithField("job_id", job.ID).Warn("failed to save rejected job")
		}
		return nil, ErrQueueFull
	}
}

// Stop перестаёт принимать задания и ждёт, пока воркеры разберут очередь.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.jobQueue)
	started := d.started
	d.mu.Unlock()

	if !started {
		// Воркеров нет: оставшиеся задания помечаются неудачными.
		for t := range d.jobQueue {
			t.job.Fail(ErrDispatcherStopped, d.now())
			d.save(t.job)
		}
		return
	}
	d.wg.Wait()
	d.log.Info("dispatcher stopped")
}

func (d *Dispatcher) work(id int) {
	defer d.wg.Done()
	log := d.log.WithField("worker", id)
	log.Debug("worker starting")

	for t := range d.jobQueue {
		d.process(log, t)
	}
	log.Debug("worker stopping")
}

func (d *Dispatcher) process(log logrus.FieldLogger, t task) {
	log = log.WithField("job_id", t.job.ID)

	out, err := d.inspections.Inspect(context.Background(), t.template, t.test, t.params)
	if err != nil {
		t.job.Fail(err, d.now())
		log.WithField("kind", t.job.ErrorKind).Info("job failed")
	} else {
		summary := ""
		if out.Description != nil {
			summary = out.Description.Text
		}
		t.job.Complete(out.Report, summary, out.Annotated, d.now())
		log.WithField("defects", t.job.DefectCount).Info("job done")
	}
	d.save(t.job)
}

func (d *Dispatcher) save(job *entity.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.jobs.Save(ctx, job); err != nil {
		d.log.WithError(err).WithField("job_id", job.ID).Error("failed to save job result")
	}
}
