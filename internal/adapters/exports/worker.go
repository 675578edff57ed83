// Package exports renders the history log into CSV archives in the background
// and keeps track of each request's progress.
package exports

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"stockroom/internal/blob"
	"stockroom/internal/core"
)

// Status describes the lifecycle stage of an export request.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// KeyPrefix is the blob key prefix under which archives are stored.
const KeyPrefix = "history/"

// DefaultQueueSize bounds the number of requests waiting for the worker.
const DefaultQueueSize = 32

var (
	// ErrQueueFull is returned when the worker cannot accept more requests.
	ErrQueueFull = errors.New("export queue full")
	// ErrNotReady is returned when an archive is requested before it succeeded.
	ErrNotReady = errors.New("export not ready")
	// ErrUnknownExport is returned for ids the worker never issued.
	ErrUnknownExport = errors.New("unknown export")
)

// Record tracks one export request and the archive it produced.
type Record struct {
	ID          string     `json:"id"`
	Status      Status     `json:"status"`
	Query       string     `json:"query,omitempty"`
	RequestedBy string     `json:"requested_by,omitempty"`
	Key         string     `json:"key,omitempty"`
	Rows        int        `json:"rows"`
	SizeBytes   int64      `json:"size_bytes"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (r Record) copy() Record {
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		r.CompletedAt = &t
	}
	return r
}

// Input is an enqueue request.
type Input struct {
	Query       string
	RequestedBy string
}

// HistorySource writes the matching history rows as CSV.
type HistorySource interface {
	WriteHistoryCSV(w io.Writer, query string) (int, error)
}

// Scheduler queues history exports and reports their status.
type Scheduler interface {
	Enqueue(ctx context.Context, input Input) (Record, error)
	Get(id string) (Record, bool)
	List() []Record
	Open(ctx context.Context, id string) (Record, io.ReadCloser, error)
}

type workerOptions struct {
	logger    core.Logger
	audit     core.AuditRecorder
	queueSize int
	now       func() time.Time
}

// Option customises a Worker.
type Option func(*workerOptions)

// WithLogger installs a structured logger.
func WithLogger(l core.Logger) Option {
	return func(o *workerOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithAuditRecorder receives one entry per finished export.
func WithAuditRecorder(a core.AuditRecorder) Option {
	return func(o *workerOptions) { o.audit = a }
}

// WithQueueSize overrides DefaultQueueSize.
func WithQueueSize(n int) Option {
	return func(o *workerOptions) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *workerOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// Worker renders exports on a single background goroutine.
type Worker struct {
	source HistorySource
	store  blob.Store
	logger core.Logger
	audit  core.AuditRecorder
	now    func() time.Time

	queue chan string
	mu    sync.RWMutex
	jobs  map[string]*Record

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ Scheduler = (*Worker)(nil)

// NewWorker constructs a worker writing archives to store.
func NewWorker(source HistorySource, store blob.Store, opts ...Option) *Worker {
	o := workerOptions{
		logger:    core.NoopLogger(),
		queueSize: DefaultQueueSize,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(&o)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		source: source,
		store:  store,
		logger: o.logger,
		audit:  o.audit,
		now:    o.now,
		queue:  make(chan string, o.queueSize),
		jobs:   make(map[string]*Record),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins processing queued exports.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
	w.logger.Info("export worker started", "driver", w.store.Driver())
}

// Stop halts the worker and waits for the in-flight export, bounded by ctx.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		w.logger.Info("export worker stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case id := <-w.queue:
			w.process(id)
		}
	}
}

// Enqueue schedules an export and returns the queued record.
func (w *Worker) Enqueue(_ context.Context, input Input) (Record, error) {
	id := uuid.NewString()
	now := w.now()
	record := &Record{
		ID:          id,
		Status:      StatusQueued,
		Query:       input.Query,
		RequestedBy: input.RequestedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	w.mu.Lock()
	w.jobs[id] = record
	queued := record.copy()
	w.mu.Unlock()

	select {
	case w.queue <- id:
	default:
		w.mu.Lock()
		delete(w.jobs, id)
		w.mu.Unlock()
		return Record{}, ErrQueueFull
	}
	w.logger.Debug("export queued", "id", id, "query", input.Query)
	return queued, nil
}

// Get returns a snapshot of the export record.
func (w *Worker) Get(id string) (Record, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return Record{}, false
	}
	return record.copy(), true
}

// List returns every known export, newest first.
func (w *Worker) List() []Record {
	w.mu.RLock()
	out := make([]Record, 0, len(w.jobs))
	for _, record := range w.jobs {
		out = append(out, record.copy())
	}
	w.mu.RUnlock()
	slices.SortFunc(out, func(a, b Record) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Open returns the archive of a succeeded export. The caller closes the reader.
func (w *Worker) Open(ctx context.Context, id string) (Record, io.ReadCloser, error) {
	record, ok := w.Get(id)
	if !ok {
		return Record{}, nil, fmt.Errorf("%w: %s", ErrUnknownExport, id)
	}
	if record.Status != StatusSucceeded {
		return record, nil, fmt.Errorf("%w: %s is %s", ErrNotReady, id, record.Status)
	}
	_, rc, err := w.store.Get(ctx, record.Key)
	if err != nil {
		return record, nil, fmt.Errorf("open archive %s: %w", record.Key, err)
	}
	return record, rc, nil
}

func (w *Worker) process(id string) {
	started := time.Now()
	w.update(id, func(r *Record) { r.Status = StatusRunning })
	record, ok := w.Get(id)
	if !ok {
		return
	}

	var buf bytes.Buffer
	rows, err := w.source.WriteHistoryCSV(&buf, record.Query)
	if err != nil {
		w.finish(id, started, fmt.Errorf("render history: %w", err))
		return
	}
	key := KeyPrefix + id + ".csv"
	info, err := w.store.Put(w.ctx, key, bytes.NewReader(buf.Bytes()), blob.PutOptions{
		ContentType: "text/csv",
		Metadata: map[string]string{
			"export-id": id,
			"rows":      strconv.Itoa(rows),
		},
	})
	if err != nil {
		w.finish(id, started, fmt.Errorf("store archive: %w", err))
		return
	}
	w.update(id, func(r *Record) {
		r.Key = key
		r.Rows = rows
		r.SizeBytes = info.Size
	})
	w.finish(id, started, nil)
}

func (w *Worker) update(id string, fn func(*Record)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if record, ok := w.jobs[id]; ok {
		fn(record)
		record.UpdatedAt = w.now()
	}
}

func (w *Worker) finish(id string, started time.Time, err error) {
	completed := w.now()
	status := core.AuditStatusSuccess
	w.update(id, func(r *Record) {
		r.CompletedAt = &completed
		if err != nil {
			r.Status = StatusFailed
			r.Error = err.Error()
			return
		}
		r.Status = StatusSucceeded
	})
	entry := core.AuditEntry{
		Operation: "export_history",
		Entity:    core.EntityHistory,
		Action:    core.ActionCreate,
		EntityID:  id,
		Duration:  time.Since(started),
		Timestamp: completed,
	}
	if err != nil {
		status = core.AuditStatusError
		entry.Error = err.Error()
		w.logger.Error("history export failed", "id", id, "error", err)
	} else {
		w.logger.Info("history export stored", "id", id)
	}
	entry.Status = status
	if w.audit != nil {
		w.audit.Record(w.ctx, entry)
	}
}
