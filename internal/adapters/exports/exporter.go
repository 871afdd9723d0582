// Package exports snapshots the dashboard into downloadable artifacts (JSON,
// CSV, XLSX) on a background worker and stores them in a blob store.
package exports

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"gridboard/internal/blob"
	"gridboard/pkg/dashboard"
)

// Status describes the lifecycle stage of an export request.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Format names an artifact encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// DefaultFormats is used when a request names none.
var DefaultFormats = []Format{FormatJSON, FormatCSV}

// ParseFormat accepts a case-insensitive format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// Artifact is one stored rendering of an export.
type Artifact struct {
	Format      Format    `json:"format"`
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	ETag        string    `json:"etag,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Record tracks an export request and its artifacts.
type Record struct {
	ID          string     `json:"id"`
	Formats     []Format   `json:"formats"`
	Status      Status     `json:"status"`
	Error       string     `json:"error,omitempty"`
	Artifacts   []Artifact `json:"artifacts,omitempty"`
	Widgets     int        `json:"widgets"`
	RequestedBy string     `json:"requested_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (r *Record) copy() Record {
	out := *r
	out.Formats = append([]Format(nil), r.Formats...)
	out.Artifacts = append([]Artifact(nil), r.Artifacts...)
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// Input is an enqueue request.
type Input struct {
	Formats     []Format
	RequestedBy string
}

// Scheduler queues exports and exposes their status.
type Scheduler interface {
	Enqueue(ctx context.Context, input Input) (Record, error)
	Get(id string) (Record, bool)
}

// Recorder receives terminal export outcomes; *observability.Metrics satisfies it.
type Recorder interface {
	ExportFinished(status string)
}

// Worker executes exports one at a time off a buffered queue.
type Worker struct {
	source  dashboard.Store
	blobs   blob.Store
	logger  *slog.Logger
	metrics Recorder

	queue chan string
	mu    sync.RWMutex
	jobs  map[string]*Record

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	now    func() time.Time
}

// NewWorker constructs a worker reading from source and writing to blobs.
// logger and metrics may be nil.
func NewWorker(source dashboard.Store, blobs blob.Store, logger *slog.Logger, metrics Recorder) *Worker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		source:  source,
		blobs:   blobs,
		logger:  logger,
		metrics: metrics,
		queue:   make(chan string, 32),
		jobs:    make(map[string]*Record),
		ctx:     ctx,
		cancel:  cancel,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Start begins processing export requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for completion.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
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
	formats := input.Formats
	if len(formats) == 0 {
		formats = DefaultFormats
	}
	uniq := make([]Format, 0, len(formats))
	seen := make(map[Format]struct{}, len(formats))
	for _, f := range formats {
		if _, err := ParseFormat(string(f)); err != nil {
			return Record{}, err
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		uniq = append(uniq, f)
	}

	now := w.now()
	record := &Record{
		ID:          uuid.NewString(),
		Formats:     uniq,
		Status:      StatusQueued,
		RequestedBy: input.RequestedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	w.mu.Lock()
	w.jobs[record.ID] = record
	queued := record.copy()
	w.mu.Unlock()

	select {
	case w.queue <- record.ID:
	default:
		w.mu.Lock()
		delete(w.jobs, record.ID)
		w.mu.Unlock()
		return Record{}, fmt.Errorf("export queue full")
	}
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

func (w *Worker) process(id string) {
	w.mu.Lock()
	record, ok := w.jobs[id]
	if !ok {
		w.mu.Unlock()
		return
	}
	record.Status = StatusRunning
	record.UpdatedAt = w.now()
	formats := append([]Format(nil), record.Formats...)
	w.mu.Unlock()

	state, err := w.source.Read(w.ctx)
	if err != nil {
		w.finish(id, nil, 0, fmt.Errorf("read dashboard: %w", err))
		return
	}
	artifacts := make([]Artifact, 0, len(formats))
	for _, format := range formats {
		payload, contentType, err := Render(format, state)
		if err != nil {
			w.finish(id, nil, len(state.Widgets), fmt.Errorf("render %s: %w", format, err))
			return
		}
		key := fmt.Sprintf("exports/%s/dashboard.%s", id, format)
		info, err := w.blobs.Put(w.ctx, key, bytes.NewReader(payload), blob.PutOptions{
			ContentType: contentType,
			Metadata:    map[string]string{"export": id, "format": string(format)},
		})
		if err != nil {
			w.finish(id, nil, len(state.Widgets), fmt.Errorf("store %s: %w", format, err))
			return
		}
		artifacts = append(artifacts, Artifact{
			Format:      format,
			Key:         info.Key,
			ContentType: contentType,
			SizeBytes:   info.Size,
			ETag:        info.ETag,
			CreatedAt:   info.LastModified,
		})
	}
	w.finish(id, artifacts, len(state.Widgets), nil)
}

func (w *Worker) finish(id string, artifacts []Artifact, widgets int, failure error) {
	now := w.now()
	status := StatusSucceeded
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.UpdatedAt = now
		record.CompletedAt = &now
		record.Widgets = widgets
		if failure != nil {
			status = StatusFailed
			record.Error = failure.Error()
		} else {
			record.Artifacts = artifacts
		}
		record.Status = status
	}
	w.mu.Unlock()
	if w.metrics != nil {
		w.metrics.ExportFinished(string(status))
	}
	if failure != nil {
		w.logger.Error("export failed", slog.String("export", id), slog.Any("error", failure))
		return
	}
	w.logger.Info("export finished", slog.String("export", id), slog.Int("artifacts", len(artifacts)), slog.Int("widgets", widgets))
}
