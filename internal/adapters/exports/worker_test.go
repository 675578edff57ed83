package exports

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockroom/internal/blob"
	"stockroom/internal/core"
)

func seededService(t *testing.T) *core.Service {
	t.Helper()
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine(core.CategoryPolicyWarn))
	_, _, err := svc.CreateProduct(context.Background(), core.ProductInput{
		Category: "Helmets", Name: "Yellow Helmet", Sizes: "S, M", InitialStock: 10,
	})
	require.NoError(t, err)
	_, _, err = svc.CreateProduct(context.Background(), core.ProductInput{
		Category: "Gloves", Name: "Rigger", Sizes: "L", InitialStock: 2,
	})
	require.NoError(t, err)
	return svc
}

func startWorker(t *testing.T, source HistorySource, store blob.Store, opts ...Option) *Worker {
	t.Helper()
	w := NewWorker(source, store, opts...)
	w.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = w.Stop(ctx)
	})
	return w
}

func waitForTerminal(t *testing.T, w *Worker, id string) Record {
	t.Helper()
	var record Record
	require.Eventually(t, func() bool {
		var ok bool
		record, ok = w.Get(id)
		return ok && (record.Status == StatusSucceeded || record.Status == StatusFailed)
	}, 2*time.Second, 5*time.Millisecond)
	return record
}

type captureAudit struct {
	mu      sync.Mutex
	entries []core.AuditEntry
}

func (a *captureAudit) Record(_ context.Context, e core.AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
}

func (a *captureAudit) snapshot() []core.AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]core.AuditEntry(nil), a.entries...)
}

func TestExportStoresFilteredHistoryArchive(t *testing.T) {
	for name, store := range map[string]blob.Store{
		"memory": blob.NewMemory(),
		"s3":     blob.NewMockS3ForTests(),
	} {
		t.Run(name, func(t *testing.T) {
			audit := &captureAudit{}
			w := startWorker(t, seededService(t), store, WithAuditRecorder(audit))

			queued, err := w.Enqueue(context.Background(), Input{Query: "helmet", RequestedBy: "cli"})
			require.NoError(t, err)
			assert.Equal(t, StatusQueued, queued.Status)
			assert.NotEmpty(t, queued.ID)

			done := waitForTerminal(t, w, queued.ID)
			require.Equal(t, StatusSucceeded, done.Status, done.Error)
			assert.Equal(t, KeyPrefix+queued.ID+".csv", done.Key)
			assert.Equal(t, 2, done.Rows)
			assert.NotNil(t, done.CompletedAt)

			_, rc, err := w.Open(context.Background(), queued.ID)
			require.NoError(t, err)
			defer rc.Close()
			body, err := io.ReadAll(rc)
			require.NoError(t, err)
			lines := strings.Split(strings.TrimSpace(string(body)), "\n")
			require.Len(t, lines, 3)
			assert.Equal(t, "timestamp,product_name,size,action,change,final_stock", lines[0])
			assert.Contains(t, lines[1], "Yellow Helmet,S,Created,10,10")

			info, err := store.Head(context.Background(), done.Key)
			require.NoError(t, err)
			assert.Equal(t, "2", info.Metadata["rows"])
			assert.Equal(t, done.SizeBytes, info.Size)

			entries := audit.snapshot()
			require.Len(t, entries, 1)
			assert.Equal(t, "export_history", entries[0].Operation)
			assert.Equal(t, core.AuditStatusSuccess, entries[0].Status)
		})
	}
}

type failingSource struct{}

func (failingSource) WriteHistoryCSV(io.Writer, string) (int, error) {
	return 0, errors.New("history unavailable")
}

func TestExportFailureIsRecorded(t *testing.T) {
	w := startWorker(t, failingSource{}, blob.NewMemory())
	queued, err := w.Enqueue(context.Background(), Input{})
	require.NoError(t, err)

	done := waitForTerminal(t, w, queued.ID)
	assert.Equal(t, StatusFailed, done.Status)
	assert.Contains(t, done.Error, "history unavailable")

	_, _, err = w.Open(context.Background(), queued.ID)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestOpenUnknownExport(t *testing.T) {
	w := NewWorker(seededService(t), blob.NewMemory())
	_, _, err := w.Open(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUnknownExport)
	_, ok := w.Get("missing")
	assert.False(t, ok)
}

func TestEnqueueRejectsWhenQueueFull(t *testing.T) {
	w := NewWorker(seededService(t), blob.NewMemory(), WithQueueSize(1))
	_, err := w.Enqueue(context.Background(), Input{})
	require.NoError(t, err)
	_, err = w.Enqueue(context.Background(), Input{})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Len(t, w.List(), 1, "rejected requests are not tracked")
}

func TestListNewestFirst(t *testing.T) {
	base := time.Date(2024, 7, 15, 9, 0, 0, 0, time.UTC)
	tick := 0
	clock := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	w := NewWorker(seededService(t), blob.NewMemory(), WithClock(clock))
	first, err := w.Enqueue(context.Background(), Input{Query: "a"})
	require.NoError(t, err)
	second, err := w.Enqueue(context.Background(), Input{Query: "b"})
	require.NoError(t, err)

	list := w.List()
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestStopHonoursContext(t *testing.T) {
	w := NewWorker(seededService(t), blob.NewMemory())
	w.Start()
	require.NoError(t, w.Stop(context.Background()))
}
