package usage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nocodeuchun-ctrl/Avto-bot/internal/config"
)

type recordCall struct {
	operation string
	input     int64
	output    int64
	requests  int64
}

type fakeStore struct {
	mu    sync.Mutex
	calls []recordCall
	err   error
}

func (f *fakeStore) RecordUsage(_ context.Context, operation string, in int64, out int64, _ int64, requests int64, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, recordCall{operation: operation, input: in, output: out, requests: requests})
	return nil
}

func (f *fakeStore) GetDailyUsage(context.Context, time.Time) (*DailyUsage, error) { return nil, nil }
func (f *fakeStore) GetRecentUsage(context.Context, int) ([]DailyUsage, error)     { return nil, nil }
func (f *fakeStore) GetTotalUsage(context.Context, int) (DailyUsage, error)        { return DailyUsage{}, nil }
func (f *fakeStore) GetOperationUsage(context.Context, int) ([]OperationUsage, error) {
	return nil, nil
}
func (f *fakeStore) Close() {}

func (f *fakeStore) snapshot() []recordCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordCall(nil), f.calls...)
}

func TestRecorderDirect(t *testing.T) {
	store := &fakeStore{}
	recorder := NewRecorder(&config.Config{}, store, nil)

	recorder.Record(context.Background(), OperationCaption, 10, 20, 0)
	recorder.Record(context.Background(), OperationReply, 0, 0, 0)

	calls := store.snapshot()
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if calls[0].operation != OperationCaption || calls[0].input != 10 || calls[0].output != 20 || calls[0].requests != 1 {
		t.Fatalf("unexpected call: %+v", calls[0])
	}
}

func TestRecorderNilSafe(t *testing.T) {
	var recorder *Recorder
	recorder.Record(context.Background(), OperationReply, 1, 1, 0)
	recorder.Close()

	NewRecorder(nil, nil, nil).Record(context.Background(), OperationReply, 1, 1, 0)
}

func TestRecorderSwallowsStoreErrors(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	recorder := NewRecorder(&config.Config{}, store, nil)
	recorder.Record(context.Background(), OperationReply, 1, 1, 0)
}

func TestRecorderBatchesPerOperation(t *testing.T) {
	store := &fakeStore{}
	cfg := &config.Config{Database: config.DatabaseConfig{
		UsageBatchEnabled:              true,
		UsageBatchFlushIntervalSeconds: 3600,
		UsageBatchMaxPendingRequests:   100,
	}}
	recorder := NewRecorder(cfg, store, nil)

	recorder.Record(context.Background(), OperationCaption, 1, 2, 0)
	recorder.Record(context.Background(), OperationCaption, 3, 4, 0)
	recorder.Record(context.Background(), OperationReply, 5, 6, 0)
	recorder.Close()

	calls := store.snapshot()
	if len(calls) != 2 {
		t.Fatalf("expected 2 flushed rows, got %d: %+v", len(calls), calls)
	}
	byOp := map[string]recordCall{}
	for _, call := range calls {
		byOp[call.operation] = call
	}
	if got := byOp[OperationCaption]; got.input != 4 || got.output != 6 || got.requests != 2 {
		t.Fatalf("unexpected caption batch: %+v", got)
	}
	if got := byOp[OperationReply]; got.input != 5 || got.requests != 1 {
		t.Fatalf("unexpected reply batch: %+v", got)
	}
}

func TestBatcherBackoff(t *testing.T) {
	b := &batcher{flushInterval: time.Second, maxBackoff: 4 * time.Second}

	b.consecutiveFlushFailures = 1
	if backoff := b.computeBackoff(); backoff != time.Second {
		t.Fatalf("unexpected backoff: %v", backoff)
	}

	b.consecutiveFlushFailures = 2
	if backoff := b.computeBackoff(); backoff != 2*time.Second {
		t.Fatalf("unexpected backoff: %v", backoff)
	}

	b.consecutiveFlushFailures = 4
	if backoff := b.computeBackoff(); backoff != 4*time.Second {
		t.Fatalf("unexpected backoff cap: %v", backoff)
	}
}

func TestBatcherRequeuesOnFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	cfg := &config.Config{Database: config.DatabaseConfig{
		UsageBatchFlushIntervalSeconds: 3600,
		UsageBatchMaxPendingRequests:   100,
		UsageBatchMaxBackoffSeconds:    60,
	}}
	b := newBatcher(cfg, store, nil)
	b.add(OperationReply, 1, 1, 0, 1)

	b.flush(false)
	if b.consecutiveFlushFailures != 1 {
		t.Fatalf("expected 1 failure, got %d", b.consecutiveFlushFailures)
	}
	if b.pendingRequestsTotal != 1 {
		t.Fatalf("expected requeued request, got %d", b.pendingRequestsTotal)
	}
	if !b.shouldSkipFlush(false) {
		t.Fatalf("expected flush to be held back during backoff")
	}
}

func TestBatcherShouldLogFailure(t *testing.T) {
	b := &batcher{errorLogMaxInterval: time.Hour}
	b.consecutiveFlushFailures = 1
	if !b.shouldLogFailure() {
		t.Fatalf("expected log on first failure")
	}

	b.consecutiveFlushFailures = 3
	b.lastErrorLoggedAt = time.Now()
	if b.shouldLogFailure() {
		t.Fatalf("did not expect log for non power-of-two")
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	if !isPowerOfTwo(1) || !isPowerOfTwo(2) || !isPowerOfTwo(4) {
		t.Fatalf("expected power of two")
	}
	if isPowerOfTwo(3) || isPowerOfTwo(0) {
		t.Fatalf("unexpected power of two")
	}
}
