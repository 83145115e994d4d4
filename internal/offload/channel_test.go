package offload_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"slayer/internal/offload"
	"slayer/internal/services"
)

func echoHandlers() map[string]offload.Handler {
	return map[string]offload.Handler{
		"encode": func(ctx context.Context, payload any, report offload.ProgressFunc) (any, error) {
			report(0.5, "serializing")
			raw := payload.([]byte)
			out := append([]byte("enc:"), raw...)
			report(1.0, "done")
			return out, nil
		},
		"explode": func(ctx context.Context, payload any, report offload.ProgressFunc) (any, error) {
			panic("worker bug")
		},
		"fail": func(ctx context.Context, payload any, report offload.ProgressFunc) (any, error) {
			return nil, errors.New("handler failure")
		},
	}
}

func TestDoRoundTrip(t *testing.T) {
	ch := offload.New(nil, echoHandlers())
	defer ch.Dispose()

	result, err := ch.Do(context.Background(), "encode", []byte("payload"))
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if !bytes.Equal(result.([]byte), []byte("enc:payload")) {
		t.Fatalf("unexpected result: %q", result)
	}
}

func TestDoStampsRequestIDIntoContext(t *testing.T) {
	seen := make(chan uint64, 2)
	handlers := map[string]offload.Handler{
		"inspect": func(ctx context.Context, payload any, report offload.ProgressFunc) (any, error) {
			id, _ := services.RequestIDFromContext(ctx)
			seen <- id
			return nil, nil
		},
	}

	ch := offload.New(nil, handlers)
	if _, err := ch.Do(context.Background(), "inspect", nil); err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	first := <-seen
	if first == 0 {
		t.Fatal("worker handler saw no request id in its context")
	}
	ch.Dispose()

	// The inline fallback path stamps the same way.
	if _, err := ch.Do(context.Background(), "inspect", nil); err != nil {
		t.Fatalf("inline Do failed: %v", err)
	}
	if second := <-seen; second <= first {
		t.Fatalf("request ids must stay monotonic: %d then %d", first, second)
	}
}

func TestUnknownActionRejected(t *testing.T) {
	ch := offload.New(nil, echoHandlers())
	defer ch.Dispose()

	if _, err := ch.Do(context.Background(), "nope", nil); err == nil {
		t.Fatal("expected error for unknown action")
	}
}

func TestProgressStreaming(t *testing.T) {
	ch := offload.New(nil, echoHandlers())
	defer ch.Dispose()

	var mu sync.Mutex
	var updates []offload.Progress
	remove := ch.OnProgress("encode", func(p offload.Progress) {
		mu.Lock()
		updates = append(updates, p)
		mu.Unlock()
	})
	defer remove()

	if _, err := ch.Do(context.Background(), "encode", []byte("x")); err != nil {
		t.Fatalf("Do failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(updates) != 2 {
		t.Fatalf("expected 2 progress updates, got %d", len(updates))
	}
	if updates[0].Phase != "serializing" || updates[1].Phase != "done" {
		t.Fatalf("unexpected phases: %+v", updates)
	}
	if updates[0].RequestID == 0 || updates[0].RequestID != updates[1].RequestID {
		t.Fatalf("progress updates must share the request id: %+v", updates)
	}
}

func TestProgressUnregister(t *testing.T) {
	ch := offload.New(nil, echoHandlers())
	defer ch.Dispose()

	count := 0
	remove := ch.OnProgress("encode", func(offload.Progress) { count++ })
	remove()

	if _, err := ch.Do(context.Background(), "encode", []byte("x")); err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("removed callback still fired %d times", count)
	}
}

func TestWorkerCrashFallsBackPermanently(t *testing.T) {
	ch := offload.New(nil, echoHandlers())
	defer ch.Dispose()

	// The crash surfaces as an inline re-run, which panics again in the
	// caller's goroutine for this handler; recover to observe it.
	func() {
		defer func() { _ = recover() }()
		_, _ = ch.Do(context.Background(), "explode", nil)
		t.Error("expected inline re-run to panic")
	}()

	if !ch.Disabled() {
		t.Fatal("crash must disable the worker for the session")
	}

	// Later calls still work, inline.
	result, err := ch.Do(context.Background(), "encode", []byte("after"))
	if err != nil {
		t.Fatalf("Do after crash failed: %v", err)
	}
	if !bytes.Equal(result.([]byte), []byte("enc:after")) {
		t.Fatalf("unexpected result after crash: %q", result)
	}
}

func TestFallbackEquivalence(t *testing.T) {
	worker := offload.New(nil, echoHandlers())
	defer worker.Dispose()
	inline := offload.New(nil, echoHandlers(), offload.WithoutWorker())
	defer inline.Dispose()

	if !inline.Disabled() {
		t.Fatal("WithoutWorker must start disabled")
	}

	a, err := worker.Do(context.Background(), "encode", []byte("same input"))
	if err != nil {
		t.Fatalf("worker path failed: %v", err)
	}
	b, err := inline.Do(context.Background(), "encode", []byte("same input"))
	if err != nil {
		t.Fatalf("inline path failed: %v", err)
	}
	if !bytes.Equal(a.([]byte), b.([]byte)) {
		t.Fatalf("worker and inline output differ: %q vs %q", a, b)
	}
}

func TestHandlerErrorPropagates(t *testing.T) {
	ch := offload.New(nil, echoHandlers())
	defer ch.Dispose()

	if _, err := ch.Do(context.Background(), "fail", nil); err == nil {
		t.Fatal("expected handler error to propagate")
	}
	if ch.Disabled() {
		t.Fatal("ordinary handler errors must not disable the worker")
	}
}

func TestDoAfterDisposeRunsInline(t *testing.T) {
	ch := offload.New(nil, echoHandlers())
	ch.Dispose()

	result, err := ch.Do(context.Background(), "encode", []byte("late"))
	if err != nil {
		t.Fatalf("Do after dispose failed: %v", err)
	}
	if !bytes.Equal(result.([]byte), []byte("enc:late")) {
		t.Fatalf("unexpected result: %q", result)
	}
}

func TestDoHonoursContext(t *testing.T) {
	block := make(chan struct{})
	handlers := map[string]offload.Handler{
		"slow": func(ctx context.Context, payload any, report offload.ProgressFunc) (any, error) {
			<-block
			return nil, nil
		},
	}
	ch := offload.New(nil, handlers)
	defer func() {
		close(block)
		ch.Dispose()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := ch.Do(ctx, "slow", nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestConcurrentSameActionRequests(t *testing.T) {
	ch := offload.New(nil, echoHandlers())
	defer ch.Dispose()

	var wg sync.WaitGroup
	results := make([][]byte, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := []byte{byte('a' + i)}
			out, err := ch.Do(context.Background(), "encode", payload)
			if err != nil {
				t.Errorf("Do failed: %v", err)
				return
			}
			results[i] = out.([]byte)
		}(i)
	}
	wg.Wait()
	for i, out := range results {
		want := append([]byte("enc:"), byte('a'+i))
		if !bytes.Equal(out, want) {
			t.Fatalf("request %d got response %q, want %q", i, out, want)
		}
	}
}
