package syncx

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSingleFlight_CoalescesConcurrentCallers(t *testing.T) {
	var sf SingleFlight[int]
	var calls atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{})

	const callers = 16
	results := make([]int, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = sf.Run(context.Background(), func(context.Context) (int, error) {
			calls.Add(1)
			close(started)
			<-release
			return 7, nil
		})
	}()
	<-started

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = sf.Run(context.Background(), func(context.Context) (int, error) {
				calls.Add(1)
				return -1, nil
			})
		}(i)
	}

	// Let the joiners attach before the shared run settles.
	deadline := time.Now().Add(time.Second)
	for !sf.InFlight() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("underlying calls = %d, want 1", got)
	}
	for i := 0; i < callers; i++ {
		if errs[i] != nil || results[i] != 7 {
			t.Fatalf("caller %d = (%d, %v), want (7, nil)", i, results[i], errs[i])
		}
	}
	if sf.InFlight() {
		t.Fatalf("InFlight() = true after settle")
	}
}

func TestSingleFlight_ClearsAfterFailure(t *testing.T) {
	var sf SingleFlight[string]
	boom := errors.New("boom")

	if _, err := sf.Run(context.Background(), func(context.Context) (string, error) {
		return "", boom
	}); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	got, err := sf.Run(context.Background(), func(context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil || got != "ok" {
		t.Fatalf("second run = (%q, %v), want (ok, nil)", got, err)
	}
	if sf.Runs() != 2 {
		t.Fatalf("Runs() = %d, want 2", sf.Runs())
	}
}

func TestSingleFlight_CallerCancelDoesNotCancelRun(t *testing.T) {
	var sf SingleFlight[int]
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	runCtxErr := make(chan error, 1)

	done := make(chan error, 1)
	go func() {
		_, err := sf.Run(ctx, func(runCtx context.Context) (int, error) {
			<-release
			runCtxErr <- runCtx.Err()
			return 1, nil
		})
		done <- err
	}()

	for !sf.InFlight() {
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("caller err = %v, want context.Canceled", err)
	}
	close(release)
	if err := <-runCtxErr; err != nil {
		t.Fatalf("run context err = %v, want nil", err)
	}
}

func TestGeneration(t *testing.T) {
	var g Generation
	first := g.Issue()
	if !g.IsCurrent(first) {
		t.Fatalf("first token should be current")
	}
	second := g.Issue()
	if g.IsCurrent(first) {
		t.Fatalf("first token should be superseded")
	}
	if !g.IsCurrent(second) || second <= first {
		t.Fatalf("second token = %d, want current and > %d", second, first)
	}
}

func TestBroadcast_SubscribePublishUnsubscribe(t *testing.T) {
	var b Broadcast[string]
	var got []string

	unsubA := b.Subscribe(func(v string) { got = append(got, "a:"+v) })
	b.Subscribe(func(v string) { got = append(got, "b:"+v) })

	b.Publish("x")
	unsubA()
	unsubA()
	b.Publish("y")

	want := []string{"a:x", "b:x", "b:y"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if b.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", b.Len())
	}
}

func TestBroadcast_SubscriberMayUnsubscribeDuringPublish(t *testing.T) {
	var b Broadcast[int]
	var unsub func()
	count := 0
	unsub = b.Subscribe(func(int) {
		count++
		unsub()
	})
	b.Publish(1)
	b.Publish(2)
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}
