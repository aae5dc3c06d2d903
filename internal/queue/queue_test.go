package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestFIFOOrder(t *testing.T) {
	q := New[Job](0)
	for _, id := range []string{"a", "b", "c"} {
		if err := q.Enqueue(Job{SessionID: id}); err != nil {
			t.Fatalf("Enqueue %s: %v", id, err)
		}
	}
	if q.Len() != 3 {
		t.Fatalf("Len = %d", q.Len())
	}
	ctx := context.Background()
	for _, want := range []string{"a", "b", "c"} {
		j, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Dequeue: %v", err)
		}
		if j.SessionID != want {
			t.Fatalf("got %s, want %s", j.SessionID, want)
		}
	}
}

func TestBoundedQueueFull(t *testing.T) {
	q := New[Job](2)
	_ = q.Enqueue(Job{SessionID: "1"})
	_ = q.Enqueue(Job{SessionID: "2"})
	err := q.Enqueue(Job{SessionID: "3"})
	var full *QueueFullError
	if !errors.As(err, &full) || full.Capacity != 2 {
		t.Fatalf("expected QueueFullError, got %v", err)
	}
	if q.Len() != 2 {
		t.Fatalf("rejected job was stored")
	}
}

func TestDequeueBlocksUntilEnqueue(t *testing.T) {
	q := New[Job](0)
	got := make(chan string, 1)
	go func() {
		j, err := q.Dequeue(context.Background())
		if err == nil {
			got <- j.SessionID
		}
	}()

	select {
	case id := <-got:
		t.Fatalf("dequeued %s from empty queue", id)
	case <-time.After(30 * time.Millisecond):
	}

	_ = q.Enqueue(Job{SessionID: "late"})
	select {
	case id := <-got:
		if id != "late" {
			t.Fatalf("got %s", id)
		}
	case <-time.After(time.Second):
		t.Fatal("consumer not woken")
	}
}

func TestCloseWakesAllConsumers(t *testing.T) {
	q := New[Job](0)
	const workers = 4
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := q.Dequeue(context.Background())
			errs <- err
		}()
	}
	time.Sleep(20 * time.Millisecond)
	if left := q.Close(); len(left) != 0 {
		t.Fatalf("left = %v", left)
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("workers still blocked after Close")
	}
	close(errs)
	for err := range errs {
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("err = %v", err)
		}
	}
	if err := q.Enqueue(Job{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("Enqueue after Close = %v", err)
	}
}

func TestCloseReturnsPending(t *testing.T) {
	q := New[Job](0)
	_ = q.Enqueue(Job{SessionID: "x"})
	_ = q.Enqueue(Job{SessionID: "y"})
	left := q.Close()
	if len(left) != 2 || left[0].SessionID != "x" || left[1].SessionID != "y" {
		t.Fatalf("left = %+v", left)
	}
	if q.Close() != nil {
		t.Fatalf("second Close returned items")
	}
}

func TestDequeueContextCancel(t *testing.T) {
	q := New[Job](0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := q.Dequeue(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
}

func TestConcurrentProducersConsumers(t *testing.T) {
	q := New[int](0)
	const producers, per = 4, 250
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < per; i++ {
				_ = q.Enqueue(p*per + i)
			}
		}(p)
	}

	seen := make(chan int, producers*per)
	var cw sync.WaitGroup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for c := 0; c < 3; c++ {
		cw.Add(1)
		go func() {
			defer cw.Done()
			for {
				v, err := q.Dequeue(ctx)
				if err != nil {
					return
				}
				seen <- v
			}
		}()
	}
	wg.Wait()

	got := make(map[int]bool)
	for len(got) < producers*per {
		select {
		case v := <-seen:
			if got[v] {
				t.Fatalf("item %d dequeued twice", v)
			}
			got[v] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of %d items dequeued", len(got), producers*per)
		}
	}
	q.Close()
	cw.Wait()
}
