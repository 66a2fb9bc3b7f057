package stream

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
)

func TestLoopRunsCommandsInOrder(t *testing.T) {
	l := NewLoop(slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	var order []int
	for i := 1; i <= 5; i++ {
		i := i
		l.Do(func() { order = append(order, i) })
	}
	l.Sync()

	if len(order) != 5 {
		t.Fatalf("ran %d commands, want 5", len(order))
	}
	for i, v := range order {
		if v != i+1 {
			t.Fatalf("order = %v", order)
		}
	}
}

func TestLoopSingleOwner(t *testing.T) {
	l := NewLoop(slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	// Unsynchronized counter: safe only if every increment runs on the
	// loop goroutine.
	counter := 0
	done := make(chan struct{})
	for g := 0; g < 8; g++ {
		go func() {
			for i := 0; i < 100; i++ {
				l.Do(func() { counter++ })
			}
			done <- struct{}{}
		}()
	}
	for g := 0; g < 8; g++ {
		<-done
	}
	l.Sync()

	var got int
	l.Do(func() { got = counter })
	l.Sync()
	if got != 800 {
		t.Fatalf("counter = %d, want 800", got)
	}
}

func TestLoopDrainsOnShutdown(t *testing.T) {
	l := NewLoop(slog.Default())
	ctx, cancel := context.WithCancel(context.Background())

	var ran atomic.Int64
	for i := 0; i < 50; i++ {
		l.Do(func() { ran.Add(1) })
	}
	go l.Run(ctx)
	cancel()
	l.Wait()

	if ran.Load() != 50 {
		t.Fatalf("ran %d of 50 accepted commands", ran.Load())
	}
}

func TestDoAfterShutdown(t *testing.T) {
	l := NewLoop(slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	cancel()
	l.Wait()

	if l.Do(func() {}) {
		t.Fatal("Do must refuse commands after shutdown")
	}
	// Sync on a stopped loop must not hang.
	l.Sync()
}
