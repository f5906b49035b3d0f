package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/shl518/vchat/internal/vchat/controller"
)

func newTestInterrupter() (*interrupter, *int) {
	quits := 0
	in := &interrupter{
		registry: controller.NewRegistry(),
		quit:     func() { quits++ },
	}
	return in, &quits
}

func TestInterrupterStopsTurnBeforeRegistration(t *testing.T) {
	in, quits := newTestInterrupter()

	turnCtx := in.begin(context.Background(), 0, 1)
	in.interrupt()

	if !errors.Is(turnCtx.Err(), context.Canceled) {
		t.Fatalf("turn context not cancelled: %v", turnCtx.Err())
	}
	if *quits != 0 {
		t.Fatalf("quit called %d times during a turn, want 0", *quits)
	}

	// the turn is over, so the next Ctrl+C quits
	in.interrupt()
	if *quits != 1 {
		t.Errorf("quit called %d times, want 1", *quits)
	}
}

func TestInterrupterStopsRegisteredStream(t *testing.T) {
	in, quits := newTestInterrupter()

	streamCtx, cancelStream := context.WithCancel(context.Background())
	defer cancelStream()
	in.registry.Add(0, 3, cancelStream)

	in.begin(context.Background(), 0, 3)
	in.interrupt()

	if streamCtx.Err() == nil {
		t.Error("registered stream was not stopped")
	}
	if *quits != 0 {
		t.Errorf("quit called %d times, want 0", *quits)
	}
}

func TestInterrupterQuitsWhenIdle(t *testing.T) {
	in, quits := newTestInterrupter()

	otherCtx, cancelOther := context.WithCancel(context.Background())
	defer cancelOther()
	in.registry.Add(1, 1, cancelOther)

	turnCtx := in.begin(context.Background(), 0, 1)
	in.end()
	if turnCtx.Err() == nil {
		t.Error("ending a turn should release its context")
	}

	in.interrupt()
	if *quits != 1 {
		t.Errorf("quit called %d times, want 1", *quits)
	}
	if otherCtx.Err() == nil {
		t.Error("quitting should stop every registered stream")
	}
}
