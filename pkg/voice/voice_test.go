package voice_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/driftvale/ripple/pkg/types"
	"github.com/driftvale/ripple/pkg/voice"
)

func TestAssembler_CompleteAfterBothEvents(t *testing.T) {
	t.Parallel()

	a := voice.NewAssembler()

	a.HandleVoiceServerUpdate(1, "e", "t")
	if ci, ok := a.Get(1); !ok {
		t.Fatal("descriptor should exist after server update")
	} else if ci.Complete() {
		t.Fatal("descriptor should not be complete after only a server update")
	}

	a.HandleVoiceStateUpdate(1, 9, "s", 5)

	got, err := a.WaitForFullInfo(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("WaitForFullInfo() error: %v", err)
	}
	want := voice.ConnectionInfo{
		GuildID:   1,
		ChannelID: 5,
		Endpoint:  "e",
		Token:     "t",
		SessionID: "s",
	}
	if got != want {
		t.Errorf("WaitForFullInfo() = %+v, want %+v", got, want)
	}
}

func TestAssembler_EventOrderIndependent(t *testing.T) {
	t.Parallel()

	a := voice.NewAssembler()
	a.HandleVoiceStateUpdate(7, 9, "sess", 3)
	a.HandleVoiceServerUpdate(7, "endpoint.example:443", "tok")

	ci, ok := a.Get(7)
	if !ok || !ci.Complete() {
		t.Fatalf("descriptor should be complete regardless of event order, got %+v (ok=%v)", ci, ok)
	}
}

func TestAssembler_WaitReturnsImmediatelyWhenComplete(t *testing.T) {
	t.Parallel()

	a := voice.NewAssembler()
	a.HandleVoiceServerUpdate(1, "e", "t")
	a.HandleVoiceStateUpdate(1, 9, "s", 5)

	// A budget of 1 must be enough: no further events are needed.
	ci, err := a.WaitForFullInfo(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("WaitForFullInfo() on an already-complete descriptor: %v", err)
	}
	if !ci.Complete() {
		t.Errorf("returned descriptor is incomplete: %+v", ci)
	}
}

func TestAssembler_WaitTimesOutAfterMaxEvents(t *testing.T) {
	t.Parallel()

	a := voice.NewAssembler()

	done := make(chan error, 1)
	go func() {
		_, err := a.WaitForFullInfo(context.Background(), 1, 3)
		done <- err
	}()

	// Only ever deliver server updates: the descriptor never completes.
	// Each ingestion consumes one unit of the waiter's budget.
	for i := 0; i < 5; i++ {
		a.HandleVoiceServerUpdate(1, "e", "t")
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case err := <-done:
		if !errors.Is(err, voice.ErrTimeout) {
			t.Fatalf("WaitForFullInfo() error = %v, want ErrTimeout", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForFullInfo() did not return after budget exhaustion")
	}
}

func TestAssembler_OtherGuildEventsDoNotConsumeBudget(t *testing.T) {
	t.Parallel()

	a := voice.NewAssembler()

	done := make(chan error, 1)
	go func() {
		_, err := a.WaitForFullInfo(context.Background(), 1, 2)
		done <- err
	}()

	// Flood a different guild; the waiter on guild 1 must not budge.
	for i := 0; i < 10; i++ {
		a.HandleVoiceServerUpdate(2, "e", "t")
	}

	select {
	case err := <-done:
		t.Fatalf("WaitForFullInfo() returned early with %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	// Completing guild 1 releases the waiter.
	a.HandleVoiceServerUpdate(1, "e", "t")
	a.HandleVoiceStateUpdate(1, 9, "s", 5)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("WaitForFullInfo() error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForFullInfo() did not return after completion")
	}
}

func TestAssembler_WaitHonoursContext(t *testing.T) {
	t.Parallel()

	a := voice.NewAssembler()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := a.WaitForFullInfo(ctx, 1, 10)
		done <- err
	}()

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("WaitForFullInfo() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForFullInfo() ignored context cancellation")
	}
}

func TestAssembler_NilChannelRemovesDescriptor(t *testing.T) {
	t.Parallel()

	a := voice.NewAssembler()
	a.HandleVoiceServerUpdate(1, "e", "t")
	a.HandleVoiceStateUpdate(1, 9, "s", 5)

	// Channel 0 is the voluntary-disconnect signal.
	a.HandleVoiceStateUpdate(1, 9, "s", 0)

	if _, ok := a.Get(1); ok {
		t.Fatal("descriptor should be removed after a nil-channel state update")
	}
}

func TestAssembler_RemoveIsIdempotentAndWakesWaiters(t *testing.T) {
	t.Parallel()

	a := voice.NewAssembler()
	a.HandleVoiceServerUpdate(1, "e", "t")

	done := make(chan error, 1)
	go func() {
		done <- a.WaitForRemoval(context.Background(), 1, 10)
	}()

	time.Sleep(20 * time.Millisecond)
	a.Remove(1)
	a.Remove(1) // second remove is a no-op

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("WaitForRemoval() error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForRemoval() did not observe the removal")
	}
}

func TestAssembler_WaitForRemovalImmediateWhenAbsent(t *testing.T) {
	t.Parallel()

	a := voice.NewAssembler()
	if err := a.WaitForRemoval(context.Background(), 42, 1); err != nil {
		t.Fatalf("WaitForRemoval() on absent guild: %v", err)
	}
}

func TestAssembler_RejoinAfterRemoval(t *testing.T) {
	t.Parallel()

	a := voice.NewAssembler()
	a.HandleVoiceServerUpdate(1, "e1", "t1")
	a.HandleVoiceStateUpdate(1, 9, "s1", 5)
	a.Remove(1)

	// A fresh handshake rebuilds the descriptor from scratch; fields from
	// the removed descriptor must not leak through.
	a.HandleVoiceStateUpdate(1, 9, "s2", 6)
	ci, ok := a.Get(1)
	if !ok {
		t.Fatal("descriptor should be recreated on rejoin")
	}
	if ci.Complete() {
		t.Fatalf("descriptor should be incomplete until the server update arrives, got %+v", ci)
	}
	if ci.Endpoint != "" || ci.Token != "" {
		t.Errorf("stale server fields survived removal: %+v", ci)
	}

	a.HandleVoiceServerUpdate(1, "e2", "t2")
	got, err := a.WaitForFullInfo(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("WaitForFullInfo() after rejoin: %v", err)
	}
	if got.SessionID != "s2" || got.Endpoint != "e2" || got.ChannelID != types.ChannelID(6) {
		t.Errorf("rejoined descriptor = %+v", got)
	}
}
