package backend

import (
	"errors"
	"testing"
	"time"
)

func TestEventQueue_FIFO(t *testing.T) {
	q := newEventQueue()
	defer q.Close()

	q.Enqueue(Intent{Type: IntentPlay})
	q.Enqueue(Intent{Type: IntentPause})
	q.Enqueue(Intent{Type: IntentStop})

	want := []IntentType{IntentPlay, IntentPause, IntentStop}
	for i, wantType := range want {
		select {
		case sub := <-q.C():
			if sub.intent.Type != wantType {
				t.Errorf("event %d = %v, want %v", i, sub.intent.Type, wantType)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestEventQueue_EnqueueWaitReply(t *testing.T) {
	q := newEventQueue()
	defer q.Close()

	wantErr := errors.New("rejected")
	done := make(chan struct{})
	go func() {
		defer close(done)
		sub := <-q.C()
		sub.reply <- wantErr
	}()

	select {
	case err := <-q.EnqueueWait(Intent{Type: IntentPlay}):
		if !errors.Is(err, wantErr) {
			t.Errorf("reply = %v, want %v", err, wantErr)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for reply")
	}
	<-done
}

func TestEventQueue_EnqueueAfterClose(t *testing.T) {
	q := newEventQueue()
	q.Close()

	select {
	case err := <-q.EnqueueWait(Intent{Type: IntentPlay}):
		if !errors.Is(err, ErrNoActiveSession) {
			t.Errorf("reply = %v, want ErrNoActiveSession", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for closed-queue reply")
	}
}
