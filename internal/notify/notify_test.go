package notify

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type fakeChannel struct {
	name  string
	err   error
	calls int
	last  Message
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Send(ctx context.Context, msg Message) error {
	f.calls++
	f.last = msg
	return f.err
}

func TestDispatchPrimarySucceeds(t *testing.T) {
	primary := &fakeChannel{name: "graph"}
	fallback := &fakeChannel{name: "smtp"}
	d := NewDispatcher(primary, fallback, testLogger())

	d.Dispatch(context.Background(), Message{Subject: "s", Body: "b"})

	if primary.calls != 1 {
		t.Errorf("primary called %d times, expected 1", primary.calls)
	}
	if fallback.calls != 0 {
		t.Errorf("fallback called %d times, expected 0", fallback.calls)
	}
}

func TestDispatchFallbackOnceOnPrimaryFailure(t *testing.T) {
	primary := &fakeChannel{name: "graph", err: errors.New("token exchange failed")}
	fallback := &fakeChannel{name: "smtp"}
	d := NewDispatcher(primary, fallback, testLogger())

	msg := Message{Subject: "s", Body: "testo", AudioPath: "/tmp/a.mp3"}
	d.Dispatch(context.Background(), msg)

	if fallback.calls != 1 {
		t.Fatalf("fallback called %d times, expected exactly 1", fallback.calls)
	}
	if fallback.last != msg {
		t.Error("fallback must receive the same message as the primary")
	}
}

func TestDispatchBothFail(t *testing.T) {
	primary := &fakeChannel{name: "graph", err: errors.New("503")}
	fallback := &fakeChannel{name: "smtp", err: errors.New("auth failed")}
	d := NewDispatcher(primary, fallback, testLogger())

	// must not panic and must not propagate anything
	d.Dispatch(context.Background(), Message{})

	if primary.calls != 1 || fallback.calls != 1 {
		t.Errorf("expected one attempt per channel, got %d/%d", primary.calls, fallback.calls)
	}
}

func TestDispatchNoFallbackConfigured(t *testing.T) {
	primary := &fakeChannel{name: "graph", err: errors.New("down")}
	d := NewDispatcher(primary, nil, testLogger())

	d.Dispatch(context.Background(), Message{})

	if primary.calls != 1 {
		t.Errorf("primary called %d times, expected 1", primary.calls)
	}
}
