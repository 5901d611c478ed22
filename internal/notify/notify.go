// Package notify delivers the finished transcript by email. Delivery
// is best-effort: a primary Graph channel is tried first, then one
// SMTP fallback, and failures only ever reach the log.
package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Message is one notification to deliver: the transcript as body text
// plus the encoded recording and the transcript file as attachments.
type Message struct {
	Subject        string
	Body           string
	AudioPath      string
	AudioName      string
	TranscriptName string
}

// Channel is a single mail-delivery mechanism.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Dispatcher attempts the primary channel, then the fallback exactly
// once. It never returns an error: notification outcome must not
// influence the caller-visible result.
type Dispatcher struct {
	Primary  Channel
	Fallback Channel
	Log      *logrus.Logger
}

func NewDispatcher(primary, fallback Channel, log *logrus.Logger) *Dispatcher {
	return &Dispatcher{Primary: primary, Fallback: fallback, Log: log}
}

func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) {
	if d.Primary != nil {
		err := d.Primary.Send(ctx, msg)
		if err == nil {
			d.Log.WithField("channel", d.Primary.Name()).Info("notification delivered")
			return
		}
		d.Log.WithError(err).WithField("channel", d.Primary.Name()).
			Warn("primary notification channel failed")
	}

	if d.Fallback == nil {
		return
	}
	if err := d.Fallback.Send(ctx, msg); err != nil {
		d.Log.WithError(err).WithField("channel", d.Fallback.Name()).
			Error("fallback notification channel failed")
		return
	}
	d.Log.WithField("channel", d.Fallback.Name()).Info("notification delivered")
}
