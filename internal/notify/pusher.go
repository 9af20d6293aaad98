// Package notify delivers finished notifications to the user's channels.
// The in-app inbox is the durable copy; push channels are best effort on
// top of it.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/studvik/companion/internal/model"
	"github.com/studvik/companion/internal/store"
)

// Pusher sends one rendered notification over an external channel.
type Pusher interface {
	Send(to, subject, body string) error
}

type channel struct {
	name   string
	to     string
	pusher Pusher
}

// Fanout persists each notification to the in-app inbox and then pushes
// it over every configured channel. Persistence failures are returned;
// push failures are logged and swallowed so one broken channel cannot
// block the rest.
type Fanout struct {
	store    store.Store
	log      *zap.Logger
	channels []channel
}

// NewFanout creates a fanout with the in-app channel only.
func NewFanout(s store.Store, log *zap.Logger) *Fanout {
	if log == nil {
		log = zap.NewNop()
	}
	return &Fanout{store: s, log: log}
}

// AddChannel registers a push channel with its recipient address.
func (f *Fanout) AddChannel(name, to string, p Pusher) {
	if to == "" || p == nil {
		return
	}
	f.channels = append(f.channels, channel{name: name, to: to, pusher: p})
}

// Deliver writes the notification to the inbox and pushes it out.
func (f *Fanout) Deliver(ctx context.Context, n *model.Notification) error {
	if err := f.store.CreateNotification(ctx, n); err != nil {
		return err
	}

	body := n.Message
	if n.URL != "" {
		body += "\n\n" + n.URL
	}

	for _, ch := range f.channels {
		if err := ch.pusher.Send(ch.to, n.Title, body); err != nil {
			f.log.Warn("push channel failed",
				zap.String("channel", ch.name),
				zap.String("notification_id", n.ID),
				zap.Error(err))
		}
	}
	return nil
}
