package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NatsDispatcher publishes notifications on "<prefix>.<kind>".
type NatsDispatcher struct {
	nc     *nats.Conn
	prefix string
}

func NewNatsDispatcher(nc *nats.Conn, prefix string) *NatsDispatcher {
	return &NatsDispatcher{nc: nc, prefix: prefix}
}

func (d *NatsDispatcher) Subject(n Notification) string {
	return fmt.Sprintf("%s.%s", d.prefix, n.Kind)
}

func (d *NatsDispatcher) Dispatch(ctx context.Context, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return &DispatchError{Backend: "nats", Err: fmt.Errorf("failed to marshal notification: %w", err)}
	}

	msg := nats.NewMsg(d.Subject(n))
	msg.Header.Set("Subject", n.Subject())
	msg.Data = data

	if err := d.nc.PublishMsg(msg); err != nil {
		return &DispatchError{Backend: "nats", Err: err}
	}
	// Flush so a dead connection shows up as an error here, not silently.
	if err := d.nc.FlushWithContext(ctx); err != nil {
		return &DispatchError{Backend: "nats", Err: err}
	}
	return nil
}
