package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/docintake/docintake/core/infra/logging"
	"github.com/docintake/docintake/core/tenants"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

var (
	errNilBus       = errors.New("nats bus not initialized")
	errEmptySubject = errors.New("empty subject")
)

// Event announces a persisted client write so other processes can drop
// their cached configuration.
type Event struct {
	ID       string    `json:"id"`
	Source   string    `json:"source"`
	Op       string    `json:"op"`
	ClientID string    `json:"client_id"`
	Section  string    `json:"section,omitempty"`
	At       time.Time `json:"at"`
}

// Bus publishes and consumes config-change events over core NATS.
type Bus struct {
	nc      *nats.Conn
	subject string
	source  string
	subs    []*nats.Subscription
}

// Connect dials NATS at url. Events are published on subject.
func Connect(url, subject string) (*Bus, error) {
	if subject == "" {
		return nil, errEmptySubject
	}
	nc, err := nats.Connect(url,
		nats.Name("docintake-config"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logging.Error("bus", "disconnected from nats", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.Info("bus", "reconnected to nats", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Bus{nc: nc, subject: subject, source: uuid.NewString()}, nil
}

// Close drains subscriptions and closes the connection.
func (b *Bus) Close() {
	if b == nil || b.nc == nil {
		return
	}
	for _, sub := range b.subs {
		_ = sub.Unsubscribe()
	}
	b.nc.Close()
}

// NotifyChange publishes a change event. It satisfies tenants.ChangeNotifier.
func (b *Bus) NotifyChange(_ context.Context, change tenants.Change) error {
	if b == nil || b.nc == nil {
		return errNilBus
	}
	data, err := Encode(b.newEvent(change))
	if err != nil {
		return err
	}
	return b.nc.Publish(b.subject, data)
}

// Subscribe calls handler for every change made by another process.
func (b *Bus) Subscribe(handler func(Event)) error {
	if b == nil || b.nc == nil {
		return errNilBus
	}
	if handler == nil {
		return errors.New("nil handler")
	}
	sub, err := b.nc.Subscribe(b.subject, func(msg *nats.Msg) {
		b.dispatch(msg.Data, handler)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", b.subject, err)
	}
	b.subs = append(b.subs, sub)
	return nil
}

// InvalidateOnChange drops r's cache whenever another process writes.
func (b *Bus) InvalidateOnChange(r interface{ Invalidate() }) error {
	return b.Subscribe(func(ev Event) {
		logging.Info("bus", "remote config change", "op", ev.Op, "client_id", ev.ClientID, "section", ev.Section)
		r.Invalidate()
	})
}

func (b *Bus) newEvent(change tenants.Change) Event {
	return Event{
		ID:       uuid.NewString(),
		Source:   b.source,
		Op:       change.Op,
		ClientID: change.ClientID,
		Section:  change.Section,
		At:       time.Now().UTC(),
	}
}

func (b *Bus) dispatch(data []byte, handler func(Event)) {
	ev, err := Decode(data)
	if err != nil {
		logging.Error("bus", "dropping malformed event", "error", err)
		return
	}
	if ev.Source == b.source {
		return
	}
	handler(ev)
}

// Encode serializes an event as JSON.
func Encode(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return data, nil
}

// Decode parses a JSON event.
func Decode(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if ev.Op == "" || ev.ClientID == "" {
		return Event{}, errors.New("decode event: op and client_id required")
	}
	return ev, nil
}
