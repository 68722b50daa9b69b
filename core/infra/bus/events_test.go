package bus

import (
	"context"
	"errors"
	"testing"

	"github.com/docintake/docintake/core/tenants"
	"github.com/google/go-cmp/cmp"
)

func TestEncodeDecode(t *testing.T) {
	b := &Bus{source: "proc-a"}
	ev := b.newEvent(tenants.Change{Op: tenants.OpSaveOverrides, ClientID: "acme", Section: "tags"})
	if ev.ID == "" || ev.Source != "proc-a" || ev.At.IsZero() {
		t.Fatalf("unexpected event: %#v", ev)
	}
	data, err := Encode(ev)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(ev, got); diff != "" {
		t.Fatalf("event changed (-want +got):\n%s", diff)
	}
}

func TestDecodeRejectsIncompleteEvents(t *testing.T) {
	for _, raw := range []string{`not json`, `{}`, `{"op":"create"}`} {
		if _, err := Decode([]byte(raw)); err == nil {
			t.Fatalf("expected error for %s", raw)
		}
	}
}

func TestDispatchSkipsOwnEvents(t *testing.T) {
	b := &Bus{source: "proc-a"}
	var seen []string
	handler := func(ev Event) { seen = append(seen, ev.Source+":"+ev.ClientID) }

	own, _ := Encode(Event{Source: "proc-a", Op: "create", ClientID: "acme"})
	other, _ := Encode(Event{Source: "proc-b", Op: "delete", ClientID: "globex"})
	b.dispatch(own, handler)
	b.dispatch([]byte(`garbage`), handler)
	b.dispatch(other, handler)

	if diff := cmp.Diff([]string{"proc-b:globex"}, seen); diff != "" {
		t.Fatalf("unexpected dispatch (-want +got):\n%s", diff)
	}
}

type invalidator struct{ calls int }

func (i *invalidator) Invalidate() { i.calls++ }

func TestNilBus(t *testing.T) {
	var b *Bus
	if err := b.NotifyChange(context.Background(), tenants.Change{Op: "create", ClientID: "x"}); !errors.Is(err, errNilBus) {
		t.Fatalf("expected errNilBus, got %v", err)
	}
	if err := b.InvalidateOnChange(&invalidator{}); !errors.Is(err, errNilBus) {
		t.Fatalf("expected errNilBus, got %v", err)
	}
	b.Close()
	if _, err := Connect("nats://127.0.0.1:1", ""); !errors.Is(err, errEmptySubject) {
		t.Fatalf("expected errEmptySubject, got %v", err)
	}
}
