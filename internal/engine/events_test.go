package engine_test

import (
	"testing"

	"github.com/AndrewGaspar/parthenon/internal/engine"
	"github.com/AndrewGaspar/parthenon/internal/model"
)

func TestEventBrokerSingleSubscriber(t *testing.T) {
	b := engine.NewEventBroker()
	ch, unsub := b.Subscribe("r1")
	defer unsub()

	for c := 1; c <= 3; c++ {
		b.Publish("r1", model.Snapshot{RunID: "r1", Cycle: c})
	}
	b.Close("r1")

	var got []int
	for s := range ch {
		got = append(got, s.Cycle)
	}

	if len(got) != 3 {
		t.Fatalf("got %d events, want 3", len(got))
	}
	for i, c := range got {
		if c != i+1 {
			t.Errorf("event[%d].Cycle = %d, want %d", i, c, i+1)
		}
	}
}

func TestEventBrokerMultipleSubscribers(t *testing.T) {
	b := engine.NewEventBroker()
	ch1, unsub1 := b.Subscribe("r1")
	defer unsub1()
	ch2, unsub2 := b.Subscribe("r1")
	defer unsub2()

	b.Publish("r1", model.Snapshot{Cycle: 7})
	b.Close("r1")

	for i, ch := range []<-chan model.Snapshot{ch1, ch2} {
		var got []int
		for s := range ch {
			got = append(got, s.Cycle)
		}
		if len(got) != 1 || got[0] != 7 {
			t.Errorf("subscriber %d got %v, want [7]", i+1, got)
		}
	}
}

func TestEventBrokerLateSubscriberGetsClosed(t *testing.T) {
	b := engine.NewEventBroker()
	b.Close("r1")

	ch, unsub := b.Subscribe("r1")
	defer unsub()

	if _, ok := <-ch; ok {
		t.Error("expected closed channel for finished run")
	}
}

func TestEventBrokerUnsubscribeStopsDelivery(t *testing.T) {
	b := engine.NewEventBroker()
	ch, unsub := b.Subscribe("r1")

	b.Publish("r1", model.Snapshot{Cycle: 1})
	unsub()
	b.Publish("r1", model.Snapshot{Cycle: 2})

	got := <-ch
	if got.Cycle != 1 {
		t.Errorf("Cycle = %d, want 1", got.Cycle)
	}
	select {
	case s := <-ch:
		t.Errorf("unexpected event after unsubscribe: %+v", s)
	default:
	}
}

func TestEventBrokerPublishToUnknownRunIsNoop(t *testing.T) {
	b := engine.NewEventBroker()
	b.Publish("nobody", model.Snapshot{Cycle: 1})
}

func TestEventBrokerDropsForSlowSubscriber(t *testing.T) {
	b := engine.NewEventBroker()
	ch, unsub := b.Subscribe("r1")
	defer unsub()

	for c := range 200 {
		b.Publish("r1", model.Snapshot{Cycle: c})
	}
	b.Close("r1")

	n := 0
	for range ch {
		n++
	}
	if n != 64 {
		t.Errorf("received %d events, want 64 buffered", n)
	}
}
