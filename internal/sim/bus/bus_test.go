package bus

import (
	"context"
	"testing"
)

func TestPublishDeliversInSubscriptionOrder(t *testing.T) {
	b := New(nil)
	var got []string

	b.Subscribe("scene", SubscriberFunc(func(_ context.Context, f Frame) {
		got = append(got, "scene")
	}))
	b.Subscribe("map", SubscriberFunc(func(_ context.Context, f Frame) {
		got = append(got, "map")
	}))

	b.Publish(context.Background(), Frame{Seq: 1})

	if len(got) != 2 || got[0] != "scene" || got[1] != "map" {
		t.Fatalf("delivery order = %v", got)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New(nil)
	count := 0
	unsubscribe := b.Subscribe("counter", SubscriberFunc(func(context.Context, Frame) { count++ }))

	b.Publish(context.Background(), Frame{Seq: 1})
	unsubscribe()
	b.Publish(context.Background(), Frame{Seq: 2})

	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
	if b.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", b.Len())
	}
}

func TestPanickingSubscriberDoesNotStarveOthers(t *testing.T) {
	b := New(nil)
	var seen uint64

	b.Subscribe("bad", SubscriberFunc(func(context.Context, Frame) { panic("boom") }))
	b.Subscribe("good", SubscriberFunc(func(_ context.Context, f Frame) { seen = f.Seq }))

	b.Publish(context.Background(), Frame{Seq: 7})

	if seen != 7 {
		t.Fatalf("good subscriber saw seq %d, want 7", seen)
	}
}

func TestCraterMeshScale(t *testing.T) {
	c := CraterVisual{RadiusKm: 10}
	if got := c.MeshScale(); got != 3 {
		t.Fatalf("MeshScale() = %v, want 3", got)
	}
	if got := c.SceneRadius(); got < 0.0299999 || got > 0.0300001 {
		t.Fatalf("SceneRadius() = %v, want 0.03", got)
	}
}
