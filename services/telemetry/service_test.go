package telemetry

import (
	"context"
	"testing"
	"time"

	"wsencode-go/bus"
	"wsencode-go/types"
)

func TestTracksLatestReadingPerDevice(t *testing.T) {
	b := bus.NewBus(16)
	conn := b.NewConnection("telemetry")
	pub := b.NewConnection("pub")

	svc := NewService()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := svc.Start(ctx, conn); err != nil {
		t.Fatal(err)
	}
	// Let the loop subscribe before publishing.
	time.Sleep(10 * time.Millisecond)

	topic := bus.T("hal", "cap", "env", "temperature", "tids0", "event", "reading")
	pub.Publish(pub.NewMessage(topic,
		map[string]any{"value": types.TemperatureValue{MilliC: 24000}, "ts_ms": int64(1)}, false))
	pub.Publish(pub.NewMessage(topic,
		map[string]any{"value": types.TemperatureValue{MilliC: 25500}, "ts_ms": int64(2)}, false))

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if v, ok := svc.Latest("tids0"); ok && v.MilliC == 25500 {
			min, max, avg, ok := svc.Stats("tids0")
			if !ok || min != 24000 || max != 25500 || avg != 24750 {
				t.Fatalf("stats = %d %d %d %v", min, max, avg, ok)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	v, ok := svc.Latest("tids0")
	t.Fatalf("latest = %+v ok=%v, want 25500 mC", v, ok)
}

func TestIgnoresMalformedPayloads(t *testing.T) {
	b := bus.NewBus(16)
	conn := b.NewConnection("telemetry")
	pub := b.NewConnection("pub")

	svc := NewService()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := svc.Start(ctx, conn); err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)

	topic := bus.T("hal", "cap", "env", "temperature", "tids0", "event", "reading")
	pub.Publish(pub.NewMessage(topic, "not an object", false))
	pub.Publish(pub.NewMessage(topic, map[string]any{"value": 42}, false))

	time.Sleep(30 * time.Millisecond)
	if _, ok := svc.Latest("tids0"); ok {
		t.Fatal("malformed payloads must not be tracked")
	}
}

func TestConfigAdjustsInterval(t *testing.T) {
	b := bus.NewBus(16)
	conn := b.NewConnection("telemetry")
	pub := b.NewConnection("pub")

	// Retained config published before the service starts must still apply.
	pub.Publish(pub.NewMessage(bus.T("config", "telemetry"),
		map[string]any{"interval": float64(1)}, true))

	svc := NewService()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := svc.Start(ctx, conn); err != nil {
		t.Fatal(err)
	}

	// No assertion beyond not crashing: the interval only changes logging
	// cadence. Give the loop a moment to consume the retained message.
	time.Sleep(30 * time.Millisecond)
}
