package hal

import (
	"context"
	"testing"
	"time"

	"wsencode-go/bus"
	"wsencode-go/drivers/wsentids/sim"
	"wsencode-go/services/hal/internal/halcore"
	"wsencode-go/types"
)

func recv(t *testing.T, sub *bus.Subscription, d time.Duration) *bus.Message {
	t.Helper()
	select {
	case m := <-sub.Channel():
		return m
	case <-time.After(d):
		t.Fatal("timeout waiting for message on", sub.Pattern())
		return nil
	}
}

func startHAL(t *testing.T, source func() int16, params map[string]any) (*bus.Bus, *bus.Connection) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	b := bus.NewBus(16)
	halConn := b.NewConnection("hal")
	client := b.NewConnection("client")

	buses := sim.BusMap{"i2c0": sim.New(0x38,
		sim.WithSource(source),
		sim.WithConversionTime(time.Millisecond))}

	go func() {
		_ = Run(ctx, halConn, Options{
			Buses: buses,
			Worker: halcore.WorkerConfig{
				TriggerTimeout: 20 * time.Millisecond,
				CollectTimeout: 20 * time.Millisecond,
				RetryBackoff:   time.Millisecond,
				MaxRetries:     10,
			},
		})
	}()

	client.Publish(client.NewMessage(bus.T("config", "hal"), map[string]any{
		"devices": []any{
			map[string]any{
				"id": "tids0", "type": "wsentids", "bus": "i2c0",
				"params": params,
			},
		},
	}, true))

	return b, client
}

func TestReadingsFlow(t *testing.T) {
	_, client := startHAL(t, func() int16 { return 2500 }, map[string]any{
		"sample_ms": float64(20),
	})

	ready := client.Subscribe(bus.T("hal", "ready"))
	readings := client.Subscribe(bus.T("hal", "cap", "env", "temperature", "tids0", "event", "reading"))
	info := client.Subscribe(bus.T("hal", "cap", "env", "temperature", "tids0", "info"))

	m := recv(t, ready, time.Second)
	devs := m.Payload.(map[string]any)["devices"].([]any)
	if len(devs) != 1 || devs[0].(string) != "tids0" {
		t.Fatalf("ready payload: %+v", m.Payload)
	}

	im := recv(t, info, time.Second)
	if im.Payload.(map[string]any)["driver"] != "wsentids" {
		t.Fatalf("info payload: %+v", im.Payload)
	}

	rm := recv(t, readings, time.Second)
	val := rm.Payload.(map[string]any)["value"].(types.TemperatureValue)
	if val.MilliC != 25000 {
		t.Fatalf("reading = %+v", val)
	}
}

func TestControlReadAndSetLimits(t *testing.T) {
	_, client := startHAL(t, func() int16 { return 5000 }, map[string]any{
		"sample_ms": float64(3600_000), // effectively only on demand
	})

	readings := client.Subscribe(bus.T("hal", "cap", "env", "temperature", "tids0", "event", "reading"))
	alarms := client.Subscribe(bus.T("hal", "cap", "env", "alarm", "tids0", "event", "reading"))
	replies := client.Subscribe(bus.T("client", "reply"))

	// The startup sample arrives regardless of cadence.
	recv(t, readings, time.Second)

	// set_limits below the simulated temperature, then an on-demand read
	// must carry the alarm.
	client.Publish(&bus.Message{
		Topic:   bus.T("hal", "cap", "env", "temperature", "tids0", "control", "set_limits"),
		Payload: map[string]any{"high_mc": float64(45000)},
		ReplyTo: bus.T("client", "reply"),
	})
	rep := recv(t, replies, time.Second)
	if ok := rep.Payload.(map[string]any)["ok"].(bool); !ok {
		t.Fatalf("set_limits reply: %+v", rep.Payload)
	}

	client.Publish(&bus.Message{
		Topic:   bus.T("hal", "cap", "env", "temperature", "tids0", "control", "read"),
		ReplyTo: bus.T("client", "reply"),
	})
	rep = recv(t, replies, time.Second)
	if ok := rep.Payload.(map[string]any)["ok"].(bool); !ok {
		t.Fatalf("read reply: %+v", rep.Payload)
	}

	am := recv(t, alarms, time.Second)
	av := am.Payload.(map[string]any)["value"].(types.AlarmValue)
	if !av.OverHigh {
		t.Fatalf("alarm = %+v", av)
	}
}

func TestControlUnknownDevice(t *testing.T) {
	_, client := startHAL(t, func() int16 { return 2500 }, map[string]any{
		"sample_ms": float64(3600_000),
	})
	replies := client.Subscribe(bus.T("client", "reply"))

	// Give the service a moment to come up before poking it.
	ready := client.Subscribe(bus.T("hal", "ready"))
	recv(t, ready, time.Second)

	client.Publish(&bus.Message{
		Topic:   bus.T("hal", "cap", "env", "temperature", "nope", "control", "read"),
		ReplyTo: bus.T("client", "reply"),
	})
	rep := recv(t, replies, time.Second)
	p := rep.Payload.(map[string]any)
	if p["ok"].(bool) || p["error"].(string) != "unknown_device" {
		t.Fatalf("reply: %+v", p)
	}
}
