// Host self-test: runs the whole stack (config, hal, telemetry) on one bus
// against a simulated WSEN-TIDS and checks that readings, controls and
// alarms flow end to end. Exits non-zero on failure.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"wsencode-go/bus"
	"wsencode-go/drivers/wsentids"
	"wsencode-go/drivers/wsentids/sim"
	"wsencode-go/services/config"
	"wsencode-go/services/hal"
	"wsencode-go/services/telemetry"
	"wsencode-go/types"
)

const selftestConfig = `{
  "hal": {
    "devices": [
      {
        "id": "tids0",
        "type": "wsentids",
        "bus": "i2c0",
        "params": {"sample_ms": 100}
      }
    ]
  },
  "telemetry": {
    "interval": 1
  }
}`

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "selftest failed:", err)
		os.Exit(1)
	}
	fmt.Println("selftest passed")
}

func run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	b := bus.NewBus(32)
	buses := sim.BusMap{"i2c0": sim.New(wsentids.AddressSAOHigh,
		sim.WithConversionTime(2*time.Millisecond))}

	config.EmbeddedConfigLookup = func(string) ([]byte, bool) {
		return []byte(selftestConfig), true
	}
	cfgCtx := context.WithValue(ctx, config.CtxDeviceKey, "tids-demo")
	config.NewService().Start(cfgCtx, b.NewConnection("config"))

	go hal.Run(ctx, b.NewConnection("hal"), hal.Options{Buses: buses})

	tel := telemetry.NewService()
	if err := tel.Start(ctx, b.NewConnection("telemetry")); err != nil {
		return err
	}

	client := b.NewConnection("selftest")

	ready := client.Subscribe(bus.T("hal", "ready"))
	if _, err := await(ctx, ready); err != nil {
		return fmt.Errorf("hal never became ready: %w", err)
	}
	fmt.Println("hal ready")

	readings := client.Subscribe(bus.T("hal", "cap", "env", "temperature", "tids0", "event", "reading"))
	for i := 0; i < 3; i++ {
		m, err := await(ctx, readings)
		if err != nil {
			return fmt.Errorf("no reading: %w", err)
		}
		v := m.Payload.(map[string]any)["value"].(types.TemperatureValue)
		fmt.Printf("reading %d: %d mC\n", i+1, v.MilliC)
	}

	// Force an over-high alarm: the simulated triangle sits near 25 °C.
	replies := client.Subscribe(bus.T("selftest", "reply"))
	alarms := client.Subscribe(bus.T("hal", "cap", "env", "alarm", "tids0", "event", "reading"))
	client.Publish(&bus.Message{
		Topic:   bus.T("hal", "cap", "env", "temperature", "tids0", "control", "set_limits"),
		Payload: map[string]any{"high_mc": float64(20000)},
		ReplyTo: bus.T("selftest", "reply"),
	})
	if err := awaitOK(ctx, replies); err != nil {
		return fmt.Errorf("set_limits: %w", err)
	}
	if _, err := await(ctx, alarms); err != nil {
		return fmt.Errorf("no alarm after lowering the high limit: %w", err)
	}
	fmt.Println("alarm raised")

	// Clear the limit again and issue an on-demand read.
	client.Publish(&bus.Message{
		Topic:   bus.T("hal", "cap", "env", "temperature", "tids0", "control", "set_limits"),
		Payload: map[string]any{},
		ReplyTo: bus.T("selftest", "reply"),
	})
	if err := awaitOK(ctx, replies); err != nil {
		return fmt.Errorf("clear limits: %w", err)
	}
	client.Publish(&bus.Message{
		Topic:   bus.T("hal", "cap", "env", "temperature", "tids0", "control", "read"),
		ReplyTo: bus.T("selftest", "reply"),
	})
	if err := awaitOK(ctx, replies); err != nil {
		return fmt.Errorf("on-demand read: %w", err)
	}

	// Telemetry must have tracked the device by now.
	deadline := time.Now().Add(time.Second)
	for {
		if v, ok := tel.Latest("tids0"); ok {
			fmt.Printf("telemetry latest: %d mC\n", v.MilliC)
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("telemetry never saw a reading")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func await(ctx context.Context, sub *bus.Subscription) (*bus.Message, error) {
	select {
	case m := <-sub.Channel():
		return m, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("timeout on %s", strings.Join(sub.Pattern(), "/"))
	}
}

func awaitOK(ctx context.Context, replies *bus.Subscription) error {
	m, err := await(ctx, replies)
	if err != nil {
		return err
	}
	p, _ := m.Payload.(map[string]any)
	if ok, _ := p["ok"].(bool); !ok {
		return fmt.Errorf("reply not ok: %v", p)
	}
	return nil
}
