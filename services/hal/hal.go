// Package hal runs the hardware-abstraction service: it builds devices from
// retained configuration, drives their measurement cycles through the
// measure worker and exposes readings and controls on the message bus.
//
// Topic layout:
//
//	config/hal                                      retained device config
//	hal/ready                                       retained, device ids
//	hal/cap/env/<kind>/<id>/info                    retained capability info
//	hal/cap/env/<kind>/<id>/event/reading           measurements
//	hal/cap/env/<kind>/<id>/event/error             measurement faults
//	hal/cap/env/<kind>/<id>/control/<method>        commands (read, set_limits, reset)
package hal

import (
	"context"
	"time"

	"wsencode-go/bus"
	wsentidsdev "wsencode-go/services/hal/devices/wsentids"
	"wsencode-go/services/hal/internal/halcore"
	"wsencode-go/services/hal/internal/halerr"
	"wsencode-go/services/hal/internal/registry"
	"wsencode-go/services/hal/internal/worker"
	"wsencode-go/types"
)

// Options configures a HAL service run.
type Options struct {
	Buses  halcore.I2CBusFactory
	Worker halcore.WorkerConfig
	// QueueSize for the worker result sink. Default 16.
	QueueSize int
}

type device struct {
	id      string
	kind    string
	adaptor halcore.Adaptor
	every   time.Duration
}

// Run blocks until ctx is cancelled. It waits for the retained config/hal
// message before building any device.
func Run(ctx context.Context, conn *bus.Connection, opt Options) error {
	cfgSub := conn.Subscribe(bus.T("config", "hal"))
	defer cfgSub.Unsubscribe()

	var cfg map[string]any
	select {
	case <-ctx.Done():
		return ctx.Err()
	case msg := <-cfgSub.Channel():
		cfg, _ = msg.Payload.(map[string]any)
	}
	if cfg == nil {
		println("[hal] config/hal payload is not an object; nothing to do")
		return halerr.ErrInvalidParams
	}

	devices := buildDevices(ctx, cfg, opt.Buses)
	if len(devices) == 0 {
		println("[hal] no devices built")
	}

	// Retained capability info.
	ids := make([]any, 0, len(devices))
	for _, d := range devices {
		ids = append(ids, d.id)
		for _, cap := range d.adaptor.Capabilities() {
			conn.Publish(conn.NewMessage(
				bus.T("hal", "cap", "env", cap.Kind, d.id, "info"), cap.Info, true))
		}
	}
	conn.Publish(conn.NewMessage(bus.T("hal", "ready"), map[string]any{"devices": ids}, true))

	if opt.QueueSize <= 0 {
		opt.QueueSize = 16
	}
	results := make(chan halcore.Result, opt.QueueSize)
	w := worker.New(opt.Worker, results)
	w.Start(ctx)

	// Periodic sampling, one scheduler goroutine per device.
	for _, d := range devices {
		if d.every <= 0 {
			continue
		}
		go sampleLoop(ctx, w, d)
	}

	ctrlSub := conn.Subscribe(bus.T("hal", "cap", "env", "+", "+", "control", "+"))
	defer ctrlSub.Unsubscribe()

	byID := map[string]*device{}
	for _, d := range devices {
		byID[d.id] = d
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-results:
			publishResult(conn, byID, r)
		case msg := <-ctrlSub.Channel():
			handleControl(conn, byID, w, msg)
		}
	}
}

func buildDevices(ctx context.Context, cfg map[string]any, buses halcore.I2CBusFactory) []*device {
	list, _ := cfg["devices"].([]any)
	var out []*device
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id, _ := m["id"].(string)
		typ, _ := m["type"].(string)
		busID, _ := m["bus"].(string)
		params, _ := m["params"].(map[string]any)
		if id == "" || typ == "" {
			println("[hal] skipping device with missing id/type")
			continue
		}
		b, ok := registry.Lookup(typ)
		if !ok {
			println("[hal] unknown device type:", typ)
			continue
		}
		outp, err := b.Build(registry.BuildInput{
			Ctx: ctx, Buses: buses, DeviceID: id, Type: typ, BusID: busID, Params: params,
		})
		if err != nil {
			println("[hal] build failed for", id, ":", err.Error())
			continue
		}
		kind := string(types.KindTemperature)
		if caps := outp.Adaptor.Capabilities(); len(caps) > 0 {
			kind = caps[0].Kind
		}
		out = append(out, &device{id: id, kind: kind, adaptor: outp.Adaptor, every: outp.SampleEvery})
		println("[hal] built device", id, "type", typ)
	}
	return out
}

func sampleLoop(ctx context.Context, w *worker.MeasureWorker, d *device) {
	tick := time.NewTicker(d.every)
	defer tick.Stop()
	// Take one sample right away so subscribers see data promptly.
	w.Submit(halcore.MeasureReq{ID: d.id, Adaptor: d.adaptor})
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if !w.Submit(halcore.MeasureReq{ID: d.id, Adaptor: d.adaptor}) {
				println("[hal] sample queue full, skipping", d.id)
			}
		}
	}
}

func publishResult(conn *bus.Connection, byID map[string]*device, r halcore.Result) {
	d := byID[r.ID]
	if d == nil {
		return
	}
	if r.Err != nil {
		conn.Publish(conn.NewMessage(
			bus.T("hal", "cap", "env", d.kind, d.id, "event", "error"),
			map[string]any{"code": string(wsentidsdev.MapErr(r.Err))}, false))
		return
	}
	for _, reading := range r.Sample {
		conn.Publish(conn.NewMessage(
			bus.T("hal", "cap", "env", reading.Kind, d.id, "event", "reading"),
			map[string]any{"value": reading.Payload, "ts_ms": reading.TsMs}, false))
	}
}

func handleControl(conn *bus.Connection, byID map[string]*device, w *worker.MeasureWorker, msg *bus.Message) {
	// hal/cap/env/<kind>/<id>/control/<method>
	if len(msg.Topic) != 7 {
		reply(conn, msg, halerr.ErrInvalidCapAddr)
		return
	}
	kind, id, method := msg.Topic[3], msg.Topic[4], msg.Topic[6]
	d := byID[id]
	if d == nil {
		reply(conn, msg, halerr.ErrUnknownDevice)
		return
	}

	switch method {
	case "read":
		if !w.Submit(halcore.MeasureReq{ID: d.id, Adaptor: d.adaptor, Prio: true}) {
			reply(conn, msg, halerr.ErrBusy)
			return
		}
		reply(conn, msg, nil)
	default:
		_, err := d.adaptor.Control(kind, method, msg.Payload)
		reply(conn, msg, err)
	}
}

func reply(conn *bus.Connection, msg *bus.Message, err error) {
	if msg.ReplyTo == nil {
		return
	}
	payload := map[string]any{"ok": err == nil}
	if err != nil {
		payload["error"] = string(wsentidsdev.MapErr(err))
	}
	conn.Publish(conn.NewMessage(msg.ReplyTo, payload, false))
}
