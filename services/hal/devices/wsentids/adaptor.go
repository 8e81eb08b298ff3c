// Builder and adaptor binding the WSEN-TIDS driver into the HAL service.
package wsentidsdev

import (
	"context"
	"errors"
	"sync"
	"time"

	"wsencode-go/drivers/wsentids"
	"wsencode-go/errcode"
	"wsencode-go/services/hal/internal/halcore"
	"wsencode-go/services/hal/internal/halerr"
	"wsencode-go/services/hal/internal/registry"
	"wsencode-go/types"
	"wsencode-go/x/timex"
)

func init() { registry.RegisterBuilder("wsentids", builder{}) }

type builder struct{}

func (builder) Build(in registry.BuildInput) (registry.BuildOutput, error) {
	if in.BusID == "" {
		return registry.BuildOutput{}, halerr.ErrMissingBusRef
	}
	i2c, ok := in.Buses.ByID(in.BusID)
	if !ok {
		return registry.BuildOutput{}, halerr.ErrUnknownBus
	}

	cfg := wsentids.Config{Mode: wsentids.ModeSingleShot}
	if v, ok := pstr(in.Params, "sao"); ok && v == "low" {
		cfg.Select = wsentids.SAOLow
	}
	if v, ok := pnum(in.Params, "addr"); ok {
		cfg.Address = uint16(v)
	}
	speedHz, continuous := pnum(in.Params, "speed_hz")
	if continuous {
		cfg.Mode = wsentids.ModeContinuous
		cfg.Speed = speedFromHz(uint32(speedHz))
	}

	dev := wsentids.New(i2c, cfg)
	if err := dev.Probe(); err != nil {
		return registry.BuildOutput{}, err
	}
	if err := dev.Configure(cfg); err != nil {
		return registry.BuildOutput{}, err
	}
	if v, ok := pnum(in.Params, "high_limit_mc"); ok {
		if err := dev.SetHighLimit_mC(int32(v)); err != nil {
			return registry.BuildOutput{}, err
		}
	}
	if v, ok := pnum(in.Params, "low_limit_mc"); ok {
		if err := dev.SetLowLimit_mC(int32(v)); err != nil {
			return registry.BuildOutput{}, err
		}
	}

	every := time.Second
	if v, ok := pnum(in.Params, "sample_ms"); ok && v > 0 {
		every = time.Duration(v) * time.Millisecond
	}

	if cfg.Address == 0 {
		cfg.Address = cfg.Select.Address()
	}
	ad := &adaptor{
		id:         in.DeviceID,
		bus:        in.BusID,
		cfg:        cfg,
		dev:        dev,
		continuous: continuous,
	}
	return registry.BuildOutput{Adaptor: ad, BusID: in.BusID, SampleEvery: every}, nil
}

// adaptor guards the device with a mutex: the measure worker drives
// Trigger/Collect from its goroutine while Control arrives on the service
// loop, and the driver reuses fixed transaction buffers.
type adaptor struct {
	id         string
	bus        string
	cfg        wsentids.Config
	continuous bool

	mu  sync.Mutex
	dev *wsentids.Device
}

func (a *adaptor) ID() string { return a.id }

func (a *adaptor) Capabilities() []halcore.CapInfo {
	return []halcore.CapInfo{
		{Kind: string(types.KindTemperature), Info: map[string]any{
			"unit": "mC", "schema_version": 1, "driver": "wsentids",
			"detail": types.TemperatureInfo{Sensor: "wsen-tids", Addr: a.cfg.Address, Bus: a.bus},
		}},
	}
}

// Trigger starts a one-shot conversion. In continuous mode the sensor is
// already converting, so Collect can run immediately.
func (a *adaptor) Trigger(ctx context.Context) (time.Duration, error) {
	if a.continuous {
		return 0, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.dev.Trigger(); err != nil {
		return 0, err
	}
	return a.dev.TriggerHint(), nil
}

func (a *adaptor) Collect(ctx context.Context) (halcore.Sample, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var s wsentids.Sample
	if err := a.dev.Collect(&s); err != nil {
		if err == wsentids.ErrNotReady {
			return nil, halcore.ErrNotReady
		}
		return nil, err
	}
	ts := timex.NowMs()
	sample := halcore.Sample{
		{Kind: string(types.KindTemperature), Payload: types.TemperatureValue{MilliC: s.MilliCelsius()}, TsMs: ts},
	}
	if s.Alarm.OverHigh() || s.Alarm.UnderLow() {
		sample = append(sample, halcore.Reading{
			Kind:    string(types.KindAlarm),
			Payload: types.AlarmValue{OverHigh: s.Alarm.OverHigh(), UnderLow: s.Alarm.UnderLow()},
			TsMs:    ts,
		})
	}
	return sample, nil
}

func (a *adaptor) Control(kind, method string, payload any) (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch method {
	case "set_limits":
		m, ok := payload.(map[string]any)
		if !ok {
			return nil, halerr.ErrInvalidParams
		}
		if v, ok := pnum(m, "high_mc"); ok {
			if err := a.dev.SetHighLimit_mC(int32(v)); err != nil {
				return nil, err
			}
		} else if err := a.dev.DisableHighLimit(); err != nil {
			return nil, err
		}
		if v, ok := pnum(m, "low_mc"); ok {
			if err := a.dev.SetLowLimit_mC(int32(v)); err != nil {
				return nil, err
			}
		} else if err := a.dev.DisableLowLimit(); err != nil {
			return nil, err
		}
		return nil, nil
	case "reset":
		if err := a.dev.Reset(); err != nil {
			return nil, err
		}
		// A reset drops the CTRL configuration with it.
		return nil, a.dev.Configure(a.cfg)
	default:
		return nil, halcore.ErrUnsupported
	}
}

// speedFromHz picks the nearest supported continuous rate.
func speedFromHz(hz uint32) wsentids.Speed {
	switch {
	case hz >= 150:
		return wsentids.Speed200Hz
	case hz >= 75:
		return wsentids.Speed100Hz
	case hz >= 38:
		return wsentids.Speed50Hz
	default:
		return wsentids.Speed25Hz
	}
}

// MapErr converts driver/service errors to stable bus-facing codes.
func MapErr(err error) errcode.Code {
	switch {
	case err == nil:
		return errcode.OK
	case errors.Is(err, wsentids.ErrBadDeviceID):
		return errcode.BadDeviceID
	case errors.Is(err, wsentids.ErrNotReady), errors.Is(err, halcore.ErrNotReady):
		return errcode.NotReady
	case errors.Is(err, wsentids.ErrTimeout):
		return errcode.Timeout
	case errors.Is(err, halcore.ErrUnsupported), errors.Is(err, halerr.ErrUnsupported):
		return errcode.Unsupported
	case errors.Is(err, halerr.ErrInvalidParams):
		return errcode.InvalidParams
	case errors.Is(err, halerr.ErrBusy):
		return errcode.Busy
	case errors.Is(err, halerr.ErrUnknownDevice):
		return errcode.UnknownDevice
	case errors.Is(err, halerr.ErrInvalidCapAddr):
		return errcode.InvalidTopic
	case errors.Is(err, halerr.ErrUnknownBus), errors.Is(err, halerr.ErrMissingBusRef):
		return errcode.UnknownBus
	default:
		return errcode.BusFault
	}
}

// Loose JSON param access; config numbers arrive as float64.

func pnum(m map[string]any, key string) (int64, bool) {
	if m == nil {
		return 0, false
	}
	switch v := m[key].(type) {
	case float64:
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	default:
		return 0, false
	}
}

func pstr(m map[string]any, key string) (string, bool) {
	if m == nil {
		return "", false
	}
	s, ok := m[key].(string)
	return s, ok
}
