// Package telemetry tracks temperature readings published by the HAL, keeps
// a short history per device and logs a periodic summary. Alarm events are
// logged as they arrive.
package telemetry

import (
	"context"
	"sync"
	"time"

	"wsencode-go/bus"
	"wsencode-go/types"
	"wsencode-go/x/conv"
	"wsencode-go/x/ring"
)

var (
	topicConfig   = bus.T("config", "telemetry")
	topicReadings = bus.T("hal", "cap", "env", "temperature", "+", "event", "reading")
	topicAlarms   = bus.T("hal", "cap", "env", "alarm", "+", "event", "reading")
)

// historySize is the per-device window for min/max/avg reporting.
const historySize = 32

type Service struct {
	mu   sync.Mutex
	hist map[string]*ring.Ring // recent readings per device ID, in m°C
}

func NewService() *Service {
	return &Service{hist: map[string]*ring.Ring{}}
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfig)
	defer cfgSub.Unsubscribe()
	readSub := conn.Subscribe(topicReadings)
	defer readSub.Unsubscribe()
	alarmSub := conn.Subscribe(topicAlarms)
	defer alarmSub.Unsubscribe()

	tick := time.NewTicker(2 * time.Second)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			println("[telemetry] stopping")
			return
		case <-tick.C:
			s.report()
		case msg := <-readSub.Channel():
			s.track(msg)
		case msg := <-alarmSub.Channel():
			logAlarm(msg)
		case msg := <-cfgSub.Channel():
			if m, ok := msg.Payload.(map[string]any); ok {
				if iv, ok := m["interval"].(float64); ok && iv > 0 {
					tick.Reset(time.Duration(iv) * time.Second)
					println("[telemetry] report interval set to", int(iv), "s")
				}
			}
		}
	}
}

// track records the reading for the device named in the topic.
func (s *Service) track(msg *bus.Message) {
	// hal/cap/env/temperature/<id>/event/reading
	if len(msg.Topic) != 7 {
		return
	}
	id := msg.Topic[4]
	m, ok := msg.Payload.(map[string]any)
	if !ok {
		return
	}
	v, ok := m["value"].(types.TemperatureValue)
	if !ok {
		return
	}
	s.mu.Lock()
	h := s.hist[id]
	if h == nil {
		h = ring.New(historySize)
		s.hist[id] = h
	}
	h.Push(v.MilliC)
	s.mu.Unlock()
}

func (s *Service) report() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.hist) == 0 {
		println("[telemetry] no readings yet")
		return
	}
	for id, h := range s.hist {
		last, _ := h.Last()
		min, max, avg, _ := h.Stats()
		println("[telemetry]", id,
			"temp", conv.MilliString(last), "C",
			"min", conv.MilliString(min),
			"max", conv.MilliString(max),
			"avg", conv.MilliString(avg),
			"n", h.Len())
	}
}

func logAlarm(msg *bus.Message) {
	if len(msg.Topic) != 7 {
		return
	}
	id := msg.Topic[4]
	m, ok := msg.Payload.(map[string]any)
	if !ok {
		return
	}
	if av, ok := m["value"].(types.AlarmValue); ok {
		switch {
		case av.OverHigh:
			println("[telemetry] ALARM", id, "over high limit")
		case av.UnderLow:
			println("[telemetry] ALARM", id, "under low limit")
		}
	}
}

// Latest returns the most recent reading tracked for a device.
func (s *Service) Latest(id string) (types.TemperatureValue, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.hist[id]
	if h == nil {
		return types.TemperatureValue{}, false
	}
	mc, ok := h.Last()
	return types.TemperatureValue{MilliC: mc}, ok
}

// Stats returns min/max/avg over the tracked window for a device.
func (s *Service) Stats(id string) (min, max, avg int32, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.hist[id]
	if h == nil {
		return 0, 0, 0, false
	}
	return h.Stats()
}

// Start launches the telemetry loop.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
