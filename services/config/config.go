// Package config publishes the embedded per-device configuration as
// retained bus messages, one message per top-level key under config/<key>.
// Other services pick up their section by subscribing to their own key.
package config

import (
	"context"
	"errors"

	"wsencode-go/bus"

	"github.com/andreyvit/tinyjson"
)

const (
	serviceName  = "config"
	configPrefix = "config"
	CtxDeviceKey = "device" // context key carrying the device ID
)

// EmbeddedConfigLookup resolves a device ID to its raw JSON config.
// Tests and host demos may override it.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}

type Service struct {
	Name string
}

func NewService() *Service {
	return &Service{Name: serviceName}
}

// publishConfig parses the embedded JSON for the device named in ctx and
// publishes each top-level key retained.
func (s *Service) publishConfig(ctx context.Context, conn *bus.Connection) error {
	device, _ := ctx.Value(CtxDeviceKey).(string)
	if device == "" {
		return errors.New("missing device ID in context")
	}

	raw, ok := EmbeddedConfigLookup(device)
	if !ok || len(raw) == 0 {
		return errors.New("no embedded config for device: " + device)
	}

	r := tinyjson.Raw(raw)
	val := r.Value()
	r.EnsureEOF()

	m, ok := val.(map[string]any)
	if !ok {
		return errors.New("embedded config is not a JSON object")
	}

	for k, v := range m {
		conn.Publish(conn.NewMessage(bus.T(configPrefix, k), v, true))
	}
	return nil
}

// Start launches the config publisher in a goroutine.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) {
	go func() {
		if err := s.publishConfig(ctx, conn); err != nil {
			println("[config]", err.Error())
		}
	}()
}
