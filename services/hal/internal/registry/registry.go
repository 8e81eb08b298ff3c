// services/hal/internal/registry/registry.go
package registry

import (
	"context"
	"sync"
	"time"

	"wsencode-go/services/hal/internal/halcore"
)

// BuildInput is passed to a device builder.
type BuildInput struct {
	Ctx      context.Context
	Buses    halcore.I2CBusFactory
	DeviceID string
	Type     string
	BusID    string         // e.g. "i2c0"
	Params   map[string]any // decoded device params from config
}

// BuildOutput describes a constructed device.
type BuildOutput struct {
	Adaptor     halcore.Adaptor
	BusID       string        // "" if not on a shared bus
	SampleEvery time.Duration // 0 if not a periodic producer
}

// Builder creates an adaptor from config and factories.
type Builder interface {
	Build(in BuildInput) (BuildOutput, error)
}

var (
	mu       sync.RWMutex
	builders = map[string]Builder{}
)

func RegisterBuilder(deviceType string, b Builder) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := builders[deviceType]; exists {
		panic("device builder already registered for type " + deviceType)
	}
	builders[deviceType] = b
}

func Lookup(deviceType string) (Builder, bool) {
	mu.RLock()
	defer mu.RUnlock()
	b, ok := builders[deviceType]
	return b, ok
}
