// Package sim provides a register-accurate behavioural model of the
// WSEN-TIDS behind the drivers.I2C Tx shape, for host demos and
// integration tests. The real driver runs unmodified against it.
package sim

import (
	"errors"
	"sync"
	"time"

	"tinygo.org/x/drivers"
)

// Register file mirrored from the part. Kept local so the simulator does not
// reach into the driver's unexported constants.
const (
	regDeviceID   = 0x01
	regTHighLimit = 0x02
	regTLowLimit  = 0x03
	regCtrl       = 0x04
	regStatus     = 0x05
	regDataTempL  = 0x06
	regDataTempH  = 0x07
	regSoftReset  = 0x0C

	deviceID = 0xA0

	ctrlOneShot = 1 << 0
	ctrlFreeRun = 1 << 2

	statusBusy     = 1 << 0
	statusOverHigh = 1 << 1
	statusUnderLow = 1 << 2

	softResetBit = 1 << 1
)

var ErrNack = errors.New("sim: address not acknowledged")

// Sensor is one simulated WSEN-TIDS on a bus.
type Sensor struct {
	mu sync.Mutex

	addr     uint16
	regs     [0x10]uint8
	source   func() int16 // raw temperature source (0.01 °C LSB)
	convTime time.Duration
	busyTill time.Time

	// Latched conversion pair; DATA_T_L freezes both bytes.
	latched int16
}

// Option mutates a Sensor during construction.
type Option func(*Sensor)

// WithConversionTime overrides the simulated one-shot conversion time
// (default 5 ms).
func WithConversionTime(d time.Duration) Option {
	return func(s *Sensor) { s.convTime = d }
}

// WithSource supplies the raw temperature samples. The default source is a
// slow triangle wave around 25.00 °C.
func WithSource(f func() int16) Option {
	return func(s *Sensor) { s.source = f }
}

// New creates a simulated sensor answering at the given 7-bit address.
func New(addr uint16, opts ...Option) *Sensor {
	s := &Sensor{
		addr:     addr,
		convTime: 5 * time.Millisecond,
	}
	s.regs[regDeviceID] = deviceID
	n := int16(0)
	s.source = func() int16 {
		n++
		return 2500 + (n%40 - 20) // 24.80..25.19 °C triangle
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Tx implements the drivers.I2C transaction shape: a one-byte write selects
// the register pointer, a following read returns its contents; a two-byte
// write stores into the pointed register.
func (s *Sensor) Tx(addr uint16, w, r []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if addr != s.addr {
		return ErrNack
	}
	switch {
	case len(w) == 1 && len(r) >= 1:
		r[0] = s.read(w[0])
		return nil
	case len(w) == 2 && len(r) == 0:
		s.write(w[0], w[1])
		return nil
	}
	return errors.New("sim: unsupported transaction shape")
}

func (s *Sensor) read(reg byte) uint8 {
	switch reg {
	case regStatus:
		return s.status()
	case regDataTempL:
		s.latched = s.currentRaw()
		return uint8(s.latched)
	case regDataTempH:
		return uint8(uint16(s.latched) >> 8)
	default:
		if int(reg) < len(s.regs) {
			return s.regs[reg]
		}
		return 0
	}
}

func (s *Sensor) write(reg, val byte) {
	switch reg {
	case regCtrl:
		s.regs[regCtrl] = val
		if val&ctrlOneShot != 0 {
			s.busyTill = time.Now().Add(s.convTime)
		}
	case regSoftReset:
		if val&softResetBit != 0 {
			id := s.regs[regDeviceID]
			s.regs = [0x10]uint8{}
			s.regs[regDeviceID] = id
			s.busyTill = time.Time{}
		}
	default:
		if int(reg) < len(s.regs) {
			s.regs[reg] = val
		}
	}
}

func (s *Sensor) status() uint8 {
	var st uint8
	if s.converting() {
		st |= statusBusy
	}
	raw := s.currentRaw()
	if hi := s.regs[regTHighLimit]; hi != 0 && raw > limitRaw(hi) {
		st |= statusOverHigh
	}
	if lo := s.regs[regTLowLimit]; lo != 0 && raw < limitRaw(lo) {
		st |= statusUnderLow
	}
	return st
}

func (s *Sensor) converting() bool {
	if s.regs[regCtrl]&ctrlFreeRun != 0 {
		return false // continuous mode always has a result available
	}
	return time.Now().Before(s.busyTill)
}

func (s *Sensor) currentRaw() int16 {
	if s.converting() {
		return s.latched
	}
	return s.source()
}

// limitRaw decodes a threshold register into raw LSBs:
// T = (code-63)*0.64 °C, raw LSB = 0.01 °C.
func limitRaw(code uint8) int16 {
	return int16((int32(code) - 63) * 64)
}

// BusMap is a trivial bus factory for host wiring.
type BusMap map[string]drivers.I2C

func (m BusMap) ByID(id string) (drivers.I2C, bool) {
	b, ok := m[id]
	return b, ok
}
