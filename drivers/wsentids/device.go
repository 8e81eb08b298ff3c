// Package wsentids provides a driver for the Würth Elektronik WSEN-TIDS
// I²C temperature sensor (order code 2521020222501).
//
// It exposes a two-phase measurement API in single-shot mode:
//
//	d.Trigger()              // start a conversion (fast)
//	err := d.Collect(&s)     // fetch when ready; returns ErrNotReady while busy
//
// For convenience, d.Read() performs trigger + bounded polling until ready,
// and continuous mode callers can use Temperature_mC() directly.
//
// NOTE: I2C.Tx MUST perform a write followed by a repeated-start read when
// both w and r are provided, without releasing the bus.
//
// The driver avoids floating-point on the hot path; fixed-point accessors
// return milli-°C.
package wsentids

import (
	"errors"
	"time"

	"tinygo.org/x/drivers"
)

// Errors returned by the driver.
var (
	ErrBadDeviceID = errors.New("wsentids: unexpected device id")
	ErrNotReady    = errors.New("wsentids: not ready")
	ErrTimeout     = errors.New("wsentids: timeout")
	ErrInvalidMode = errors.New("wsentids: invalid mode")
)

// AddressSelect mirrors the SAO address strap.
type AddressSelect uint8

const (
	SAOHigh AddressSelect = iota // 0x38
	SAOLow                       // 0x3F
)

func (a AddressSelect) Address() uint16 {
	if a == SAOLow {
		return AddressSAOLow
	}
	return AddressSAOHigh
}

// Speed selects the continuous conversion rate (AVG[1:0]).
type Speed uint8

const (
	Speed25Hz  Speed = 0b00
	Speed50Hz  Speed = 0b01
	Speed100Hz Speed = 0b10
	Speed200Hz Speed = 0b11
)

// Hz returns the conversion rate in Hertz.
func (s Speed) Hz() uint32 {
	switch s {
	case Speed50Hz:
		return 50
	case Speed100Hz:
		return 100
	case Speed200Hz:
		return 200
	default:
		return 25
	}
}

// Mode is the sensor operating mode.
type Mode uint8

const (
	ModePowerDown Mode = iota
	ModeSingleShot
	ModeContinuous
)

// Config controls addressing and conversion behaviour. All fields are
// optional; the zero value selects SAO-high addressing in power-down mode.
type Config struct {
	// Address is the 7-bit I²C address. If zero, Select is consulted.
	Address uint16
	// Select picks the strapped address when Address is zero.
	Select AddressSelect
	// Mode applied by Configure.
	Mode Mode
	// Speed is the continuous conversion rate (ModeContinuous only).
	Speed Speed
	// TriggerHint is the nominal single-shot conversion time, used as the
	// initial wait before Collect. Default 10 ms.
	TriggerHint time.Duration
	// PollInterval is used by Read() between Collect() attempts. Default 2 ms.
	PollInterval time.Duration
	// CollectTimeout bounds the total wait in Read(). Default 100 ms.
	CollectTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.Address == 0 {
		c.Address = c.Select.Address()
	}
	if c.TriggerHint <= 0 {
		c.TriggerHint = 10 * time.Millisecond
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Millisecond
	}
	if c.CollectTimeout <= 0 {
		c.CollectTimeout = 100 * time.Millisecond
	}
}

// Device represents a WSEN-TIDS instance on an I²C bus.
type Device struct {
	i2c  drivers.I2C
	addr uint16
	cfg  Config

	// Last CTRL value written; one-shot triggers OR into this base.
	ctrl uint8

	// Fixed buffers to avoid per-call heap allocations.
	w [2]byte
	r [2]byte
}

// New constructs a Device with the supplied config. The I²C bus must already
// be configured. This function only creates the Device object; it does not
// touch the hardware.
func New(i2c drivers.I2C, cfg Config) *Device {
	cfg.applyDefaults()
	return &Device{
		i2c:  i2c,
		addr: cfg.Address,
		cfg:  cfg,
	}
}

// Configure writes CTRL according to cfg.Mode and stores the new settings.
// BDU is always enabled so DATA_T_H/L stay coherent across the two reads.
func (d *Device) Configure(cfg Config) error {
	cfg.applyDefaults()

	ctrl := uint8(ctrlBDU)
	switch cfg.Mode {
	case ModePowerDown:
		// FREERUN and ONE_SHOT both clear; conversions stop.
	case ModeSingleShot:
		// ONE_SHOT is set per trigger, not here.
	case ModeContinuous:
		ctrl |= ctrlFreeRun | uint8(cfg.Speed)<<ctrlAvgShift
	default:
		return ErrInvalidMode
	}

	if err := d.writeReg(regCtrl, ctrl); err != nil {
		return err
	}
	d.addr = cfg.Address
	d.cfg = cfg
	d.ctrl = ctrl
	return nil
}

// DeviceID reads the DEVICE_ID register. The part reports a fixed 0xA0.
func (d *Device) DeviceID() (uint8, error) {
	return d.readReg(regDeviceID)
}

// Probe verifies the sensor answers with the expected device id. A bus error
// is returned as-is (wiring fault); a wrong id returns ErrBadDeviceID.
func (d *Device) Probe() error {
	id, err := d.DeviceID()
	if err != nil {
		return err
	}
	if id != DeviceIDValue {
		return ErrBadDeviceID
	}
	return nil
}

// Reset performs a software reset of the digital blocks.
func (d *Device) Reset() error {
	return d.writeReg(regSoftReset, softResetBit)
}

// Trigger starts a single conversion. It is a quick register write with no
// blocking; the sensor needs TriggerHint() before the result is ready.
func (d *Device) Trigger() error {
	return d.writeReg(regCtrl, d.ctrlBase()|ctrlOneShot)
}

// TriggerHint returns the nominal conversion time to wait before Collect.
func (d *Device) TriggerHint() time.Duration {
	return d.cfg.TriggerHint
}

// Collect reads one measurement into out. If the conversion is still in
// progress, ErrNotReady is returned. Any bus error is returned as-is.
func (d *Device) Collect(out *Sample) error {
	st, err := d.Status()
	if err != nil {
		return err
	}
	if st.Busy() {
		return ErrNotReady
	}
	raw, err := d.RawTemperature()
	if err != nil {
		return err
	}
	if out != nil {
		out.Raw = raw
		out.Alarm = st
	}
	return nil
}

// Read performs a full single-shot cycle: Trigger followed by bounded polling
// until Collect succeeds or CollectTimeout elapses.
func (d *Device) Read(out *Sample) error {
	if err := d.Trigger(); err != nil {
		return err
	}
	time.Sleep(d.cfg.TriggerHint)
	deadline := time.Now().Add(d.cfg.CollectTimeout)
	for {
		err := d.Collect(out)
		switch err {
		case nil:
			return nil
		case ErrNotReady:
			if time.Now().After(deadline) {
				return ErrTimeout
			}
			time.Sleep(d.cfg.PollInterval)
		default:
			return err
		}
	}
}

// ctrlBase returns the CTRL value Configure last established, defaulting to
// BDU-only for devices used before Configure.
func (d *Device) ctrlBase() uint8 {
	if d.ctrl == 0 {
		return ctrlBDU
	}
	return d.ctrl
}

// ---------------- Low-level register I/O ----------------

// readReg performs a pointer write followed by a repeated-start read.
func (d *Device) readReg(reg byte) (uint8, error) {
	d.w[0] = reg
	if err := d.i2c.Tx(d.addr, d.w[:1], d.r[:1]); err != nil {
		return 0, err
	}
	return d.r[0], nil
}

func (d *Device) writeReg(reg byte, val uint8) error {
	d.w[0] = reg
	d.w[1] = val
	return d.i2c.Tx(d.addr, d.w[:2], nil)
}
