package wsentids

// Threshold setters. The sensor raises the OverHigh/UnderLow status flags
// (and the interrupt pin, if wired) when a conversion crosses a limit.

// SetHighLimit_mC sets T_HIGH_LIMIT. The coarse 0.64 °C LSB means the stored
// limit may differ from the request; read it back with HighLimit_mC.
func (d *Device) SetHighLimit_mC(mC int32) error {
	return d.writeReg(regTHighLimit, limitCode(mC))
}

// SetLowLimit_mC sets T_LOW_LIMIT.
func (d *Device) SetLowLimit_mC(mC int32) error {
	return d.writeReg(regTLowLimit, limitCode(mC))
}

// DisableHighLimit stops high-threshold interrupt generation.
func (d *Device) DisableHighLimit() error {
	return d.writeReg(regTHighLimit, 0)
}

// DisableLowLimit stops low-threshold interrupt generation.
func (d *Device) DisableLowLimit() error {
	return d.writeReg(regTLowLimit, 0)
}

// HighLimit_mC reads back the high threshold. enabled is false when the
// register holds the disable code.
func (d *Device) HighLimit_mC() (mC int32, enabled bool, err error) {
	code, err := d.readReg(regTHighLimit)
	if err != nil || code == 0 {
		return 0, false, err
	}
	return limitFromCode(code), true, nil
}

// LowLimit_mC reads back the low threshold.
func (d *Device) LowLimit_mC() (mC int32, enabled bool, err error) {
	code, err := d.readReg(regTLowLimit)
	if err != nil || code == 0 {
		return 0, false, err
	}
	return limitFromCode(code), true, nil
}
