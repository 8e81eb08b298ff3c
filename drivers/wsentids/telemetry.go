package wsentids

// Status is the typed STATUS register bitfield.
type Status uint8

// Busy reports a conversion in progress.
func (s Status) Busy() bool { return s&statusBusy != 0 }

// OverHigh reports the temperature exceeded T_HIGH_LIMIT.
func (s Status) OverHigh() bool { return s&statusOverHigh != 0 }

// UnderLow reports the temperature fell below T_LOW_LIMIT.
func (s Status) UnderLow() bool { return s&statusUnderLow != 0 }

// Sample holds one raw reading together with the alarm flags captured with it.
type Sample struct {
	Raw   int16
	Alarm Status
}

// MilliCelsius returns the sample temperature in m°C (10 m°C per LSB).
func (s Sample) MilliCelsius() int32 { return int32(s.Raw) * 10 }

// Celsius returns the sample temperature in °C. Prefer MilliCelsius for
// fixed-point paths.
func (s Sample) Celsius() float32 { return float32(s.Raw) * 0.01 }

// Status reads and returns the STATUS register.
func (d *Device) Status() (Status, error) {
	v, err := d.readReg(regStatus)
	return Status(v), err
}

// DataReady reports whether a conversion result is available.
func (d *Device) DataReady() (bool, error) {
	st, err := d.Status()
	if err != nil {
		return false, err
	}
	return !st.Busy(), nil
}

// RawTemperature reads DATA_T_L then DATA_T_H and assembles the signed
// 16-bit result. BDU keeps the pair coherent between the two transactions.
func (d *Device) RawTemperature() (int16, error) {
	lo, err := d.readReg(regDataTempL)
	if err != nil {
		return 0, err
	}
	hi, err := d.readReg(regDataTempH)
	if err != nil {
		return 0, err
	}
	return int16(uint16(hi)<<8 | uint16(lo)), nil
}

// Temperature_mC returns the current temperature in m°C.
func (d *Device) Temperature_mC() (int32, error) {
	raw, err := d.RawTemperature()
	if err != nil {
		return 0, err
	}
	return int32(raw) * 10, nil
}

// Celsius returns the current temperature in °C (float convenience).
func (d *Device) Celsius() (float32, error) {
	raw, err := d.RawTemperature()
	if err != nil {
		return 0, err
	}
	return float32(raw) * 0.01, nil
}
