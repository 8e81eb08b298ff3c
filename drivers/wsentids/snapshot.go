package wsentids

// Snapshot collects commonly used telemetry and threshold state.
// Zero values remain where individual reads fail.
type Snapshot struct {
	Temp_mC int32
	Raw     int16
	Status  Status

	HighLimit_mC int32
	LowLimit_mC  int32
	HighEnabled  bool
	LowEnabled   bool
}

func (d *Device) Snapshot() Snapshot {
	var s Snapshot
	d.SnapshotInto(&s)
	return s
}

func (d *Device) SnapshotInto(out *Snapshot) {
	var s Snapshot
	if raw, e := d.RawTemperature(); e == nil {
		s.Raw = raw
		s.Temp_mC = int32(raw) * 10
	}
	if st, e := d.Status(); e == nil {
		s.Status = st
	}
	if mC, en, e := d.HighLimit_mC(); e == nil {
		s.HighLimit_mC = mC
		s.HighEnabled = en
	}
	if mC, en, e := d.LowLimit_mC(); e == nil {
		s.LowLimit_mC = mC
		s.LowEnabled = en
	}
	*out = s
}
