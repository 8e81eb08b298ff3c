package types

// TemperatureInfo describes a temperature capability's physical binding.
type TemperatureInfo struct {
	Sensor string `json:"sensor"`
	Addr   uint16 `json:"addr"`
	Bus    string `json:"bus"`
}

// TemperatureValue is the reading payload, fixed-point milli-°C.
type TemperatureValue struct {
	MilliC int32 `json:"milli_c"`
}

// AlarmValue reports threshold crossings latched with a reading.
type AlarmValue struct {
	OverHigh bool `json:"over_high"`
	UnderLow bool `json:"under_low"`
}
