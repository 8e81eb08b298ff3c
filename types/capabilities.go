package types

// Kind names a capability class as it appears in bus topics.
type Kind string

const (
	KindTemperature Kind = "temperature"
	KindAlarm       Kind = "alarm"
)
