package wsentids

import "wsencode-go/x/mathx"

// Threshold registers use a coarse 8-bit code:
//
//	T(°C) = (code - 63) * 0.64
//
// so code 63 is 0 °C and one LSB is 0.64 °C (640 m°C). Code 0 disables the
// threshold. Truncation toward zero matches the reference manual table.

const limitStep_mC = 640

// limitCode converts m°C into an enabled threshold code, clamped to [1, 255]
// so the value can never silently disable the alarm.
func limitCode(mC int32) uint8 {
	num := mC + 63*limitStep_mC
	if num < 0 {
		num = 0
	}
	return uint8(mathx.Clamp(num/limitStep_mC, 1, 255))
}

// limitFromCode is the inverse mapping, in m°C.
func limitFromCode(code uint8) int32 {
	return (int32(code) - 63) * limitStep_mC
}
