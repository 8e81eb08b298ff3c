package conv

// Milli renders a milli-unit value with two decimals, e.g. -1250 -> "-1.25".
// buf should be length >= 16. No allocations beyond the returned slice.
func Milli(buf []byte, mc int32) []byte {
	out := buf[:0]
	v := mc
	if v < 0 {
		out = append(out, '-')
		v = -v
	}
	var tmp [20]byte
	out = append(out, Itoa(tmp[:], int64(v/1000))...)
	frac := (v % 1000) / 10
	out = append(out, '.', byte('0'+frac/10), byte('0'+frac%10))
	return out
}

// MilliString is the allocating convenience form of Milli.
func MilliString(mc int32) string {
	var buf [16]byte
	return string(Milli(buf[:], mc))
}
