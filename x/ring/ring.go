// Package ring provides a fixed-capacity overwrite ring for milli-degree
// samples. Writers push unconditionally; the oldest value falls out when the
// ring is full.
package ring

type Ring struct {
	buf  []int32
	mask uint32
	wr   uint32 // monotonic write index
}

// New creates a ring holding size samples. size must be a power of two >= 2.
func New(size int) *Ring {
	if size < 2 || (size&(size-1)) != 0 {
		panic("ring: size must be power of two >= 2")
	}
	return &Ring{
		buf:  make([]int32, size),
		mask: uint32(size - 1),
	}
}

func (r *Ring) Push(v int32) {
	r.buf[r.wr&r.mask] = v
	r.wr++
}

// Len returns the number of valid samples, at most the capacity.
func (r *Ring) Len() int {
	if r.wr > uint32(len(r.buf)) {
		return len(r.buf)
	}
	return int(r.wr)
}

// Last returns the most recent sample. ok is false on an empty ring.
func (r *Ring) Last() (v int32, ok bool) {
	if r.wr == 0 {
		return 0, false
	}
	return r.buf[(r.wr-1)&r.mask], true
}

// Stats returns min, max and mean over the valid window.
// ok is false on an empty ring.
func (r *Ring) Stats() (min, max, avg int32, ok bool) {
	n := r.Len()
	if n == 0 {
		return 0, 0, 0, false
	}
	start := r.wr - uint32(n)
	min = r.buf[start&r.mask]
	max = min
	sum := int64(0)
	for i := uint32(0); i < uint32(n); i++ {
		v := r.buf[(start+i)&r.mask]
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += int64(v)
	}
	return min, max, int32(sum / int64(n)), true
}
