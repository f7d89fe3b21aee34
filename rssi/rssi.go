// Package rssi turns raw per-channel ADC counts into the filtered,
// calibrated left/right signal the tracking controller steers on:
// noise-floor subtraction, a fixed inter-channel offset, and a
// fixed-capacity moving average, following
// original_source/antenna_tracker.py's read_rssi (deque(maxlen=5)
// buffers averaged after calibration is applied).
package rssi

// Calibration holds the per-channel noise floor and the inter-channel
// offset recorded by the two CalibrateMin/CalibrateMax passes.
type Calibration struct {
	NoiseFloorLeft  int
	NoiseFloorRight int

	// Offset is added to the right channel's calibrated reading to
	// correct for a systematic left/right gain mismatch, mirroring
	// antenna_tracker.py's rssi_offset.
	Offset int

	// RssiMaxLeft/RssiMaxRight are the mean filtered left/right levels
	// recorded by CalibrateMax, the expected peak signal on boresight.
	RssiMaxLeft  int
	RssiMaxRight int
}

// Calibrate subtracts each channel's noise floor and applies Offset to
// the right channel. No saturation: a negative result is meaningful
// (signal below the noise floor recorded at the last calibration) and
// is returned as-is.
func (c Calibration) Calibrate(rawLeft, rawRight int) (left, right int) {
	left = rawLeft - c.NoiseFloorLeft
	right = rawRight - c.NoiseFloorRight + c.Offset
	return left, right
}

// ring is a fixed-capacity moving-average buffer. Pushing past
// capacity evicts the oldest sample, matching a Python deque(maxlen=N).
type ring struct {
	buf   []int
	start int
	size  int
}

func newRing(capacity int) *ring {
	if capacity < 1 {
		capacity = 1
	}
	return &ring{buf: make([]int, capacity)}
}

func (r *ring) push(v int) {
	idx := (r.start + r.size) % len(r.buf)
	if r.size < len(r.buf) {
		r.buf[idx] = v
		r.size++
	} else {
		r.buf[r.start] = v
		r.start = (r.start + 1) % len(r.buf)
	}
}

func (r *ring) average() int {
	if r.size == 0 {
		return 0
	}
	sum := 0
	for i := 0; i < r.size; i++ {
		sum += r.buf[(r.start+i)%len(r.buf)]
	}
	return sum / r.size
}

// Buffers holds the left/right moving-average rings. A capacity of 1
// disables filtering: every push immediately becomes the average,
// satisfying the idempotency invariant for single-sample buffers.
type Buffers struct {
	left  *ring
	right *ring
}

// NewBuffers builds left/right buffers of the given capacity (samples).
func NewBuffers(capacity int) *Buffers {
	return &Buffers{left: newRing(capacity), right: newRing(capacity)}
}

// Push records one calibrated (left, right) sample pair.
func (b *Buffers) Push(left, right int) {
	b.left.push(left)
	b.right.push(right)
}

// Averages returns the current moving-average left/right values.
func (b *Buffers) Averages() (left, right int) {
	return b.left.average(), b.right.average()
}

// Pipeline composes calibration and smoothing into the single call the
// control loop makes once per tick: raw counts in, filtered left/right
// RSSI out.
type Pipeline struct {
	Calibration Calibration
	Buffers     *Buffers
}

// NewPipeline builds a Pipeline with a buffer of the given sample count.
func NewPipeline(cal Calibration, bufferSize int) *Pipeline {
	return &Pipeline{Calibration: cal, Buffers: NewBuffers(bufferSize)}
}

// Sample applies calibration, pushes into the moving-average buffers,
// and returns the filtered left/right values.
func (p *Pipeline) Sample(rawLeft, rawRight int) (left, right int) {
	calLeft, calRight := p.Calibration.Calibrate(rawLeft, rawRight)
	p.Buffers.Push(calLeft, calRight)
	return p.Buffers.Averages()
}
