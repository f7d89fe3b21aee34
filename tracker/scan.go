package tracker

import "time"

// runScan executes the full angular boresight scan synchronously
// (spec.md §4.6 Scan, §5: "cancellation is checked at each step").
// Because Tick already dispatched into this mode, the scan polls the
// command bus itself between steps so an incoming command can abort
// it early, exactly as an external mode change would from any other
// state.
func (t *Core) runScan() {
	speed := t.cfg.Servo.ScanSpeed
	accel := t.cfg.Servo.MoveAccel

	t.mu.Lock()
	left, right := t.leftLimit, t.rightLimit
	t.mu.Unlock()

	if err := t.moveTo(left, speed, accel); err != nil {
		t.log("tracker: scan move-to-start failed: %v\n", err)
		t.setMode(ModeManual)
		return
	}

	var samples []ScanSample
	position := left

	for position <= right {
		if t.drainedAbort() {
			return
		}

		timeout := time.Duration(t.cfg.Servo.ScanWaitIdleTimeoutMs) * time.Millisecond
		if err := t.servo.WaitIdle(timeout, 10*time.Millisecond, t.clock.Sleep); err != nil {
			t.log("tracker: scan wait-idle failed at position %d: %v\n", position, err)
		}

		sumLeft, sumRight := 0, 0
		n := t.cfg.Scan.SamplesPerStep
		for i := 0; i < n; i++ {
			if t.drainedAbort() {
				return
			}
			rawLeft, err := t.adc.ReadChannel(t.cfg.ADC.LeftChannel)
			if err != nil {
				t.log("tracker: scan ADC read error (left): %v\n", err)
				continue
			}
			rawRight, err := t.adc.ReadChannel(t.cfg.ADC.RightChannel)
			if err != nil {
				t.log("tracker: scan ADC read error (right): %v\n", err)
				continue
			}
			l, r := t.pipeline.Sample(rawLeft, rawRight)
			sumLeft += l
			sumRight += r
			if i < n-1 {
				t.clock.Sleep(time.Duration(t.cfg.Scan.SampleIntervalMs) * time.Millisecond)
			}
		}

		avgLeft, avgRight := sumLeft/n, sumRight/n
		samples = append(samples, ScanSample{
			Position:   position,
			Angle:      t.angleMap.PositionToAngle(position),
			LeftRssi:   avgLeft,
			RightRssi:  avgRight,
			TotalRssi:  avgLeft + avgRight,
			Difference: avgLeft - avgRight,
		})

		position += t.cfg.Servo.ScanStepUnits
		if position <= right {
			if err := t.moveTo(position, speed, accel); err != nil {
				t.log("tracker: scan step move failed at %d: %v\n", position, err)
				t.setMode(ModeManual)
				return
			}
		}
	}

	t.finishScan(samples)
}

// drainedAbort consumes one pending command, applying it, and reports
// whether the scan should stop because the mode is no longer Scan.
func (t *Core) drainedAbort() bool {
	if cmd, ok := t.bus.TakePending(); ok {
		t.applyCommand(cmd)
	}
	return t.currentMode() != ModeScan
}

func (t *Core) finishScan(samples []ScanSample) {
	result := &ScanResult{
		Complete:   true,
		TimestampS: float64(t.clock.Now().UnixNano()) / 1e9,
		Data:       samples,
	}

	if len(samples) < t.cfg.Scan.MinSamples {
		result.Complete = false
		t.mu.Lock()
		t.scanResult = result
		t.mu.Unlock()
		t.log("tracker: %v: collected %d samples, need %d\n", ErrScanUnderfilled, len(samples), t.cfg.Scan.MinSamples)
		t.setMode(ModeManual)
		t.Publish("scan_complete", *result)
		return
	}

	best := selectBestSample(samples, t.cfg.Scan.SmoothingWindow, t.cfg.Scan.MinTotalRSSI)
	result.BestPosition = best.Position
	result.BestAngle = best.Angle
	result.MinDifference = best.Difference

	t.mu.Lock()
	t.scanResult = result
	t.mu.Unlock()

	if err := t.moveTo(best.Position, t.cfg.Servo.MoveSpeed, t.cfg.Servo.MoveAccel); err != nil {
		t.log("tracker: scan final move failed: %v\n", err)
	}
	t.setMode(ModeAuto)
	t.Publish("scan_complete", *result)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// selectBestSample picks the samples entry that minimizes |L-R|,
// resolving the two Open Questions SPEC_FULL.md §9 binds to these
// config knobs:
//   - smoothingWindow > 0 averages |difference| over that many
//     neighbors on each side before comparing, instead of comparing
//     the raw per-step value (0 disables smoothing, the canonical
//     antenna_tracker.py behavior).
//   - minTotalRSSI > 0 excludes any sample whose TotalRssi doesn't
//     exceed it from consideration; if every sample is excluded, the
//     gate is ignored so a scan always produces a result.
func selectBestSample(samples []ScanSample, smoothingWindow, minTotalRSSI int) ScanSample {
	smoothed := make([]int, len(samples))
	for i := range samples {
		if smoothingWindow <= 0 {
			smoothed[i] = absInt(samples[i].Difference)
			continue
		}
		lo := i - smoothingWindow
		if lo < 0 {
			lo = 0
		}
		hi := i + smoothingWindow
		if hi > len(samples)-1 {
			hi = len(samples) - 1
		}
		sum, n := 0, 0
		for j := lo; j <= hi; j++ {
			sum += absInt(samples[j].Difference)
			n++
		}
		smoothed[i] = sum / n
	}

	eligible := func(i int) bool {
		return minTotalRSSI <= 0 || samples[i].TotalRssi > minTotalRSSI
	}

	bestIdx := -1
	for i := range samples {
		if !eligible(i) {
			continue
		}
		if bestIdx == -1 || smoothed[i] < smoothed[bestIdx] {
			bestIdx = i
		}
	}
	if bestIdx == -1 {
		// Gate excluded every sample; fall back to the ungated minimum
		// rather than leaving the scan without a best position.
		for i := range samples {
			if bestIdx == -1 || smoothed[i] < smoothed[bestIdx] {
				bestIdx = i
			}
		}
	}
	return samples[bestIdx]
}

// runCalibrateMin samples raw ADC counts for Calibration.DurationSeconds
// at Calibration.SampleRateHz, deriving noise floors and the RSSI
// offset (spec.md §4.6 CalibrateMin). Aborts early on any mode command.
func (t *Core) runCalibrateMin() {
	sumLeft, sumRight, n := t.calibrationSample(func(rawLeft, rawRight int) (int, int) {
		return rawLeft, rawRight
	}, ModeCalibrateMin)
	if t.currentMode() != ModeCalibrateMin {
		return // aborted by an external command; that command already set the mode
	}
	if n == 0 {
		t.setMode(ModeManual)
		return
	}

	meanLeft := sumLeft / n
	meanRight := sumRight / n

	t.mu.Lock()
	t.calibration.NoiseFloorLeft = meanLeft
	t.calibration.NoiseFloorRight = meanRight
	t.calibration.Offset = meanLeft - meanRight
	t.pipeline.Calibration = t.calibration
	t.mu.Unlock()

	t.setMode(ModeManual)
}

// runCalibrateMax samples through the RssiPipeline (current
// calibration applied) to find the expected peak signal levels,
// recording them as rssi_max_left/rssi_max_right (spec.md §4.6).
func (t *Core) runCalibrateMax() {
	sumLeft, sumRight, n := t.calibrationSample(func(rawLeft, rawRight int) (int, int) {
		return t.pipeline.Sample(rawLeft, rawRight)
	}, ModeCalibrateMax)
	if t.currentMode() != ModeCalibrateMax {
		return
	}
	if n > 0 {
		meanLeft := sumLeft / n
		meanRight := sumRight / n
		t.log("tracker: calibrate_max means: left=%d right=%d\n", meanLeft, meanRight)

		t.mu.Lock()
		t.calibration.RssiMaxLeft = meanLeft
		t.calibration.RssiMaxRight = meanRight
		t.mu.Unlock()
	}
	t.setMode(ModeManual)
}

// calibrationSample runs the shared DurationSeconds@SampleRateHz
// raw-read loop used by both calibration passes, applying transform to
// each raw (L,R) pair and accumulating sums. n counts samples actually
// collected, so an external mode change mid-pass still leaves the
// caller a partial mean; only n==0 means nothing was collected at all.
func (t *Core) calibrationSample(transform func(rawLeft, rawRight int) (int, int), expectedMode Mode) (sumLeft, sumRight, n int) {
	interval := time.Second / time.Duration(t.cfg.Calibration.SampleRateHz)
	total := t.cfg.Calibration.SampleRateHz * t.cfg.Calibration.DurationSeconds

	for i := 0; i < total; i++ {
		if cmd, ok := t.bus.TakePending(); ok {
			t.applyCommand(cmd)
		}
		if t.currentMode() != expectedMode {
			return sumLeft, sumRight, n
		}

		rawLeft, err := t.adc.ReadChannel(t.cfg.ADC.LeftChannel)
		if err != nil {
			t.log("tracker: calibration ADC read error (left): %v\n", err)
			t.clock.Sleep(interval)
			continue
		}
		rawRight, err := t.adc.ReadChannel(t.cfg.ADC.RightChannel)
		if err != nil {
			t.log("tracker: calibration ADC read error (right): %v\n", err)
			t.clock.Sleep(interval)
			continue
		}

		l, r := transform(rawLeft, rawRight)
		sumLeft += l
		sumRight += r
		n++

		if i < total-1 {
			t.clock.Sleep(interval)
		}
	}
	return sumLeft, sumRight, n
}
