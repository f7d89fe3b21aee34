package tracker

import "time"

// autoStep implements the Auto controller's piecewise proportional
// table (spec.md §4.6, invariants 2-5): a deadband gate, a
// step/speed selection on |Δ| against RssiThreshold multiples, a sign
// rule, a per-move cooldown, and suppression of near-identical moves.
func (t *Core) autoStep() {
	t.mu.Lock()
	left, right := t.rssiLeft, t.rssiRight
	lastMove := t.lastMoveTime
	commanded := t.commanded
	t.mu.Unlock()

	delta := left - right
	absDelta := delta
	if absDelta < 0 {
		absDelta = -absDelta
	}

	if absDelta < t.cfg.Tracking.Deadband {
		return
	}

	step, speed := t.autoStepSpeed(absDelta)
	if step == 0 {
		return
	}

	if !lastMove.IsZero() && t.clock.Now().Sub(lastMove) < time.Duration(t.cfg.Tracking.CooldownMs)*time.Millisecond {
		return
	}

	target := commanded
	if delta > 0 {
		target -= step // Δ>0 means left is stronger; move toward smaller position.
	} else {
		target += step
	}

	t.mu.Lock()
	clamped := clampInt(target, t.leftLimit, t.rightLimit)
	t.mu.Unlock()

	moveDelta := clamped - commanded
	if moveDelta < 0 {
		moveDelta = -moveDelta
	}
	if moveDelta < t.cfg.Tracking.SuppressBelowUnits {
		return
	}

	_ = t.moveTo(clamped, speed, t.cfg.Servo.MoveAccel)
}

// autoStepSpeed selects (step, speed) for the given |Δ| from the
// RSSI_THRESHOLD/2T/4T table. Returns (0, 0) when |Δ| has already
// passed the DEADBAND gate but falls below RSSI_THRESHOLD, which the
// table also maps to a zero step.
func (t *Core) autoStepSpeed(absDelta int) (int, uint16) {
	threshold := t.cfg.Tracking.RssiThreshold
	switch {
	case absDelta < threshold:
		return 0, 0
	case absDelta < 2*threshold:
		return t.cfg.Tracking.StepSmall, t.cfg.Tracking.AutoSpeed
	case absDelta < 4*threshold:
		return t.cfg.Tracking.StepMedium, t.cfg.Tracking.AutoSpeed + t.cfg.Tracking.AutoSpeedDelta1
	default:
		return t.cfg.Tracking.StepLarge, t.cfg.Tracking.AutoSpeed + t.cfg.Tracking.AutoSpeedDelta2
	}
}
