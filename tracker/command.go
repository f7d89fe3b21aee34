package tracker

import "github.com/rrisinglight/trackerd/command"

// applyCommand dispatches one drained command. Commands that change
// mode take effect immediately; ones that only move the servo do so
// inline using the servo's normal move speed/accel, matching
// original_source/antenna_tracker.py's process_command, which writes
// the servo and/or mutates app_state directly rather than queuing.
func (t *Core) applyCommand(cmd command.Command) {
	switch cmd.Kind {
	case command.Left:
		t.applyRelativeMove(-t.cfg.Servo.StepUnits)
	case command.Right:
		t.applyRelativeMove(t.cfg.Servo.StepUnits)
	case command.Home:
		t.setMode(ModeManual)
		_ = t.moveTo(t.cfg.Servo.CenterPos, t.cfg.Servo.MoveSpeed, t.cfg.Servo.MoveAccel)
	case command.Auto:
		t.setMode(ModeAuto)
	case command.Manual:
		t.setMode(ModeManual)
	case command.Scan:
		t.setMode(ModeScan)
	case command.Calibrate:
		t.setMode(ModeCalibrateMin)
	case command.CalibrateMax:
		t.setMode(ModeCalibrateMax)
	case command.SetAngle:
		t.setMode(ModeManual)
		position := t.angleMap.AngleToPosition(cmd.AngleDegrees)
		_ = t.moveTo(position, t.cfg.Servo.MoveSpeed, t.cfg.Servo.MoveAccel)
	case command.SetCenter:
		position, err := t.servo.ReadPosition()
		if err != nil {
			t.log("tracker: set_center: read position failed: %v\n", err)
			return
		}
		t.mu.Lock()
		t.cfg.Servo.CenterPos = clampInt(position, t.leftLimit, t.rightLimit)
		t.mu.Unlock()
	case command.SetLeftLimit:
		position, err := t.servo.ReadPosition()
		if err != nil {
			t.log("tracker: set_left_limit: read position failed: %v\n", err)
			return
		}
		t.mu.Lock()
		if position < t.rightLimit {
			t.leftLimit = position
			t.angleMap.LeftLimit = position
		}
		t.mu.Unlock()
	case command.SetRightLimit:
		position, err := t.servo.ReadPosition()
		if err != nil {
			t.log("tracker: set_right_limit: read position failed: %v\n", err)
			return
		}
		t.mu.Lock()
		if position > t.leftLimit {
			t.rightLimit = position
			t.angleMap.RightLimit = position
		}
		t.mu.Unlock()
	case command.VtxSet:
		t.applyVtxSet(cmd.Band, cmd.Channel)
	case command.VtxScanStart:
		t.startVtxScan(cmd.SettleMs)
	}
}

func (t *Core) applyRelativeMove(delta int) {
	t.setMode(ModeManual)
	t.mu.Lock()
	target := t.commanded + delta
	t.mu.Unlock()
	_ = t.moveTo(target, t.cfg.Servo.MoveSpeed, t.cfg.Servo.MoveAccel)
}

func (t *Core) setMode(m Mode) {
	t.mu.Lock()
	t.mode = m
	t.mu.Unlock()
}

func (t *Core) applyVtxSet(band byte, channel int) {
	t.vtxMu.Lock()
	defer t.vtxMu.Unlock()

	if err := t.vtx.SetChannel(band, channel); err != nil {
		t.vtxState = VtxState{Band: band, Channel: channel, Initialized: false, Error: err.Error()}
		t.log("tracker: vtx set failed: %v\n", err)
		return
	}
	t.vtxState = VtxState{Band: band, Channel: channel, Initialized: true}
}
