package anglemap

import "testing"

func testMap() Map {
	return Map{LeftLimit: 1100, RightLimit: 2700, SpanDegrees: 146.0}
}

func TestPositionToAngleEndpoints(t *testing.T) {
	m := testMap()
	if got := m.PositionToAngle(1100); got != 0 {
		t.Fatalf("expected 0 at left limit, got %v", got)
	}
	if got := m.PositionToAngle(2700); got != 146.0 {
		t.Fatalf("expected 146.0 at right limit, got %v", got)
	}
}

func TestPositionToAngleClampsOutOfRange(t *testing.T) {
	m := testMap()
	if got := m.PositionToAngle(500); got != 0 {
		t.Fatalf("expected clamp to 0, got %v", got)
	}
	if got := m.PositionToAngle(9000); got != 146.0 {
		t.Fatalf("expected clamp to 146.0, got %v", got)
	}
}

func TestAngleToPositionClampsOutOfRange(t *testing.T) {
	m := testMap()
	if got := m.AngleToPosition(-10); got != 1100 {
		t.Fatalf("expected clamp to left limit, got %v", got)
	}
	if got := m.AngleToPosition(500); got != 2700 {
		t.Fatalf("expected clamp to right limit, got %v", got)
	}
}

// TestRoundTripIdentityWithinOneUnit covers invariant 6:
// angle_to_position(position_to_angle(p)) must equal p within +-1 unit.
func TestRoundTripIdentityWithinOneUnit(t *testing.T) {
	m := testMap()
	for p := m.LeftLimit; p <= m.RightLimit; p += 7 {
		angle := m.PositionToAngle(p)
		back := m.AngleToPosition(angle)
		diff := back - p
		if diff < -1 || diff > 1 {
			t.Fatalf("position %d -> angle %v -> position %d, diff %d exceeds +-1", p, angle, back, diff)
		}
	}
}

func TestPositionToAngleRoundsToOneDecimal(t *testing.T) {
	m := testMap()
	angle := m.PositionToAngle(1500)
	// (1500-1100)/1600 * 146 = 36.5, should already be exact to 1 decimal.
	if angle != 36.5 {
		t.Fatalf("expected 36.5, got %v", angle)
	}
}
