package tracker

import "github.com/rrisinglight/trackerd/servodrv"

// Mode is one of TrackerCore's states (spec.md §4.6).
type Mode string

const (
	ModeIdle         Mode = "idle"
	ModeManual       Mode = "manual"
	ModeAuto         Mode = "auto"
	ModeScan         Mode = "scan"
	ModeCalibrateMin Mode = "calibrate_min"
	ModeCalibrateMax Mode = "calibrate_max"
)

// ScanSample is one recorded point of an angular boresight scan.
type ScanSample struct {
	Position   int
	Angle      float64
	LeftRssi   int
	RightRssi  int
	TotalRssi  int
	Difference int
}

// ScanResult is published once an angular scan finishes (or aborts).
type ScanResult struct {
	Complete      bool
	TimestampS    float64
	BestPosition  int
	BestAngle     float64
	MinDifference int
	Data          []ScanSample
}

// VtxCell is one (band, channel) grid entry.
type VtxCell struct {
	Band    byte
	Channel int
	Rssi    int
	Filled  bool
}

// VtxGrid is the 6x8 band/channel sweep result.
type VtxGrid struct {
	Cells       map[byte][8]VtxCell
	Best        *VtxCell
	InProgress  bool
	Current     *VtxCell
}

// NewVtxGrid returns an empty grid ready for a fresh scan.
func NewVtxGrid() VtxGrid {
	return VtxGrid{Cells: make(map[byte][8]VtxCell)}
}

// cloneVtxCells deep-copies a Cells map so a Status snapshot never
// shares storage with the live grid a background VtxScan is still
// writing to.
func cloneVtxCells(cells map[byte][8]VtxCell) map[byte][8]VtxCell {
	clone := make(map[byte][8]VtxCell, len(cells))
	for band, row := range cells {
		clone[band] = row
	}
	return clone
}

// VtxState is the VTX-selection portion of a status snapshot.
type VtxState struct {
	Band        byte
	Channel     int
	FrequencyMHz int
	Initialized bool
	Error       string
}

// Status is the read-only snapshot published on every control tick
// (spec.md §6).
type Status struct {
	Mode              Mode
	Position          int
	AngleDegrees      float64
	RssiLeft          int
	RssiRight         int
	ServoMoving       bool
	ServoVoltageV     float64
	ServoTemperatureC int
	Vtx               VtxState
	VtxScan           VtxGrid
	TimestampS        float64
}

// servoStatusToReadouts adapts a servodrv.Status into the status
// snapshot's servo fields.
func servoStatusToReadouts(s servodrv.Status) (voltageV float64, tempC int, moving bool) {
	return float64(s.VoltageDv) / 10.0, s.TempC, s.Moving
}
