package app

import (
	"encoding/json"
	"os"

	"github.com/rrisinglight/trackerd/rssi"
)

// calibrationRecord is the optional persisted calibration record
// spec.md §6 allows: noise floors and the derived RSSI offset, plus
// the time they were captured. No third-party serialization library
// is warranted for a four-field record this small — see DESIGN.md.
type calibrationRecord struct {
	NoiseFloorLeft  int     `json:"noise_floor_left"`
	NoiseFloorRight int     `json:"noise_floor_right"`
	RssiOffset      int     `json:"rssi_offset"`
	TimestampS      float64 `json:"timestamp_s"`
}

// LoadCalibration reads a calibration JSON record from path, if
// present. A missing file is not an error: the core simply starts
// uncalibrated, matching spec.md's "persisted state: none required".
func LoadCalibration(path string) (rssi.Calibration, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return rssi.Calibration{}, false, nil
		}
		return rssi.Calibration{}, false, err
	}

	var rec calibrationRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return rssi.Calibration{}, false, err
	}
	return rssi.Calibration{
		NoiseFloorLeft:  rec.NoiseFloorLeft,
		NoiseFloorRight: rec.NoiseFloorRight,
		Offset:          rec.RssiOffset,
	}, true, nil
}

// SaveCalibration writes cal to path as the JSON record spec.md §6
// describes, stamped with timestampS (caller-supplied since this
// package never calls time.Now() directly, keeping persistence
// testable with a fixed clock).
func SaveCalibration(path string, cal rssi.Calibration, timestampS float64) error {
	rec := calibrationRecord{
		NoiseFloorLeft:  cal.NoiseFloorLeft,
		NoiseFloorRight: cal.NoiseFloorRight,
		RssiOffset:      cal.Offset,
		TimestampS:      timestampS,
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
