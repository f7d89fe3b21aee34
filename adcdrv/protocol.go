package adcdrv

import "fmt"

// ADS1115-class dual-channel ADC register map and config-word bit
// layout, grounded on the reef-pi ads1115tds reference driver's
// register/gain/mux constants, read here over gobot's i2c.Connection
// (its raw Read/Write pair: pointer byte, then MSB-first data) instead
// of a raw i2c.Bus, to match dlsniper-fmradio's driver style.
const (
	regConversion = 0x00
	regConfig     = 0x01

	configOsSingle   = 0x8000
	configModeSingle = 0x0100

	configDataRate860 = 0x00E0

	configComparatorDisabled = 0x0003 // queue disabled, traditional, active-low, non-latching
)

// Mux bits for single-ended AINx vs GND.
var muxForChannel = map[int]uint16{
	0: 0x4000,
	1: 0x5000,
	2: 0x6000,
	3: 0x7000,
}

// gainConfig maps the human-readable PGA identifier (as carried in
// config.ADC.Gain) to its config-register bits and full-scale volts.
var gainConfig = map[string]struct {
	bits   uint16
	fsVolt float64
}{
	"6.144V": {0x0000, 6.144},
	"4.096V": {0x0200, 4.096},
	"2.048V": {0x0400, 2.048},
	"1.024V": {0x0600, 1.024},
	"0.512V": {0x0800, 0.512},
	"0.256V": {0x0A00, 0.256},
}

func lookupGain(label string) (uint16, float64, error) {
	g, ok := gainConfig[label]
	if !ok {
		return 0, 0, fmt.Errorf("adcdrv: unknown gain %q", label)
	}
	return g.bits, g.fsVolt, nil
}

func lookupMux(channel int) (uint16, error) {
	m, ok := muxForChannel[channel]
	if !ok {
		return 0, fmt.Errorf("adcdrv: channel %d out of range [0,3]", channel)
	}
	return m, nil
}

// countsToUnsigned clamps the signed 16-bit conversion result into the
// 15-bit unsigned count space the tracking pipeline expects: negative
// readings (below the single-ended rail) saturate to 0.
func countsToUnsigned(raw int16) int {
	if raw < 0 {
		return 0
	}
	return int(raw)
}
