package vtxdrv

import "fmt"

// 25-bit LSB-first bit-bang SPI protocol and frequency table for the
// RX5808-class diversity receiver module, grounded on
// original_source/skyzone.py's _send_bit/_send_25bit_lsb/set_channel.
const (
	registerASelect = 0x000110 // selects register A (sync word) before a register B write
)

// frequencyTable maps band letter -> channel (1-8, index 0-7) -> the
// complete 25-bit register-B frame word: the 20-bit synthesizer payload
// shifted above the write bit and the register address.
var frequencyTable = map[byte][8]uint32{
	'L': {0x4C131, 0x4C391, 0x4D1D1, 0x4E031, 0x4E271, 0x4F0D1, 0x4F311, 0x50171},
	'R': {0x503B1, 0x51211, 0x52051, 0x522B1, 0x530F1, 0x53351, 0x54191, 0x543F1},
	'F': {0x520D1, 0x52211, 0x52351, 0x53091, 0x531D1, 0x53311, 0x54051, 0x54191},
	'E': {0x512B1, 0x51171, 0x51031, 0x502F1, 0x541F1, 0x54331, 0x55071, 0x551B1},
	'B': {0x52071, 0x52191, 0x522D1, 0x523F1, 0x53131, 0x53251, 0x53391, 0x540B1},
	'A': {0x540B1, 0x53371, 0x53231, 0x530F1, 0x523B1, 0x52271, 0x52131, 0x513F1},
}

// Bands lists the canonical iteration order for a full band scan.
var Bands = []byte{'A', 'B', 'E', 'F', 'R', 'L'}

func lookupFrequency(band byte, channel int) (uint32, error) {
	row, ok := frequencyTable[band]
	if !ok {
		return 0, fmt.Errorf("vtxdrv: unknown band %q", string(band))
	}
	if channel < 1 || channel > 8 {
		return 0, fmt.Errorf("vtxdrv: channel %d out of range [1,8]", channel)
	}
	return row[channel-1], nil
}
