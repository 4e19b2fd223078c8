package pcm

import (
	"encoding/binary"
	"math"
)

// Scale multiplies every little-endian int16 sample in data by
// volume/100, in place, clamping to the int16 range. A volume of 0 or 100
// leaves data untouched; a trailing odd byte is ignored.
func Scale(data []byte, volume int) {
	if volume <= 0 || volume == 100 {
		return
	}
	gain := float64(volume) / 100
	for i := 0; i+1 < len(data); i += 2 {
		s := float64(int16(binary.LittleEndian.Uint16(data[i:])))
		v := math.Round(s * gain)
		switch {
		case v > math.MaxInt16:
			v = math.MaxInt16
		case v < math.MinInt16:
			v = math.MinInt16
		}
		binary.LittleEndian.PutUint16(data[i:], uint16(int16(v)))
	}
}
