package audio

import (
	"encoding/binary"
	"fmt"

	"github.com/zaf/g711"
)

// DecodeG711 expands 8-bit mu-law or A-law telephony audio to PCM16 samples.
func DecodeG711(data []byte, format Format) ([]int16, error) {
	var pcm []byte
	switch format {
	case FormatMulaw:
		pcm = g711.DecodeUlaw(data)
	case FormatAlaw:
		pcm = g711.DecodeAlaw(data)
	default:
		return nil, fmt.Errorf("not a G.711 format: %s", format)
	}

	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return samples, nil
}
