// Package audio sniffs, decodes and converts the audio payloads the service
// receives and produces.
package audio

import "bytes"

type Format string

const (
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
	FormatOgg     Format = "ogg"
	FormatWebM    Format = "webm"
	FormatFLAC    Format = "flac"
	FormatMulaw   Format = "mulaw"
	FormatAlaw    Format = "alaw"
	FormatUnknown Format = "unknown"
)

// Sniff guesses the container from leading magic bytes. Headerless G.711 is
// indistinguishable from noise and reports FormatUnknown.
func Sniff(data []byte) Format {
	switch {
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return FormatWAV
	case bytes.HasPrefix(data, []byte("ID3")):
		return FormatMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return FormatMP3
	case bytes.HasPrefix(data, []byte("OggS")):
		return FormatOgg
	case bytes.HasPrefix(data, []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return FormatWebM
	case bytes.HasPrefix(data, []byte("fLaC")):
		return FormatFLAC
	}
	return FormatUnknown
}

// ParseFormat maps a client-supplied name to a Format.
func ParseFormat(name string) Format {
	switch Format(name) {
	case FormatWAV, FormatMP3, FormatOgg, FormatWebM, FormatFLAC, FormatMulaw, FormatAlaw:
		return Format(name)
	case "ulaw", "pcmu":
		return FormatMulaw
	case "pcma":
		return FormatAlaw
	}
	return FormatUnknown
}
