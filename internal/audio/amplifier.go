package audio

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/tosone/minimp3"

	"github.com/hammamikhairi/apexcoach/internal/logger"
)

// Multiplier converts the user-facing volume preference into the gain
// applied to samples. The resting volume of 1.0 maps to 1.8 because the
// synthesizer output is quiet next to sim engine noise.
func Multiplier(volume float64) float64 {
	switch {
	case volume == 1.0:
		return 1.8
	case volume > 1.0:
		return 1.8 + (volume-1.0)*2.5
	default:
		return volume * 1.8
	}
}

// Amplifier boosts encoded coaching audio before it reaches the sink.
type Amplifier struct {
	log *logger.Logger
}

func NewAmplifier(log *logger.Logger) *Amplifier {
	return &Amplifier{log: log}
}

// Amplify scales the encoded audio by mult, clipping peaks just below
// full scale. Multipliers at or below 1.0 return the input bytes
// untouched. Failures degrade to the original audio rather than erroring;
// an unamplified cue still coaches, silence does not.
func (a *Amplifier) Amplify(data []byte, mult float64) []byte {
	if mult <= 1.0 || len(data) == 0 {
		return data
	}

	out, err := a.amplifyMP3(data, mult)
	if err == nil {
		return out
	}
	a.log.Debug("amplifier: mp3 path failed: %v", err)

	out, err = a.amplifyWAV(data, mult)
	if err == nil {
		return out
	}
	a.log.Warn("amplifier: wav fallback failed (%v), playing original audio", err)
	return data
}

// amplifyMP3 is the primary path for the synthesizer's MP3 output. The
// result is re-encoded as WAV for the sink.
func (a *Amplifier) amplifyMP3(data []byte, mult float64) ([]byte, error) {
	dec, pcm, err := minimp3.DecodeFull(data)
	if err != nil {
		return nil, fmt.Errorf("decoding mp3: %w", err)
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("no mp3 frames decoded")
	}
	return encodeWAV(scalePCM(pcm, mult), dec.SampleRate, dec.Channels), nil
}

// amplifyWAV applies the multiplier as a decibel gain, capped at
// maxGainDB so a corrupt preference file can never blow out the output.
func (a *Amplifier) amplifyWAV(data []byte, mult float64) ([]byte, error) {
	pcm, rate, channels, err := decodeWAV(data)
	if err != nil {
		return nil, err
	}
	gainDB := 20 * math.Log10(mult)
	if gainDB > maxGainDB {
		gainDB = maxGainDB
	}
	return encodeWAV(scalePCM(pcm, math.Pow(10, gainDB/20)), rate, channels), nil
}

// scalePCM multiplies each 16-bit sample, clamping to softClipCeiling of
// full scale.
func scalePCM(pcm []byte, mult float64) []byte {
	limit := softClipCeiling * float64(math.MaxInt16)
	out := make([]byte, len(pcm)&^1)
	for i := 0; i+1 < len(pcm); i += 2 {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i:i+2]))) * mult
		if s > limit {
			s = limit
		} else if s < -limit {
			s = -limit
		}
		binary.LittleEndian.PutUint16(out[i:i+2], uint16(int16(s)))
	}
	return out
}
