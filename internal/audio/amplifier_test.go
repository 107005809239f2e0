package audio

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/hammamikhairi/apexcoach/internal/logger"
)

func wavFromSamples(samples []int16) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}
	return encodeWAV(pcm, SampleRate, ChannelCount)
}

func samplesFromWAV(t *testing.T, data []byte) []int16 {
	t.Helper()
	pcm, _, _, err := decodeWAV(data)
	if err != nil {
		t.Fatalf("decoding wav: %v", err)
	}
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return samples
}

func TestMultiplier(t *testing.T) {
	tests := []struct {
		volume float64
		want   float64
	}{
		{0.0, 0.0},
		{0.5, 0.9},
		{1.0, 1.8},
		{1.5, 3.05},
		{2.0, 4.3},
	}

	for _, tt := range tests {
		if got := Multiplier(tt.volume); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Multiplier(%.2f) = %v, want %v", tt.volume, got, tt.want)
		}
	}
}

func TestAmplifyUnityPassthrough(t *testing.T) {
	amp := NewAmplifier(logger.New(logger.LevelOff, nil))
	clip := wavFromSamples([]int16{1000, -1000, 32000})

	for _, mult := range []float64{0.0, 0.5, 1.0} {
		got := amp.Amplify(clip, mult)
		if !bytes.Equal(got, clip) {
			t.Errorf("Amplify with mult=%.1f altered the audio", mult)
		}
	}
}

func TestAmplifyBoostsSamples(t *testing.T) {
	amp := NewAmplifier(logger.New(logger.LevelOff, nil))
	clip := wavFromSamples([]int16{1000, -2000, 500})

	got := samplesFromWAV(t, amp.Amplify(clip, 1.8))
	want := []int16{1800, -3600, 900}
	if len(got) != len(want) {
		t.Fatalf("got %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if diff := int(got[i]) - int(want[i]); diff < -2 || diff > 2 {
			t.Errorf("sample %d = %d, want about %d", i, got[i], want[i])
		}
	}
}

func TestAmplifyClipsBelowFullScale(t *testing.T) {
	amp := NewAmplifier(logger.New(logger.LevelOff, nil))
	clip := wavFromSamples([]int16{30000, -30000, 500})

	got := samplesFromWAV(t, amp.Amplify(clip, 4.3))
	limit := softClipCeiling*float64(math.MaxInt16) + 1
	for i, s := range got {
		if math.Abs(float64(s)) > limit {
			t.Errorf("sample %d = %d exceeds clip ceiling %.0f", i, s, limit)
		}
	}
	// Loud samples clip, quiet ones still get the full gain.
	if got[0] < 31000 {
		t.Errorf("clipped sample = %d, want near ceiling", got[0])
	}
	if diff := int(got[2]) - 2150; diff < -2 || diff > 2 {
		t.Errorf("quiet sample = %d, want about 2150", got[2])
	}
}

func TestAmplifyExtremeMultiplierCapped(t *testing.T) {
	amp := NewAmplifier(logger.New(logger.LevelOff, nil))
	clip := wavFromSamples([]int16{1000})

	// 1000x is +60 dB; the fallback pipeline caps at +20 dB (10x).
	got := samplesFromWAV(t, amp.Amplify(clip, 1000))
	if diff := int(got[0]) - 10000; diff < -2 || diff > 2 {
		t.Errorf("capped sample = %d, want about 10000", got[0])
	}
}

func TestAmplifyUndecodableReturnsOriginal(t *testing.T) {
	amp := NewAmplifier(logger.New(logger.LevelOff, nil))
	clip := []byte("definitely not audio data")

	if got := amp.Amplify(clip, 2.0); !bytes.Equal(got, clip) {
		t.Errorf("undecodable input was altered: %q", got)
	}
}

func TestWAVRoundTrip(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	data := encodeWAV(pcm, SampleRate, ChannelCount)

	gotPCM, rate, channels, err := decodeWAV(data)
	if err != nil {
		t.Fatalf("decodeWAV: %v", err)
	}
	if rate != SampleRate || channels != ChannelCount {
		t.Errorf("got %d Hz/%d ch, want %d Hz/%d ch", rate, channels, SampleRate, ChannelCount)
	}
	if !bytes.Equal(gotPCM, pcm) {
		t.Errorf("pcm round trip mismatch: got %v, want %v", gotPCM, pcm)
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	if _, _, _, err := decodeWAV([]byte("RIFFxxxxJUNK")); err == nil {
		t.Error("expected error for non-WAVE data")
	}
	if _, _, _, err := decodeWAV([]byte("short")); err == nil {
		t.Error("expected error for truncated data")
	}
}
