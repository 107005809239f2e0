package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/tosone/minimp3"
)

// decodeAudio decodes MP3 or WAV bytes into 16-bit little-endian PCM.
// MP3 is tried first since that is what the synthesizer emits.
func decodeAudio(data []byte) (pcm []byte, sampleRate, channels int, err error) {
	if isWAV(data) {
		return decodeWAV(data)
	}
	dec, pcm, err := minimp3.DecodeFull(data)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decoding mp3: %w", err)
	}
	return pcm, dec.SampleRate, dec.Channels, nil
}

func isWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// decodeWAV walks the RIFF chunks for the fmt and data sections. Only
// 16-bit PCM is supported.
func decodeWAV(data []byte) (pcm []byte, sampleRate, channels int, err error) {
	if !isWAV(data) {
		return nil, 0, 0, fmt.Errorf("not a RIFF/WAVE file")
	}

	var bitsPerSample int
	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8

		if body+chunkSize > len(data) {
			chunkSize = len(data) - body
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, 0, 0, fmt.Errorf("wav fmt chunk too short (%d bytes)", chunkSize)
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			if format != 1 {
				return nil, 0, 0, fmt.Errorf("unsupported wav format %d, want PCM", format)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
		case "data":
			pcm = data[body : body+chunkSize]
		}

		offset = body + chunkSize
		// Chunks are word aligned.
		if chunkSize%2 == 1 {
			offset++
		}
	}

	if pcm == nil {
		return nil, 0, 0, fmt.Errorf("wav data chunk not found")
	}
	if sampleRate == 0 || channels == 0 {
		return nil, 0, 0, fmt.Errorf("wav fmt chunk not found")
	}
	if bitsPerSample != BitDepth {
		return nil, 0, 0, fmt.Errorf("unsupported wav bit depth %d, want %d", bitsPerSample, BitDepth)
	}
	return pcm, sampleRate, channels, nil
}

// encodeWAV wraps 16-bit little-endian PCM in a minimal RIFF/WAVE header.
func encodeWAV(pcm []byte, sampleRate, channels int) []byte {
	byteRate := sampleRate * channels * BitDepth / 8
	blockAlign := channels * BitDepth / 8

	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(BitDepth))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}
