package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Canonical format the offline decoder accepts.
const (
	CanonicalChannels = 1
	CanonicalBitDepth = 16
)

// CanonicalAudio is normalized PCM: mono, 16-bit signed little-endian
// samples at a fixed rate.
type CanonicalAudio struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Samples    []byte
}

// DurationMS reports the audio length in milliseconds.
func (a CanonicalAudio) DurationMS() int64 {
	if a.SampleRate <= 0 {
		return 0
	}
	return int64(len(a.Samples)/2) * 1000 / int64(a.SampleRate)
}

// EncodeWAV writes 16-bit PCM as a WAV stream.
func EncodeWAV(ws io.WriteSeeker, pcm []byte, sampleRate, channels int) error {
	if len(pcm)%2 != 0 {
		return fmt.Errorf("pcm payload not aligned")
	}
	buffer := &gaudio.IntBuffer{Format: &gaudio.Format{NumChannels: channels, SampleRate: sampleRate}}
	samples := make([]int, len(pcm)/2)
	for i := 0; i < len(samples); i++ {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	buffer.Data = samples

	enc := wav.NewEncoder(ws, sampleRate, CanonicalBitDepth, channels, 1)
	if err := enc.Write(buffer); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}

// WriteWAVFile writes 16-bit PCM to path as a WAV file.
func WriteWAVFile(path string, pcm []byte, sampleRate, channels int) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav file: %w", err)
	}
	defer file.Close()
	return EncodeWAV(file, pcm, sampleRate, channels)
}

// readWAV decodes a WAV file into 16-bit little-endian PCM, reporting
// the source format.
func readWAV(path string) (pcm []byte, sampleRate, channels, bitDepth int, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, 0, fmt.Errorf("open wav file: %w", err)
	}
	defer file.Close()

	dec := wav.NewDecoder(file)
	if !dec.IsValidFile() {
		return nil, 0, 0, 0, fmt.Errorf("not a valid wav file: %s", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, 0, 0, fmt.Errorf("decode wav: %w", err)
	}

	sampleRate = buf.Format.SampleRate
	channels = buf.Format.NumChannels
	bitDepth = int(dec.BitDepth)

	pcm = make([]byte, len(buf.Data)*2)
	for i, sample := range buf.Data {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(sample)))
	}
	return pcm, sampleRate, channels, bitDepth, nil
}
