// Package audio decodes, trims and re-encodes pad samples.
//
// Sources are decoded to an interleaved PCM buffer (go-audio IntBuffer) at
// their own sample rate. Trimming slices whole frames, then the slice is
// re-encoded: lossy sources go through the lossy Encoder and fall back to
// 16-bit WAV whenever it fails, lossless sources are written as WAV.
package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// A Format identifies an encoded audio format.
type Format string

// Supported formats.
const (
	FormatUnknown Format = ""
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
)

// Lossy reports whether the format is a lossy compressed format.
func (f Format) Lossy() bool {
	return f == FormatMP3
}

// Detect sniffs the format from the leading bytes of data.
func Detect(data []byte) Format {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return FormatWAV
	case len(data) >= 3 && string(data[0:3]) == "ID3":
		return FormatMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return FormatMP3
	}
	return FormatUnknown
}

// DecodeError is returned when a source cannot be decoded or sliced.
type DecodeError struct {
	Format Format
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	format := string(e.Format)
	if format == "" {
		format = "unknown"
	}
	if e.Err != nil {
		return fmt.Sprintf("audio decode (%s): %s: %v", format, e.Reason, e.Err)
	}
	return fmt.Sprintf("audio decode (%s): %s", format, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decode decodes data into an interleaved PCM buffer.
func Decode(data []byte) (*goaudio.IntBuffer, Format, error) {
	format := Detect(data)
	switch format {
	case FormatWAV:
		buf, err := decodeWAV(data)
		return buf, format, err
	case FormatMP3:
		buf, err := decodeMP3(data)
		return buf, format, err
	}
	return nil, format, &DecodeError{Reason: "unsupported format"}
}

// DurationMs returns the decoded duration of data in milliseconds.
func DurationMs(data []byte) (float64, error) {
	buf, _, err := Decode(data)
	if err != nil {
		return 0, err
	}
	return BufferDurationMs(buf), nil
}

// Frames returns the number of sample frames held by buf.
func Frames(buf *goaudio.IntBuffer) int {
	if buf == nil || buf.Format == nil || buf.Format.NumChannels == 0 {
		return 0
	}
	return len(buf.Data) / buf.Format.NumChannels
}

// BufferDurationMs returns the duration of buf in milliseconds.
func BufferDurationMs(buf *goaudio.IntBuffer) float64 {
	if buf == nil || buf.Format == nil || buf.Format.SampleRate == 0 {
		return 0
	}
	return float64(Frames(buf)) / float64(buf.Format.SampleRate) * 1000
}

func decodeWAV(data []byte) (*goaudio.IntBuffer, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, &DecodeError{Format: FormatWAV, Reason: "invalid file"}
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, &DecodeError{Format: FormatWAV, Reason: "pcm", Err: err}
	}
	if buf.Format == nil || buf.Format.NumChannels == 0 || buf.Format.SampleRate == 0 {
		return nil, &DecodeError{Format: FormatWAV, Reason: "missing format chunk"}
	}
	if buf.SourceBitDepth == 0 {
		buf.SourceBitDepth = int(d.BitDepth)
	}
	return buf, nil
}

// go-mp3 always yields 16-bit little endian stereo.
const mp3Channels = 2

func decodeMP3(data []byte) (*goaudio.IntBuffer, error) {
	d, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Format: FormatMP3, Reason: "header", Err: err}
	}

	pcm, err := io.ReadAll(d)
	if err != nil {
		return nil, &DecodeError{Format: FormatMP3, Reason: "frames", Err: err}
	}

	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[2*i:])))
	}
	// Drop a dangling half frame.
	samples = samples[:len(samples)-len(samples)%mp3Channels]

	return &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: mp3Channels,
			SampleRate:  d.SampleRate(),
		},
		Data:           samples,
		SourceBitDepth: 16,
	}, nil
}
