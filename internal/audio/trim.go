package audio

import (
	"context"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/mdouchement/logger"
)

// Tolerances under which a pad is considered untrimmed.
const (
	TrimInThresholdMs  = 50
	TrimOutThresholdMs = 200
)

// NeedsTrim reports whether the play range [startMs, endMs] differs enough
// from a source of durationMs to be worth re-encoding.
func NeedsTrim(startMs, endMs, durationMs float64) bool {
	return startMs > TrimInThresholdMs || durationMs-endMs > TrimOutThresholdMs
}

// SampleRange converts a millisecond range to the frame range [start, end).
func SampleRange(startMs, endMs float64, sampleRate, frames int) (start, end int) {
	start = int(math.Floor(startMs / 1000 * float64(sampleRate)))
	end = int(math.Floor(endMs / 1000 * float64(sampleRate)))
	if end > frames {
		end = frames
	}
	return start, end
}

// Slice copies the frames of buf between startMs and endMs into a new buffer
// and returns it with its duration in milliseconds.
func Slice(buf *goaudio.IntBuffer, startMs, endMs float64) (*goaudio.IntBuffer, float64, error) {
	if Frames(buf) == 0 {
		return nil, 0, &DecodeError{Reason: "empty buffer"}
	}

	rate := buf.Format.SampleRate
	channels := buf.Format.NumChannels
	start, end := SampleRange(startMs, endMs, rate, Frames(buf))
	if start < 0 || end <= start {
		return nil, 0, &DecodeError{Reason: "empty trim range"}
	}

	data := make([]int, (end-start)*channels)
	copy(data, buf.Data[start*channels:end*channels])

	sliced := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: channels,
			SampleRate:  rate,
		},
		Data:           data,
		SourceBitDepth: buf.SourceBitDepth,
	}
	return sliced, float64(end-start) / float64(rate) * 1000, nil
}

// A Result is a trimmed and re-encoded sample.
type Result struct {
	Data       []byte
	DurationMs float64
	Format     Format
	// Fallback is true when a lossy source had to be written as WAV.
	Fallback bool
}

// A Transcoder trims samples and re-encodes them.
type Transcoder struct {
	lossy Encoder
	log   logger.Logger
}

// NewTranscoder returns a Transcoder using lossy for lossy sources.
// A nil lossy encoder always falls back to WAV.
func NewTranscoder(lossy Encoder, log logger.Logger) *Transcoder {
	return &Transcoder{
		lossy: lossy,
		log:   log.WithPrefix("[transcode]"),
	}
}

// Trim decodes src, keeps [startMs, endMs) and re-encodes the slice.
// An empty format is detected from src. Only decoding and slicing fail;
// encoding problems are absorbed by the WAV fallback.
func (t *Transcoder) Trim(ctx context.Context, src []byte, startMs, endMs float64, format Format) (*Result, error) {
	buf, detected, err := Decode(src)
	if err != nil {
		return nil, err
	}
	if format == FormatUnknown {
		format = detected
	}

	sliced, duration, err := Slice(buf, startMs, endMs)
	if err != nil {
		if derr, ok := err.(*DecodeError); ok {
			derr.Format = format
		}
		return nil, err
	}

	result := &Result{DurationMs: duration}

	if format.Lossy() && t.lossy != nil {
		data, err := t.lossy.Encode(ctx, sliced)
		if err == nil {
			result.Data = data
			result.Format = t.lossy.Format()
			return result, nil
		}
		t.log.Infof("lossy encode failed, falling back to wav: %v", err)
	}

	data, err := EncodeWAV(sliced)
	if err != nil {
		return nil, &DecodeError{Format: format, Reason: "wav encode", Err: err}
	}
	result.Data = data
	result.Format = FormatWAV
	result.Fallback = format.Lossy()
	return result, nil
}
