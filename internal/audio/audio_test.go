package audio_test

import (
	"context"
	"io"
	"math"
	"math/rand"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/mdouchement/logger"
	"github.com/mdouchement/padbank/internal/audio"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quiet() logger.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logger.WrapLogrus(log)
}

func tone(t *testing.T, rate, channels int, ms float64) []byte {
	t.Helper()

	frames := int(ms / 1000 * float64(rate))
	data := make([]int, frames*channels)
	for i := 0; i < frames; i++ {
		v := int(8000 * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
		for c := 0; c < channels; c++ {
			data[i*channels+c] = v
		}
	}

	wav, err := audio.EncodeWAV(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	})
	require.NoError(t, err)
	return wav
}

type encoder struct {
	output []byte
	err    error
	calls  int
}

func (e *encoder) Format() audio.Format {
	return audio.FormatMP3
}

func (e *encoder) Encode(context.Context, *goaudio.IntBuffer) ([]byte, error) {
	e.calls++
	return e.output, e.err
}

func TestDetect(t *testing.T) {
	assert.Equal(t, audio.FormatWAV, audio.Detect(tone(t, 8000, 1, 10)))
	assert.Equal(t, audio.FormatMP3, audio.Detect([]byte("ID3\x04\x00")))
	assert.Equal(t, audio.FormatMP3, audio.Detect([]byte{0xFF, 0xFB, 0x90, 0x00}))
	assert.Equal(t, audio.FormatUnknown, audio.Detect([]byte("OggS")))
	assert.Equal(t, audio.FormatUnknown, audio.Detect(nil))

	assert.True(t, audio.FormatMP3.Lossy())
	assert.False(t, audio.FormatWAV.Lossy())
}

func TestDecodeWAV(t *testing.T) {
	buf, format, err := audio.Decode(tone(t, 8000, 2, 4000))
	require.NoError(t, err)
	assert.Equal(t, audio.FormatWAV, format)
	assert.Equal(t, 2, buf.Format.NumChannels)
	assert.Equal(t, 8000, buf.Format.SampleRate)
	assert.Equal(t, 32000, audio.Frames(buf))
	assert.InDelta(t, 4000, audio.BufferDurationMs(buf), 0.001)
}

func TestDecodeUnsupported(t *testing.T) {
	_, _, err := audio.Decode([]byte("definitely not audio"))

	var derr *audio.DecodeError
	assert.True(t, errors.As(err, &derr))
}

func TestDurationMs(t *testing.T) {
	duration, err := audio.DurationMs(tone(t, 44100, 1, 1500))
	assert.NoError(t, err)
	assert.InDelta(t, 1500, duration, 1000.0/44100)
}

func TestNeedsTrim(t *testing.T) {
	assert.False(t, audio.NeedsTrim(0, 4000, 4000))
	assert.False(t, audio.NeedsTrim(50, 3800, 4000))
	assert.True(t, audio.NeedsTrim(51, 4000, 4000))
	assert.True(t, audio.NeedsTrim(0, 3799, 4000))
	assert.True(t, audio.NeedsTrim(500, 2500, 4000))
}

func TestSampleRange(t *testing.T) {
	start, end := audio.SampleRange(500, 2500, 8000, 32000)
	assert.Equal(t, 4000, start)
	assert.Equal(t, 20000, end)

	start, end = audio.SampleRange(0, 5000, 8000, 32000)
	assert.Equal(t, 0, start)
	assert.Equal(t, 32000, end, "end is clamped to the buffer")
}

func TestSliceMath(t *testing.T) {
	const rate = 44100
	buf, _, err := audio.Decode(tone(t, rate, 2, 3000))
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		startMs := rng.Float64() * 2900
		endMs := startMs + 1 + rng.Float64()*(3000-startMs-1)

		sliced, duration, err := audio.Slice(buf, startMs, endMs)
		require.NoError(t, err)

		start, end := audio.SampleRange(startMs, endMs, rate, audio.Frames(buf))
		assert.Equal(t, end-start, audio.Frames(sliced))
		assert.InDelta(t, float64(end-start)/rate*1000, duration, 1e-9)
		assert.InDelta(t, endMs-startMs, duration, 1000.0/rate+1e-9)
	}
}

func TestSliceCopiesChannels(t *testing.T) {
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{NumChannels: 2, SampleRate: 1000},
		Data:   []int{0, 100, 1, 101, 2, 102, 3, 103, 4, 104},
	}

	sliced, duration, err := audio.Slice(buf, 1, 4)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 101, 2, 102, 3, 103}, sliced.Data)
	assert.InDelta(t, 3, duration, 1e-9)

	// The source is untouched.
	sliced.Data[0] = 42
	assert.Equal(t, 1, buf.Data[2])
}

func TestSliceEmptyRange(t *testing.T) {
	buf, _, err := audio.Decode(tone(t, 8000, 1, 1000))
	require.NoError(t, err)

	_, _, err = audio.Slice(buf, 2000, 3000)
	var derr *audio.DecodeError
	assert.True(t, errors.As(err, &derr))

	_, _, err = audio.Slice(buf, 500, 500)
	assert.True(t, errors.As(err, &derr))
}

func TestTrimLossless(t *testing.T) {
	lossy := &encoder{output: []byte("ID3 mp3")}
	transcoder := audio.NewTranscoder(lossy, quiet())

	result, err := transcoder.Trim(context.Background(), tone(t, 8000, 2, 4000), 500, 2500, audio.FormatUnknown)
	require.NoError(t, err)
	assert.Equal(t, audio.FormatWAV, result.Format)
	assert.False(t, result.Fallback)
	assert.InDelta(t, 2000, result.DurationMs, 1e-9)
	assert.Equal(t, 0, lossy.calls, "lossless sources are never lossy encoded")

	duration, err := audio.DurationMs(result.Data)
	assert.NoError(t, err)
	assert.InDelta(t, 2000, duration, 1e-9)
}

func TestTrimLossyEncodes(t *testing.T) {
	lossy := &encoder{output: []byte("ID3 mp3")}
	transcoder := audio.NewTranscoder(lossy, quiet())

	result, err := transcoder.Trim(context.Background(), tone(t, 8000, 1, 1000), 100, 600, audio.FormatMP3)
	require.NoError(t, err)
	assert.Equal(t, audio.FormatMP3, result.Format)
	assert.Equal(t, []byte("ID3 mp3"), result.Data)
	assert.InDelta(t, 500, result.DurationMs, 1e-9)
	assert.Equal(t, 1, lossy.calls)
}

func TestTrimFallsBackToWAV(t *testing.T) {
	lossy := &encoder{err: errors.New("no encoder")}
	transcoder := audio.NewTranscoder(lossy, quiet())

	result, err := transcoder.Trim(context.Background(), tone(t, 8000, 1, 1000), 100, 600, audio.FormatMP3)
	require.NoError(t, err)
	assert.Equal(t, audio.FormatWAV, result.Format)
	assert.True(t, result.Fallback)
	assert.Equal(t, audio.FormatWAV, audio.Detect(result.Data))
}

func TestTrimWithMissingFFmpeg(t *testing.T) {
	transcoder := audio.NewTranscoder(audio.NewFFmpeg("/nonexistent/ffmpeg"), quiet())

	result, err := transcoder.Trim(context.Background(), tone(t, 8000, 1, 1000), 100, 600, audio.FormatMP3)
	require.NoError(t, err)
	assert.True(t, result.Fallback)
}

func TestTrimDecodeError(t *testing.T) {
	transcoder := audio.NewTranscoder(nil, quiet())

	_, err := transcoder.Trim(context.Background(), []byte("garbage"), 0, 100, audio.FormatUnknown)
	var derr *audio.DecodeError
	assert.True(t, errors.As(err, &derr))
}
