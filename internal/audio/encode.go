package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/orcaman/writerseeker"
	"github.com/pkg/errors"
)

// LossyBitrate is the bitrate in kbps used for lossy re-encoding.
const LossyBitrate = 128

// An Encoder encodes a PCM buffer into a compressed format.
type Encoder interface {
	Format() Format
	Encode(ctx context.Context, buf *goaudio.IntBuffer) ([]byte, error)
}

// EncodeWAV writes buf as a PCM WAV file.
func EncodeWAV(buf *goaudio.IntBuffer) ([]byte, error) {
	if Frames(buf) == 0 {
		return nil, errors.New("encode wav: empty buffer")
	}

	depth := buf.SourceBitDepth
	switch depth {
	case 8, 16, 24, 32:
	default:
		depth = 16
	}

	// The encoder seeks back to patch the chunk sizes on Close.
	ws := &writerseeker.WriterSeeker{}
	e := wav.NewEncoder(ws, buf.Format.SampleRate, depth, buf.Format.NumChannels, 1)
	if err := e.Write(buf); err != nil {
		return nil, errors.Wrap(err, "encode wav")
	}
	if err := e.Close(); err != nil {
		return nil, errors.Wrap(err, "encode wav")
	}

	data, err := io.ReadAll(ws.Reader())
	return data, errors.Wrap(err, "encode wav")
}

//
//-----
//

// FFmpeg encodes MP3 with an external ffmpeg binary.
type FFmpeg struct {
	Binary  string
	Bitrate int
}

// NewFFmpeg returns an MP3 encoder running the given ffmpeg binary.
func NewFFmpeg(binary string) *FFmpeg {
	return &FFmpeg{
		Binary:  binary,
		Bitrate: LossyBitrate,
	}
}

// Format returns the format produced by the encoder.
func (e *FFmpeg) Format() Format {
	return FormatMP3
}

// Encode pipes buf as WAV through ffmpeg and returns the MP3 output.
func (e *FFmpeg) Encode(ctx context.Context, buf *goaudio.IntBuffer) ([]byte, error) {
	binary := strings.TrimSpace(e.Binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	bitrate := e.Bitrate
	if bitrate <= 0 {
		bitrate = LossyBitrate
	}

	input, err := EncodeWAV(buf)
	if err != nil {
		return nil, err
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary,
		"-hide_banner", "-loglevel", "error",
		"-f", "wav", "-i", "pipe:0",
		"-vn", "-codec:a", "libmp3lame", "-b:a", strconv.Itoa(bitrate)+"k",
		"-f", "mp3", "pipe:1",
	)
	cmd.Stdin = bytes.NewReader(input)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg encode: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	output := stdout.Bytes()
	if Detect(output) != FormatMP3 {
		return nil, fmt.Errorf("ffmpeg encode: unexpected output (%d bytes)", len(output))
	}
	return output, nil
}
