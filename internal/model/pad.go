package model

import (
	"math"

	"github.com/pkg/errors"
)

// Trigger modes understood by the playback engine.
const (
	TriggerToggle  = "toggle"
	TriggerHold    = "hold"
	TriggerStutter = "stutter"
	TriggerUnmute  = "unmute"
)

// Playback modes understood by the playback engine.
const (
	PlaybackOnce    = "once"
	PlaybackLoop    = "loop"
	PlaybackStopper = "stopper"
)

// Pitch bounds in semitones.
const (
	MinPitch = -12
	MaxPitch = 12
)

// A Pad is one audio sample plus its playback configuration.
// AudioRef and ImageRef are blob identifiers, not storage keys.
type Pad struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	AudioRef     string  `json:"audio_ref"`
	ImageRef     string  `json:"image_ref,omitempty"`
	Color        string  `json:"color"`
	TriggerMode  string  `json:"trigger_mode"`
	PlaybackMode string  `json:"playback_mode"`
	Volume       float64 `json:"volume"`
	StartTimeMs  float64 `json:"start_time_ms"`
	EndTimeMs    float64 `json:"end_time_ms"`
	FadeInMs     float64 `json:"fade_in_ms"`
	FadeOutMs    float64 `json:"fade_out_ms"`
	Pitch        float64 `json:"pitch"`
	Position     int     `json:"position"`
	ShortcutKey  string  `json:"shortcut_key,omitempty"`
	MidiNote     *int    `json:"midi_note,omitempty"`
	MidiCC       *int    `json:"midi_cc,omitempty"`
}

// ErrInvalidPad is returned when a pad breaks one of its range invariants.
var ErrInvalidPad = errors.New("invalid pad")

// Validate checks the pad invariants against the duration of its source audio.
func (p *Pad) Validate(sourceDurationMs float64) error {
	switch {
	case p.Volume < 0 || p.Volume > 1:
		return errors.Wrapf(ErrInvalidPad, "volume %v out of [0,1]", p.Volume)
	case p.Pitch < MinPitch || p.Pitch > MaxPitch:
		return errors.Wrapf(ErrInvalidPad, "pitch %v out of [%d,%d]", p.Pitch, MinPitch, MaxPitch)
	case p.StartTimeMs < 0:
		return errors.Wrapf(ErrInvalidPad, "negative start %v", p.StartTimeMs)
	case p.StartTimeMs >= p.EndTimeMs:
		return errors.Wrapf(ErrInvalidPad, "start %v not before end %v", p.StartTimeMs, p.EndTimeMs)
	case sourceDurationMs > 0 && p.EndTimeMs > sourceDurationMs:
		return errors.Wrapf(ErrInvalidPad, "end %v beyond source duration %v", p.EndTimeMs, sourceDurationMs)
	case p.FadeInMs < 0 || p.FadeOutMs < 0:
		return errors.Wrap(ErrInvalidPad, "negative fade")
	case p.FadeInMs+p.FadeOutMs > p.EndTimeMs-p.StartTimeMs:
		return errors.Wrapf(ErrInvalidPad, "fades %v+%v longer than play range", p.FadeInMs, p.FadeOutMs)
	}
	return nil
}

// Normalize clamps the pad configuration into its valid ranges.
// It is applied to pads coming from foreign containers.
func (p *Pad) Normalize() {
	p.Volume = clamp(p.Volume, 0, 1)
	p.Pitch = clamp(p.Pitch, MinPitch, MaxPitch)
	p.StartTimeMs = math.Max(0, p.StartTimeMs)
	if p.TriggerMode == "" {
		p.TriggerMode = TriggerToggle
	}
	if p.PlaybackMode == "" {
		p.PlaybackMode = PlaybackOnce
	}
	FitFades(p, p.EndTimeMs-p.StartTimeMs)
}

// FitFades scales the fades down so that they fit in span milliseconds.
func FitFades(p *Pad, span float64) {
	p.FadeInMs = math.Max(0, p.FadeInMs)
	p.FadeOutMs = math.Max(0, p.FadeOutMs)

	total := p.FadeInMs + p.FadeOutMs
	if span <= 0 {
		p.FadeInMs, p.FadeOutMs = 0, 0
		return
	}
	if total > span {
		ratio := span / total
		p.FadeInMs *= ratio
		p.FadeOutMs *= ratio
	}
}

func clamp(v, min, max float64) float64 {
	return math.Min(math.Max(v, min), max)
}
