package model

import "time"

// ManifestVersion is the version written in exported manifests.
const ManifestVersion = 1

// A Manifest describes a bank inside an archive container.
// Asset fields hold paths relative to the container root.
type Manifest struct {
	Version      int         `json:"version"`
	ExportedAt   time.Time   `json:"exportedAt"`
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	DefaultColor string      `json:"defaultColor"`
	CreatedAt    *time.Time  `json:"createdAt,omitempty"`
	SortOrder    int         `json:"sortOrder"`
	Pads         []PadRecord `json:"pads"`
}

// A PadRecord is the manifest form of a Pad.
type PadRecord struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Audio        string  `json:"audio,omitempty"`
	Image        string  `json:"image,omitempty"`
	Color        string  `json:"color"`
	TriggerMode  string  `json:"triggerMode"`
	PlaybackMode string  `json:"playbackMode"`
	Volume       float64 `json:"volume"`
	StartTimeMs  float64 `json:"startTimeMs"`
	EndTimeMs    float64 `json:"endTimeMs"`
	FadeInMs     float64 `json:"fadeInMs"`
	FadeOutMs    float64 `json:"fadeOutMs"`
	Pitch        float64 `json:"pitch"`
	Position     int     `json:"position"`
	ShortcutKey  string  `json:"shortcutKey,omitempty"`
	MidiNote     *int    `json:"midiNote,omitempty"`
	MidiCC       *int    `json:"midiCC,omitempty"`
}

// NewPadRecord returns the manifest record of p without asset paths.
func NewPadRecord(p Pad) PadRecord {
	return PadRecord{
		ID:           p.ID,
		Name:         p.Name,
		Color:        p.Color,
		TriggerMode:  p.TriggerMode,
		PlaybackMode: p.PlaybackMode,
		Volume:       p.Volume,
		StartTimeMs:  p.StartTimeMs,
		EndTimeMs:    p.EndTimeMs,
		FadeInMs:     p.FadeInMs,
		FadeOutMs:    p.FadeOutMs,
		Pitch:        p.Pitch,
		Position:     p.Position,
		ShortcutKey:  p.ShortcutKey,
		MidiNote:     p.MidiNote,
		MidiCC:       p.MidiCC,
	}
}

// Pad returns the pad described by the record under the given local id.
func (r PadRecord) Pad(id string) Pad {
	return Pad{
		ID:           id,
		Name:         r.Name,
		Color:        r.Color,
		TriggerMode:  r.TriggerMode,
		PlaybackMode: r.PlaybackMode,
		Volume:       r.Volume,
		StartTimeMs:  r.StartTimeMs,
		EndTimeMs:    r.EndTimeMs,
		FadeInMs:     r.FadeInMs,
		FadeOutMs:    r.FadeOutMs,
		Pitch:        r.Pitch,
		Position:     r.Position,
		ShortcutKey:  r.ShortcutKey,
		MidiNote:     r.MidiNote,
		MidiCC:       r.MidiCC,
	}
}
