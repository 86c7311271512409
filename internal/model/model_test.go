package model_test

import (
	"testing"

	"github.com/mdouchement/padbank/internal/model"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func valid() model.Pad {
	return model.Pad{
		Volume:      0.8,
		StartTimeMs: 100,
		EndTimeMs:   900,
		FadeInMs:    100,
		FadeOutMs:   200,
	}
}

func TestPadValidate(t *testing.T) {
	p := valid()
	assert.NoError(t, p.Validate(1000))
	assert.NoError(t, p.Validate(0), "unknown durations skip the source bound")

	cases := []struct {
		name   string
		mutate func(p *model.Pad)
	}{
		{"volume", func(p *model.Pad) { p.Volume = 1.1 }},
		{"pitch", func(p *model.Pad) { p.Pitch = -13 }},
		{"negative start", func(p *model.Pad) { p.StartTimeMs = -1 }},
		{"empty range", func(p *model.Pad) { p.StartTimeMs = 900 }},
		{"beyond source", func(p *model.Pad) { p.EndTimeMs = 1001 }},
		{"negative fade", func(p *model.Pad) { p.FadeOutMs = -1 }},
		{"long fades", func(p *model.Pad) { p.FadeInMs = 700 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := valid()
			tc.mutate(&p)
			assert.True(t, errors.Is(p.Validate(1000), model.ErrInvalidPad))
		})
	}
}

func TestPadNormalize(t *testing.T) {
	p := model.Pad{
		Volume:      3,
		Pitch:       40,
		StartTimeMs: -50,
		EndTimeMs:   400,
		FadeInMs:    300,
		FadeOutMs:   500,
	}
	p.Normalize()

	assert.Equal(t, 1.0, p.Volume)
	assert.Equal(t, float64(model.MaxPitch), p.Pitch)
	assert.Equal(t, 0.0, p.StartTimeMs)
	assert.Equal(t, model.TriggerToggle, p.TriggerMode)
	assert.Equal(t, model.PlaybackOnce, p.PlaybackMode)
	assert.InDelta(t, 150, p.FadeInMs, 1e-9)
	assert.InDelta(t, 250, p.FadeOutMs, 1e-9)
	assert.NoError(t, p.Validate(400))
}

func TestFitFades(t *testing.T) {
	p := model.Pad{FadeInMs: 100, FadeOutMs: 100}
	model.FitFades(&p, 1000)
	assert.Equal(t, 100.0, p.FadeInMs, "fitting fades are untouched")

	model.FitFades(&p, 100)
	assert.InDelta(t, 50, p.FadeInMs, 1e-9)
	assert.InDelta(t, 50, p.FadeOutMs, 1e-9)

	model.FitFades(&p, 0)
	assert.Zero(t, p.FadeInMs)
	assert.Zero(t, p.FadeOutMs)
}

func TestBankOrigins(t *testing.T) {
	bank := &model.Bank{}
	bank.ID = "local"
	assert.Equal(t, []string{"local"}, bank.OriginIDs())
	assert.Equal(t, "local", bank.OriginID())

	bank.SourceBankID = "source"
	assert.Equal(t, []string{"local", "source"}, bank.OriginIDs())
	assert.Equal(t, "source", bank.OriginID())

	bank.Metadata = &model.BankMetadata{BankID: "registry"}
	assert.Equal(t, []string{"local", "source", "registry"}, bank.OriginIDs())
	assert.Equal(t, "registry", bank.OriginID())
	assert.True(t, bank.Metadata.DatabaseBacked())
}

func TestBankPad(t *testing.T) {
	bank := &model.Bank{Pads: []model.Pad{{ID: "a"}, {ID: "b"}}}
	assert.Equal(t, 1, bank.Pad("b"))
	assert.Equal(t, -1, bank.Pad("c"))
}

func TestPadRecord(t *testing.T) {
	note := 36
	p := valid()
	p.ID = "source"
	p.Name = "kick"
	p.MidiNote = &note

	record := model.NewPadRecord(p)
	assert.Empty(t, record.Audio)

	copied := record.Pad("local")
	assert.Equal(t, "local", copied.ID)
	assert.Equal(t, "kick", copied.Name)
	assert.Equal(t, 36, *copied.MidiNote)
	assert.Equal(t, p.EndTimeMs, copied.EndTimeMs)
}
