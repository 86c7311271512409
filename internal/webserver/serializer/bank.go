package serializer

import (
	"strings"

	"github.com/mdouchement/padbank/internal/model"
	"github.com/mdouchement/padbank/internal/service"
)

// TextBanks returns the text serialized form of the given models.
func TextBanks(banks []*model.Bank) string {
	sl := make([]string, 0, len(banks))

	for _, bank := range banks {
		sl = append(sl, bank.ID+"\t"+bank.Name)
	}

	return strings.Join(sl, "\n")
}

// Banks returns the serialized form of the given models.
func Banks(banks []*model.Bank) []map[string]interface{} {
	sl := make([]map[string]interface{}, 0, len(banks))

	for _, bank := range banks {
		sl = append(sl, BankSummary(bank))
	}

	return sl
}

// BankSummary returns the serialized form of the given model without its pads.
func BankSummary(bank *model.Bank) map[string]interface{} {
	return map[string]interface{}{
		"id":             bank.ID,
		"name":           bank.Name,
		"default_color":  bank.DefaultColor,
		"pad_count":      len(bank.Pads),
		"sort_order":     bank.SortOrder,
		"is_admin_bank":  bank.IsAdminBank,
		"transferable":   service.CanTransferFromBank(bank),
		"exportable":     service.CanExportBank(bank),
		"source_bank_id": bank.SourceBankID,
		"created_at":     bank.CreatedAt,
	}
}

// Bank returns the serialized form of the given model.
func Bank(bank *model.Bank) map[string]interface{} {
	m := BankSummary(bank)
	m["pads"] = Pads(bank.Pads)
	if bank.Metadata != nil {
		m["bank_metadata"] = bank.Metadata
	}
	return m
}

// Pads returns the serialized form of the given models.
func Pads(pads []model.Pad) []map[string]interface{} {
	sl := make([]map[string]interface{}, 0, len(pads))

	for _, pad := range pads {
		sl = append(sl, Pad(pad))
	}

	return sl
}

// Pad returns the serialized form of the given model.
func Pad(pad model.Pad) map[string]interface{} {
	m := map[string]interface{}{
		"id":            pad.ID,
		"name":          pad.Name,
		"color":         pad.Color,
		"trigger_mode":  pad.TriggerMode,
		"playback_mode": pad.PlaybackMode,
		"volume":        pad.Volume,
		"start_time_ms": pad.StartTimeMs,
		"end_time_ms":   pad.EndTimeMs,
		"fade_in_ms":    pad.FadeInMs,
		"fade_out_ms":   pad.FadeOutMs,
		"pitch":         pad.Pitch,
		"position":      pad.Position,
		"audio_url":     "/v1/blobs/" + string(model.KindAudio) + "/" + pad.AudioRef,
	}
	if pad.ImageRef != "" {
		m["image_url"] = "/v1/blobs/" + string(model.KindImage) + "/" + pad.ImageRef
	}
	if pad.ShortcutKey != "" {
		m["shortcut_key"] = pad.ShortcutKey
	}
	if pad.MidiNote != nil {
		m["midi_note"] = *pad.MidiNote
	}
	if pad.MidiCC != nil {
		m["midi_cc"] = *pad.MidiCC
	}
	return m
}
