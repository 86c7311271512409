package archive

import (
	"encoding/json"

	"github.com/mdouchement/padbank/internal/model"
)

func parseManifest(payload []byte) (*model.Manifest, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, &FormatError{Reason: ManifestEntry + " is not a JSON object", Err: err}
	}

	if raw := fields["name"]; len(raw) == 0 || raw[0] != '"' {
		return nil, &FormatError{Reason: ManifestEntry + ": name must be a string"}
	}
	var pads []json.RawMessage
	if err := json.Unmarshal(fields["pads"], &pads); err != nil || pads == nil {
		return nil, &FormatError{Reason: ManifestEntry + ": pads must be an array"}
	}

	var manifest model.Manifest
	if err := json.Unmarshal(payload, &manifest); err != nil {
		return nil, &FormatError{Reason: ManifestEntry + ": malformed", Err: err}
	}
	if manifest.Pads == nil {
		manifest.Pads = []model.PadRecord{}
	}
	return &manifest, nil
}

// metadata mirrors model.BankMetadata with optional flags.
// Absent transferable and exportable flags default to true.
type metadata struct {
	Password     *bool  `json:"password"`
	Transferable *bool  `json:"transferable"`
	Exportable   *bool  `json:"exportable"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Color        string `json:"color"`
	BankID       string `json:"bankId"`
}

func parseMetadata(payload []byte) (*model.BankMetadata, error) {
	var m metadata
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, &FormatError{Reason: MetadataEntry + ": malformed", Err: err}
	}

	return &model.BankMetadata{
		Password:     flag(m.Password, false),
		Transferable: flag(m.Transferable, true),
		Exportable:   flag(m.Exportable, true),
		Title:        m.Title,
		Description:  m.Description,
		Color:        m.Color,
		BankID:       m.BankID,
	}, nil
}

func flag(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
