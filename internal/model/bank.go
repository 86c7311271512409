package model

// A Bank is a named collection of pads, the unit of export and import.
type Bank struct {
	Base `json:",inline" storm:"inline"`

	Name         string `json:"name"`
	DefaultColor string `json:"default_color"`
	Pads         []Pad  `json:"pads"`
	SortOrder    int    `json:"sort_order"     storm:"index"`
	IsAdminBank  bool   `json:"is_admin_bank"`
	Transferable bool   `json:"transferable"`
	Exportable   bool   `json:"exportable"`
	// SourceBankID is the origin identity of an imported bank.
	SourceBankID string        `json:"source_bank_id,omitempty" storm:"index"`
	Metadata     *BankMetadata `json:"bank_metadata,omitempty"`
}

// OriginIDs returns every identity under which the bank may have been shared.
// These are the values compared when an import checks for duplicates.
func (b *Bank) OriginIDs() []string {
	ids := make([]string, 0, 3)
	if b.ID != "" {
		ids = append(ids, b.ID)
	}
	if b.SourceBankID != "" {
		ids = append(ids, b.SourceBankID)
	}
	if b.Metadata != nil && b.Metadata.BankID != "" {
		ids = append(ids, b.Metadata.BankID)
	}
	return ids
}

// OriginID returns the identity written in exported manifests.
func (b *Bank) OriginID() string {
	if b.Metadata != nil && b.Metadata.BankID != "" {
		return b.Metadata.BankID
	}
	if b.SourceBankID != "" {
		return b.SourceBankID
	}
	return b.ID
}

// Pad returns the index of the pad with the given id, or -1.
func (b *Bank) Pad(id string) int {
	for i := range b.Pads {
		if b.Pads[i].ID == id {
			return i
		}
	}
	return -1
}
