package model

// BankMetadata carries the access-control facts of a container.
// It is stored next to the manifest so it survives manifest shape changes.
// Color and BankID are empty when the container does not define them.
type BankMetadata struct {
	Password     bool   `json:"password"`
	Transferable bool   `json:"transferable"`
	Exportable   bool   `json:"exportable"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Color        string `json:"color,omitempty"`
	BankID       string `json:"bankId,omitempty"`
}

// DatabaseBacked reports whether the bank is registered in the admin registry.
func (m *BankMetadata) DatabaseBacked() bool {
	return m != nil && m.BankID != ""
}
