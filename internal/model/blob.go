package model

// A Kind is the family of a stored binary.
type Kind string

// Blob kinds.
const (
	KindAudio Kind = "audio"
	KindImage Kind = "image"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindAudio || k == KindImage
}

// BlobKey returns the storage key of the blob `id' of the given kind.
func BlobKey(kind Kind, id string) string {
	return string(kind) + "_" + id
}

// A Blob describes a binary stored in the blob store.
// The bytes themselves live in a raw bucket under the same key.
type Blob struct {
	Base `json:",inline" storm:"inline"`

	OwnerID  string `json:"owner_id" storm:"index"`
	Kind     Kind   `json:"kind"     storm:"index"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
}

// LedgerID is the identifier of the single quota ledger record.
const LedgerID = "quota"

// A Ledger tracks the cumulative bytes of image blobs.
type Ledger struct {
	ID         string `json:"id" storm:"id"`
	ImageBytes int64  `json:"image_bytes"`
}
