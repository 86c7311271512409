package model

// A CachedKey is a derived container key remembered for a user.
type CachedKey struct {
	Base `json:",inline" storm:"inline"`

	UserID string `json:"user_id" storm:"index"`
	BankID string `json:"bank_id"`
	Key    []byte `json:"key"`
}

// CachedKeyID returns the identifier of the key of bankID cached for userID.
func CachedKeyID(userID, bankID string) string {
	return userID + ":" + bankID
}

// An AdminBank is a bank registered in the local admin registry.
type AdminBank struct {
	Base `json:",inline" storm:"inline"`

	Title       string `json:"title"`
	Description string `json:"description"`
	Color       string `json:"color"`
	CreatedBy   string `json:"created_by"`
}

// A Grant allows a user to decrypt an admin bank.
type Grant struct {
	Base `json:",inline" storm:"inline"`

	UserID string `json:"user_id" storm:"index"`
	BankID string `json:"bank_id" storm:"index"`
}

// GrantID returns the identifier of the grant of bankID to userID.
func GrantID(userID, bankID string) string {
	return userID + ":" + bankID
}
