package model

import "time"

type (
	// A Model is a record that can be persisted by the database layer.
	Model interface {
		GetID() string
		SetID(id string)
		GetCreatedAt() *time.Time
		SetCreatedAt(t time.Time)
		SetUpdatedAt(t time.Time)
	}

	// Base holds the columns shared by all the records.
	Base struct {
		ID        string     `json:"id"         storm:"id"`
		CreatedAt *time.Time `json:"created_at" storm:"index"`
		UpdatedAt *time.Time `json:"updated_at"`
	}
)

// GetID returns the record identifier.
func (m *Base) GetID() string {
	return m.ID
}

// SetID sets the record identifier.
func (m *Base) SetID(id string) {
	m.ID = id
}

// GetCreatedAt returns the creation date, nil if the record was never saved.
func (m *Base) GetCreatedAt() *time.Time {
	return m.CreatedAt
}

// SetCreatedAt sets the creation date.
func (m *Base) SetCreatedAt(t time.Time) {
	m.CreatedAt = &t
}

// SetUpdatedAt sets the last update date.
func (m *Base) SetUpdatedAt(t time.Time) {
	m.UpdatedAt = &t
}
