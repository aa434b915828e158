package types

import "time"

// User mirrors the account table. Password material never leaves the server;
// responses are shaped by controller DTOs.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Name         string    `gorm:"size:255" json:"name"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	IsActive     bool      `gorm:"not null;default:true" json:"-"`
	IsStaff      bool      `gorm:"not null;default:false" json:"-"`
	CreatedAt    time.Time `json:"-"`
}

// AuthToken is a short-lived login token. Only the SHA-256 digest of the
// plaintext is stored; presenting an expired token deletes it.
type AuthToken struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"index;not null"`
	Digest    string    `gorm:"size:64;uniqueIndex;not null"`
	CreatedAt time.Time
	ExpiresAt time.Time `gorm:"index;not null"`
}

// APIKey is a long-lived ingest credential, one per user, presented via the
// X-Api-Key header or inside MQTT telemetry. Stored as digest only.
type APIKey struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"uniqueIndex;not null"`
	Digest    string    `gorm:"size:64;uniqueIndex;not null"`
	CreatedAt time.Time
}
