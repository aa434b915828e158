package types

import "time"

// All weather objects are owned by a user; queries are always scoped to the
// owner, so another user's object id behaves like a missing id.

type Location struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	UserID uint   `gorm:"index;not null" json:"-"`
	Name   string `gorm:"size:255;not null" json:"name"`
}

type SensorType struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	UserID uint   `gorm:"index;not null" json:"-"`
	Name   string `gorm:"size:255;not null" json:"name"`
	Unit   string `gorm:"size:255" json:"unit"`
}

type Sensor struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	UserID       uint   `gorm:"index;not null" json:"-"`
	Name         string `gorm:"size:255;not null" json:"name"`
	Description  string `gorm:"type:text" json:"description"`
	SensorTypeID *uint  `gorm:"index" json:"sensor_type"`
	LocationID   *uint  `gorm:"index" json:"location"`
}

type Measurement struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"-"`
	SensorID  uint      `gorm:"index;not null" json:"sensor"`
	Value     float64   `json:"value"`
	Timestamp time.Time `gorm:"index;not null" json:"timestamp"`
}

// Telemetry is the MQTT ingest message published by stations.
type Telemetry struct {
	APIKey    string    `json:"api_key"`
	SensorID  uint      `json:"sensor_id"`
	Value     *float64  `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}
