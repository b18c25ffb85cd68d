package model

import "time"

// SensorReading is one successfully fetched sensor value. Immutable once produced.
type SensorReading struct {
	EntityID   string    `json:"entity_id"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
}
