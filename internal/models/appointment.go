package models

import "time"

// Appointment is the only persisted entity. It is never mutated after creation.
type Appointment struct {
	ID        string     `json:"id,omitempty"`
	Datetime  time.Time  `json:"datetime"`
	Name      string     `json:"name"`
	Phone     string     `json:"phone"`
	Services  []string   `json:"services"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// Service is an entry of the shop's catalog offered on the booking form.
type Service struct {
	ID              string  `yaml:"id" json:"id"`
	Name            string  `yaml:"name" json:"name"`
	Price           float64 `yaml:"price" json:"price"`
	DurationMinutes int     `yaml:"duration_minutes" json:"duration_minutes,omitempty"`
}
