package model

import "time"

type ContactType string

const (
	ContactTypePrimary   ContactType = "primary"
	ContactTypeEmergency ContactType = "emergency"
	ContactTypeBloodBank ContactType = "blood_bank"
)

// EmergencyContact is a phone number that stays usable without a connection.
type EmergencyContact struct {
	Name      string      `json:"name" binding:"required"`
	Number    string      `json:"number" binding:"required"`
	Available string      `json:"available"`
	Type      ContactType `json:"type" binding:"required,oneof=primary emergency blood_bank"`
}

// DefaultEmergencyContacts is served when nothing has been cached yet.
func DefaultEmergencyContacts() []EmergencyContact {
	return []EmergencyContact{
		{Name: "LifePulse Emergency Hotline", Number: "1-800-LIFEPULSE", Available: "24/7", Type: ContactTypePrimary},
		{Name: "Local Emergency Services", Number: "108", Available: "24/7", Type: ContactTypeEmergency},
		{Name: "Blood Bank Network", Number: "+91 11 2659 7000", Available: "24/7", Type: ContactTypeBloodBank},
	}
}

// Donor is the subset of a donor profile cached for offline lookup.
type Donor struct {
	ID        int    `json:"id" binding:"required"`
	Name      string `json:"name" binding:"required"`
	BloodType string `json:"blood_type" binding:"required,bloodtype"`
	Location  string `json:"location"`
	District  string `json:"district"`
	Phone     string `json:"phone" binding:"omitempty,phone"`
	Email     string `json:"email" binding:"omitempty,email"`
	Status    string `json:"status"`
}

// Location is the last position reported by the device, kept so the request
// form can be prefilled while the GPS has no fix.
type Location struct {
	Latitude  float64   `json:"latitude" binding:"min=-90,max=90"`
	Longitude float64   `json:"longitude" binding:"min=-180,max=180"`
	Accuracy  float64   `json:"accuracy" binding:"gte=0"`
	Address   string    `json:"address,omitempty" binding:"max=255"`
	Timestamp time.Time `json:"timestamp"`
}
