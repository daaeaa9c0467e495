package models

// EmergencyContact is a directory entry surfaced on dashboards. An empty
// Region marks a global contact included for every user.
type EmergencyContact struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
	Role        string `json:"role"` // e.g. police, fire, hospital
	Priority    int    `json:"priority"`
	Region      string `json:"region,omitempty"`
}
