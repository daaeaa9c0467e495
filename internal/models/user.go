package models

// UserProfile is owned by the identity subsystem; the aggregator and
// dispatcher only ever read it.
type UserProfile struct {
	ID          string
	Name        string
	Email       string
	Location    Location
	RadiusKm    float64 // proximity radius for alerting
	Preferences []HazardType
	Region      string // emergency-contact directory region
}

func (u *UserProfile) Prefers(t HazardType) bool {
	for _, p := range u.Preferences {
		if p == t {
			return true
		}
	}
	return false
}
