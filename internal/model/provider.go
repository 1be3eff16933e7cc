package model

// Provider is the gym, club or trainer offering activities.
type Provider struct {
	ID      uint64   `json:"id"`      // providers.id
	Name    string   `json:"name"`    // providers.name
	Kind    *string  `json:"kind"`    // providers.kind
	Address *string  `json:"address"` // providers.address
	City    *string  `json:"city"`    // providers.city
	Lat     *float64 `json:"lat"`     // providers.lat
	Lng     *float64 `json:"lng"`     // providers.lng
}

// Sport is a catalogue entry such as padel or yoga.
type Sport struct {
	ID   uint64 `json:"id"`   // sports.id
	Name string `json:"name"` // sports.name
}

// ActivityDetail is an activity with its provider and sport, either of which
// may be absent.
type ActivityDetail struct {
	Activity Activity  `json:"activity"`
	Provider *Provider `json:"provider"`
	Sport    *Sport    `json:"sport"`
}
