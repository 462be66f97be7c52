package adaptive

// Profile is a named environment configuration. It filters which learned
// patterns qualify for snapshots; nothing from it is stored per pattern.
type Profile struct {
	Name           string  `yaml:"name" json:"name"`
	MinSuccessRate float64 `yaml:"min_success_rate" json:"minSuccessRate"`
	MaxRetries     int     `yaml:"max_retries" json:"maxRetries"`

	// RateTolerance is the tie band for ranking: success rates within
	// this distance are treated as equal and broken by recency. The 0.1
	// default is empirical.
	RateTolerance float64 `yaml:"rate_tolerance" json:"rateTolerance"`
}

// Production is strict: only well-proven patterns qualify.
func Production() Profile {
	return Profile{
		Name:           "production",
		MinSuccessRate: 0.5,
		MaxRetries:     2,
		RateTolerance:  0.1,
	}
}

// Development is permissive, so fresh patterns surface quickly.
func Development() Profile {
	return Profile{
		Name:           "development",
		MinSuccessRate: 0.2,
		MaxRetries:     3,
		RateTolerance:  0.1,
	}
}

// ProfileByName resolves a profile, defaulting to production for unknown
// names.
func ProfileByName(name string) Profile {
	switch name {
	case "development", "dev":
		return Development()
	default:
		return Production()
	}
}
