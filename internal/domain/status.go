package domain

// StatusClass is the canonical label a raw status code maps to.
type StatusClass string

const (
	StatusPicked  StatusClass = "picked"
	StatusShipped StatusClass = "shipped"
	StatusUnknown StatusClass = "unknown"
)

// StatusMapping maps raw export status codes (e.g. "ASH", "SHP") to their
// canonical class. Unmapped codes classify as StatusUnknown and are passed
// through aggregation untouched.
type StatusMapping map[string]StatusClass

// DefaultStatusMapping covers the two codes the warehouse export emits.
func DefaultStatusMapping() StatusMapping {
	return StatusMapping{
		"ASH": StatusPicked,
		"SHP": StatusShipped,
	}
}

// Classify returns the canonical class for a raw status code.
func (m StatusMapping) Classify(code string) StatusClass {
	if class, ok := m[code]; ok {
		return class
	}
	return StatusUnknown
}
