// Package roles defines the core entities for visitor role detection.
// A role is a belief about what a visitor is trying to do on the
// marketplace, derived from cached preferences and behavioral signals.
package roles

// Role is one of the fixed visitor categories the detector can assign.
type Role string

const (
	RoleBuyer        Role = "buyer"
	RoleSeller       Role = "seller"
	RoleProfessional Role = "professional"
	RoleInvestor     Role = "investor"
	RoleUnknown      Role = "unknown"
)

// Priority orders roles for tie-breaking when scores are equal.
// Lower index wins.
var Priority = []Role{RoleBuyer, RoleSeller, RoleProfessional, RoleInvestor}

// IsValid reports whether r is one of the assignable role categories.
func (r Role) IsValid() bool {
	switch r {
	case RoleBuyer, RoleSeller, RoleProfessional, RoleInvestor:
		return true
	}
	return false
}

// ParseRole converts a raw string into a Role, returning RoleUnknown
// for anything outside the fixed set.
func ParseRole(s string) Role {
	r := Role(s)
	if r.IsValid() {
		return r
	}
	return RoleUnknown
}

// Detection method tags carried on every resolved profile.
const (
	MethodUnknown    = "unknown"
	MethodDurable    = "durable_cache"
	MethodSession    = "session_cache"
	MethodBehavioral = "behavioral_analysis"
	MethodExplicit   = "explicit_selection"
	MethodError      = "error"
)

// MergedMethod tags a profile whose confidence came from blending a
// cached belief with fresh behavioral analysis.
func MergedMethod(base string) string {
	if base == "" {
		base = MethodUnknown
	}
	return base + "_+_behavioral"
}
