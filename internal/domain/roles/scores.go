package roles

// IndicatorScores maps each role category to its accumulated signal
// weight. Scores are non-negative.
type IndicatorScores map[Role]float64

// NewIndicatorScores returns a zeroed score vector covering every
// assignable role.
func NewIndicatorScores() IndicatorScores {
	s := make(IndicatorScores, len(Priority))
	for _, r := range Priority {
		s[r] = 0
	}
	return s
}

// Add accumulates weight toward a role. Unknown roles are ignored.
func (s IndicatorScores) Add(role Role, weight float64) {
	if role.IsValid() && weight > 0 {
		s[role] += weight
	}
}

// Top returns the highest-scoring role. Ties break by the fixed
// priority order. A zero vector yields RoleUnknown.
func (s IndicatorScores) Top() (Role, float64) {
	best := RoleUnknown
	var max float64
	for _, r := range Priority {
		if s[r] > max {
			best = r
			max = s[r]
		}
	}
	return best, max
}

// Normalize rescales the whole vector proportionally when any entry
// exceeds ceiling, preserving relative ordering while bounding growth
// from prolific actors.
func (s IndicatorScores) Normalize(ceiling float64) {
	if ceiling <= 0 {
		return
	}
	_, max := s.Top()
	if max <= ceiling {
		return
	}
	factor := ceiling / max
	for r, v := range s {
		s[r] = v * factor
	}
}

// Confidence converts a top score to a [0,1] confidence using the
// fixed normalization divisor.
func Confidence(topScore, divisor float64) float64 {
	if divisor <= 0 || topScore <= 0 {
		return 0
	}
	c := topScore / divisor
	if c > 1.0 {
		return 1.0
	}
	return c
}

// AsData renders the vector into a behavioral data blob for storage.
func (s IndicatorScores) AsData() map[string]interface{} {
	out := make(map[string]interface{}, len(s))
	for r, v := range s {
		out[string(r)] = v
	}
	return out
}
