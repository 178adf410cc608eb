// Package services provides role detection orchestration
package services

import (
	"strings"
	"time"

	"github.com/arzani/roledetect-go/internal/domain/behavior"
	"github.com/arzani/roledetect-go/internal/domain/roles"
	"github.com/arzani/roledetect-go/internal/infrastructure/observability/logging"
	"github.com/arzani/roledetect-go/pkg/config"
)

// pageIndicator maps a path substring to its role affinity. Weight feeds
// the score vector; the confidence boost applied on a final role match
// is the flat PageAffinityBoost.
type pageIndicator struct {
	path   string
	role   roles.Role
	weight float64
}

// Ordered so more specific paths are checked before shorter prefixes.
var pageIndicators = []pageIndicator{
	{"/buyer-dashboard", roles.RoleBuyer, 2.5},
	{"/seller-questionnaire", roles.RoleSeller, 2.5},
	{"/buyer-landing", roles.RoleBuyer, 2.0},
	{"/seller-landing", roles.RoleSeller, 2.0},
	{"/submit-business", roles.RoleSeller, 2.0},
	{"/professional", roles.RoleProfessional, 2.0},
	{"/business-valuation", roles.RoleSeller, 1.8},
	{"/marketplace-landing", roles.RoleBuyer, 1.5},
	{"/saved-businesses", roles.RoleBuyer, 1.5},
}

// Checked in order; the first matching keyword wins so scoring stays
// deterministic for queries that mention several roles.
var searchKeywords = []struct {
	keyword string
	role    roles.Role
}{
	{"buy", roles.RoleBuyer},
	{"acquire", roles.RoleBuyer},
	{"purchase", roles.RoleBuyer},
	{"sell", roles.RoleSeller},
	{"valuation", roles.RoleSeller},
	{"worth", roles.RoleSeller},
	{"invest", roles.RoleInvestor},
	{"roi", roles.RoleInvestor},
	{"return", roles.RoleInvestor},
}

var clickElements = map[string]roles.Role{
	"contact-seller": roles.RoleBuyer,
	"view-business":  roles.RoleBuyer,
	"list-business":  roles.RoleSeller,
	"get-valuation":  roles.RoleSeller,
}

const (
	searchSignalWeight = 1.5
	clickSignalWeight  = 1.0
	formSignalWeight   = 2.0

	// time_spent events shorter than this carry no signal
	dwellThreshold = 30 * time.Second
)

// ScoringService converts a behavioral event log into a role score
// vector. Scoring is deterministic: identical event sequences always
// produce identical vectors.
type ScoringService struct {
	scoreCeiling float64
	scoreDivisor float64
	logger       *logging.ChanneledLogger
}

// NewScoringService creates a new scoring service
func NewScoringService(logger *logging.ChanneledLogger) *ScoringService {
	return &ScoringService{
		scoreCeiling: config.ScoreCeiling,
		scoreDivisor: config.ScoreDivisor,
		logger:       logger,
	}
}

// Score sums per-event role contributions and applies ceiling
// normalization. Malformed events contribute nothing.
func (s *ScoringService) Score(events []*behavior.Event) roles.IndicatorScores {
	start := time.Now()
	scores := roles.NewIndicatorScores()

	for _, event := range events {
		if event == nil || !event.Type.IsValid() {
			continue
		}
		role, weight := s.contribution(event)
		if role == roles.RoleUnknown || weight <= 0 {
			continue
		}
		multiplier := event.Weight
		if multiplier <= 0 {
			multiplier = 1.0
		}
		scores.Add(role, weight*multiplier)
	}

	scores.Normalize(s.scoreCeiling)

	if s.logger != nil {
		top, topScore := scores.Top()
		s.logger.Behavior().Debug("Scored behavioral events", "eventCount", len(events), "topRole", string(top), "topScore", topScore, "duration", time.Since(start))
	}
	return scores
}

// Confidence converts a top score into a [0,1] confidence.
func (s *ScoringService) Confidence(topScore float64) float64 {
	return roles.Confidence(topScore, s.scoreDivisor)
}

// PageAffinity returns the role affinity of a path, if any, along with
// the confidence boost that applies when the final role matches.
func (s *ScoringService) PageAffinity(path string) (roles.Role, float64, bool) {
	lowered := strings.ToLower(path)
	for _, indicator := range pageIndicators {
		if strings.Contains(lowered, indicator.path) {
			return indicator.role, config.PageAffinityBoost, true
		}
	}
	return roles.RoleUnknown, 0, false
}

func (s *ScoringService) contribution(event *behavior.Event) (roles.Role, float64) {
	switch event.Type {
	case behavior.EventPageView:
		return pathAffinity(event.Payload.Path)
	case behavior.EventSearch:
		return searchAffinity(event.Payload.Query)
	case behavior.EventClick:
		if role, ok := clickElements[strings.ToLower(event.Payload.Element)]; ok {
			return role, clickSignalWeight
		}
	case behavior.EventFormInteraction:
		if role, _ := pathAffinity(event.Payload.Path); role != roles.RoleUnknown {
			return role, formSignalWeight
		}
	case behavior.EventTimeSpent:
		if time.Duration(event.Payload.Duration)*time.Millisecond < dwellThreshold {
			return roles.RoleUnknown, 0
		}
		role, weight := pathAffinity(event.Payload.Path)
		return role, weight / 2
	}
	return roles.RoleUnknown, 0
}

func pathAffinity(path string) (roles.Role, float64) {
	lowered := strings.ToLower(path)
	for _, indicator := range pageIndicators {
		if strings.Contains(lowered, indicator.path) {
			return indicator.role, indicator.weight
		}
	}
	return roles.RoleUnknown, 0
}

func searchAffinity(query string) (roles.Role, float64) {
	lowered := strings.ToLower(query)
	for _, entry := range searchKeywords {
		if strings.Contains(lowered, entry.keyword) {
			return entry.role, searchSignalWeight
		}
	}
	return roles.RoleUnknown, 0
}
