package app

import "github.com/bft-labs/rollcam/internal/domain"

// DegradeReason names the resource pressure behind a quality reduction.
type DegradeReason int

const (
	ReasonNone DegradeReason = iota
	ReasonBattery
	ReasonLoad
)

// String returns a human-readable representation of the reason.
func (r DegradeReason) String() string {
	switch r {
	case ReasonBattery:
		return "battery"
	case ReasonLoad:
		return "load"
	default:
		return "none"
	}
}

// QualityGovernor tracks the effective capture quality. Only one reason is
// tracked at a time: degrading while degraded is a no-op, and only the
// tracked reason can restore.
type QualityGovernor struct {
	user      domain.Quality
	effective domain.Quality
	reason    DegradeReason
}

// NewQualityGovernor starts at the user-configured quality.
func NewQualityGovernor(user domain.Quality) *QualityGovernor {
	return &QualityGovernor{user: user, effective: user}
}

// Degrade lowers the effective quality one rung for reason.
// changed is false when already degraded.
func (g *QualityGovernor) Degrade(reason DegradeReason) (from, to domain.Quality, changed bool) {
	if g.reason != ReasonNone || reason == ReasonNone {
		return g.effective, g.effective, false
	}
	from = g.effective
	g.effective = g.user.Lower()
	g.reason = reason
	return from, g.effective, true
}

// Restore reverts to the user quality if reason is the tracked one.
func (g *QualityGovernor) Restore(reason DegradeReason) bool {
	if g.reason == ReasonNone || g.reason != reason {
		return false
	}
	g.reason = ReasonNone
	g.effective = g.user
	return true
}

// Reset clears any degradation.
func (g *QualityGovernor) Reset() {
	g.reason = ReasonNone
	g.effective = g.user
}

// SetUserQuality updates the configured quality, keeping a degradation
// in place relative to the new value.
func (g *QualityGovernor) SetUserQuality(q domain.Quality) {
	g.user = q
	if g.reason == ReasonNone {
		g.effective = q
	} else {
		g.effective = q.Lower()
	}
}

func (g *QualityGovernor) Effective() domain.Quality { return g.effective }
func (g *QualityGovernor) Degraded() bool            { return g.reason != ReasonNone }
func (g *QualityGovernor) Reason() DegradeReason     { return g.reason }
