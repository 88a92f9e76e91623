package services

import (
	domain "github.com/summit-offroad/api/internal/domain"
)

// FunnelService selects offer steps from the static catalog. Selection is a
// pure function; the service exists so call sites share one catalog snapshot
// and tests can substitute a smaller one.
type FunnelService struct {
	steps []domain.FunnelStep
}

// NewFunnelService constructs a selector over the given catalog; a nil or
// empty catalog falls back to the built-in one.
func NewFunnelService(steps []domain.FunnelStep) *FunnelService {
	if len(steps) == 0 {
		steps = domain.FunnelSteps()
	}
	return &FunnelService{steps: steps}
}

// SelectStep returns the best-converting step for the segment at the given
// position, preferring steps triggered by the specific product. Nil means no
// offer applies, which is an expected outcome.
func (s *FunnelService) SelectStep(segment domain.CustomerSegment, triggerProductID string, position domain.FunnelPosition) *domain.FunnelStep {
	var eligible []domain.FunnelStep
	for _, step := range s.steps {
		if step.Position == position && step.TargetsSegment(segment.ID) {
			eligible = append(eligible, step)
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	if triggerProductID != "" {
		var triggered []domain.FunnelStep
		for _, step := range eligible {
			if step.Associations.Triggers(triggerProductID) {
				triggered = append(triggered, step)
			}
		}
		if len(triggered) > 0 {
			return bestByConversion(triggered)
		}
	}
	return bestByConversion(eligible)
}

// bestByConversion returns the step with the highest conversion rate. The
// strict comparison keeps the first-declared step on ties.
func bestByConversion(steps []domain.FunnelStep) *domain.FunnelStep {
	best := steps[0]
	for _, step := range steps[1:] {
		if step.ConversionRate > best.ConversionRate {
			best = step
		}
	}
	return &best
}
