package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pkkmi/andikar-gate/domain/detect"
	"github.com/pkkmi/andikar-gate/domain/humanize"
	"github.com/pkkmi/andikar-gate/ports"
)

// DetectService runs the local AI-likeness heuristic for tiers whose
// plan includes the detect feature.
type DetectService struct {
	humanizer *HumanizerService
	logger    zerolog.Logger
}

// FeatureDetect is the tier feature flag gating AI detection.
const FeatureDetect = "detect"

// ErrFeatureNotIncluded is returned when a tier lacks a feature.
type ErrFeatureNotIncluded struct {
	Feature string
	Tier    string
}

func (e *ErrFeatureNotIncluded) Error() string {
	return fmt.Sprintf("feature %q is not included in the %s plan", e.Feature, e.Tier)
}

// NewDetectService creates the detection service. It shares the
// humanizer service's tier resolution so both surfaces agree on which
// plan a user is on.
func NewDetectService(h *HumanizerService, logger zerolog.Logger) *DetectService {
	return &DetectService{
		humanizer: h,
		logger:    logger.With().Str("component", "detect_service").Logger(),
	}
}

// Detect scores text for AI-likeness. Purely local and deterministic;
// it consumes no quota and makes no upstream calls.
func (s *DetectService) Detect(ctx context.Context, userID, tierName, text string) (detect.Result, error) {
	if humanize.CountWords(text) == 0 {
		return detect.Result{}, ports.ErrEmptyText
	}

	cfg := s.humanizer.config()
	t := s.humanizer.resolveTier(ctx, userID, tierName, cfg.Catalog)
	if !t.HasFeature(FeatureDetect) {
		return detect.Result{}, &ErrFeatureNotIncluded{Feature: FeatureDetect, Tier: t.Name}
	}

	res := detect.Score(text)
	s.logger.Debug().
		Str("user_id", userID).
		Str("tier", t.Name).
		Int("ai_score", res.AIScore).
		Msg("detection scored")
	return res, nil
}
