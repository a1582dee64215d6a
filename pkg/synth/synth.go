// Package synth derives hardening artifacts from canonical feature
// specifications. The structural content of every artifact is produced by a
// deterministic mapping; an optional drafting service contributes only
// free-text slots (descriptions, business-rule prose, extra test cases).
package synth

import (
	"context"
	"errors"
	"fmt"

	"ssotgen/pkg/artifact"
	"ssotgen/pkg/llm/llmerrors"
	"ssotgen/pkg/logx"
	"ssotgen/pkg/spec"
)

// ErrDraftTimeout reports that the drafting service did not answer in time.
var ErrDraftTimeout = errors.New("drafting service timed out")

// ErrDraftService reports that the drafting service failed or produced output
// that could not be used.
var ErrDraftService = errors.New("drafting service failed")

// Synthesizer builds the artifact set for a feature.
type Synthesizer struct {
	drafter DraftProvider
	logger  *logx.Logger
}

// New creates a synthesizer. A nil drafter produces bare skeletons with no
// prose, which is valid output.
func New(drafter DraftProvider) *Synthesizer {
	return &Synthesizer{
		drafter: drafter,
		logger:  logx.NewLogger("synth"),
	}
}

// Synthesize produces one artifact for the feature.
func (s *Synthesizer) Synthesize(ctx context.Context, fs *spec.FeatureSpec, kind artifact.Kind) (*artifact.Artifact, error) {
	skel, err := buildSkeleton(fs, kind)
	if err != nil {
		return nil, err
	}
	if s.drafter == nil {
		return skel, nil
	}

	text, err := s.drafter.Draft(ctx, fs, kind)
	if err != nil {
		return nil, draftError(fs.ID, kind, err)
	}

	draft, err := artifact.Decode(kind, fs.ID, []byte(text))
	if err != nil {
		return nil, fmt.Errorf("%w: draft for %s/%s is not parseable: %v",
			ErrDraftService, fs.ID, kind, err)
	}

	mergeDraft(skel, draft)
	return skel, nil
}

// SynthesizeAll produces the complete five-artifact set for a feature.
func (s *Synthesizer) SynthesizeAll(ctx context.Context, fs *spec.FeatureSpec) (artifact.Set, error) {
	set := make(artifact.Set, len(artifact.Kinds()))
	for _, kind := range artifact.Kinds() {
		a, err := s.Synthesize(ctx, fs, kind)
		if err != nil {
			return nil, fmt.Errorf("synthesizing %s for %s: %w", kind, fs.ID, err)
		}
		set[kind] = a
	}
	return set, nil
}

// draftError classifies a drafting failure. Deadline expiry, whether surfaced
// directly or after retry exhaustion, maps to ErrDraftTimeout.
func draftError(featureID string, kind artifact.Kind, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: drafting %s/%s: %v", ErrDraftTimeout, featureID, kind, err)
	}
	var llmErr *llmerrors.Error
	if errors.As(err, &llmErr) && llmErr.Type == llmerrors.ErrorTypeTransient &&
		errors.Is(llmErr.Err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: drafting %s/%s: %v", ErrDraftTimeout, featureID, kind, err)
	}
	return fmt.Errorf("%w: drafting %s/%s: %v", ErrDraftService, featureID, kind, err)
}
