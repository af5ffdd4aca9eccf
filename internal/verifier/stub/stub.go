// Package stub implements a deterministic completion verifier with the same
// contract as the vision LLM verifier, meant for simulation and tests.
package stub

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"time"

	"github.com/slok/orq/internal/log"
	"github.com/slok/orq/internal/model"
	"github.com/slok/orq/internal/verifier"
)

// VerifierConfig is the configuration for the stub verifier.
type VerifierConfig struct {
	// CrossingMarginPx is how many pixels past the center line the marker
	// must be to count as crossed.
	CrossingMarginPx int
	Logger           log.Logger
}

func (c *VerifierConfig) defaults() error {
	if c.CrossingMarginPx <= 0 {
		c.CrossingMarginPx = 4
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "verifier.Stub"})
	return nil
}

// Verifier judges line crossing with a pixel heuristic over the after frame.
type Verifier struct {
	crossingMarginPx int
	logger           log.Logger
}

// NewVerifier creates a new stub verifier.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Verifier{
		crossingMarginPx: cfg.CrossingMarginPx,
		logger:           cfg.Logger,
	}, nil
}

// Check locates the green marker column on the after frame and compares it
// against the center line and the subtask target side.
func (v *Verifier) Check(ctx context.Context, req verifier.CheckRequest) (model.VerifierResult, error) {
	if err := ctx.Err(); err != nil {
		return model.VerifierResult{}, err
	}

	if len(req.After.PNG) == 0 {
		return model.VerifierResult{
			Complete:    false,
			Status:      model.VerifierStatusUncertain,
			Confidence:  0.2,
			FailureMode: "missing_frames",
			Adjustment:  durationAdjustment(450 * time.Millisecond),
			Rationale:   "no post-execution frame provided",
		}, nil
	}

	img, err := png.Decode(bytes.NewReader(req.After.PNG))
	if err != nil {
		return model.VerifierResult{}, fmt.Errorf("could not decode after frame: %w", err)
	}

	lineX := img.Bounds().Dx() / 2
	markerX := extractMarkerX(img)

	target := req.Params.Target
	crossed := false
	switch target {
	case "right":
		crossed = markerX > lineX+v.crossingMarginPx
	case "left":
		crossed = markerX < lineX-v.crossingMarginPx
	}

	if crossed {
		return model.VerifierResult{
			Complete:   true,
			Status:     model.VerifierStatusSuccess,
			Confidence: 0.92,
			Rationale:  fmt.Sprintf("marker crossed line to the %s (marker_x=%d, line_x=%d)", target, markerX, lineX),
		}, nil
	}

	// Not crossed yet, nudge speed and chunk duration up for the next attempt.
	speed := req.Params.Speed + 0.08
	duration := req.Params.ChunkDuration + 50*time.Millisecond
	return model.VerifierResult{
		Complete:    false,
		Status:      model.VerifierStatusFail,
		Confidence:  0.78,
		FailureMode: "not_crossed_line",
		Adjustment: &model.Adjustment{
			Speed:         &speed,
			ChunkDuration: &duration,
		},
		Rationale: fmt.Sprintf("still not across line (marker_x=%d, line_x=%d, target=%s)", markerX, lineX, target),
	}, nil
}

// extractMarkerX isolates the green marker from the white line by penalizing
// the red and blue channels, and returns the highest scoring column.
func extractMarkerX(img image.Image) int {
	bounds := img.Bounds()

	bestX, bestScore := 0, float64(-1<<30)
	for x := bounds.Min.X; x < bounds.Max.X; x++ {
		var score float64
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			r, g, b, _ := img.At(x, y).RGBA()
			score += float64(g>>8) - 0.5*float64(r>>8) - 0.5*float64(b>>8)
		}
		if score > bestScore {
			bestScore = score
			bestX = x - bounds.Min.X
		}
	}

	return bestX
}

func durationAdjustment(d time.Duration) *model.Adjustment {
	return &model.Adjustment{ChunkDuration: &d}
}
