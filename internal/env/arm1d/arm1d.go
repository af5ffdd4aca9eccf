// Package arm1d implements a simulated one dimensional robot arm environment.
//
// The arm moves along a single axis between -limit and +limit. Every
// observation renders a small RGB frame with a white vertical line at the
// center and a green marker at the arm position, the same scene a vision
// verifier would judge on real hardware.
package arm1d

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"time"

	"github.com/slok/orq/internal/env"
	"github.com/slok/orq/internal/log"
	"github.com/slok/orq/internal/model"
)

const initialArmPos = -0.6

// EnvironmentConfig is the configuration for the arm1d environment.
type EnvironmentConfig struct {
	ControlHz   int
	ArmLimit    float64
	FrameWidth  int
	FrameHeight int
	Logger      log.Logger
}

func (c *EnvironmentConfig) defaults() error {
	if c.ControlHz <= 0 {
		c.ControlHz = 50
	}
	if c.ArmLimit == 0 {
		c.ArmLimit = 1.0
	}
	if c.ArmLimit < 0 {
		return fmt.Errorf("arm limit must be positive")
	}
	if c.FrameWidth <= 0 {
		c.FrameWidth = 96
	}
	if c.FrameHeight <= 0 {
		c.FrameHeight = 96
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "env.Arm1D"})
	return nil
}

// Environment is a simulated env.Environment with a one dimensional arm.
type Environment struct {
	controlHz   int
	dt          time.Duration
	armLimit    float64
	frameWidth  int
	frameHeight int
	armPos      float64
	simTime     time.Duration
	logger      log.Logger
}

// NewEnvironment creates a new arm1d environment.
func NewEnvironment(cfg EnvironmentConfig) (*Environment, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Environment{
		controlHz:   cfg.ControlHz,
		dt:          time.Second / time.Duration(cfg.ControlHz),
		armLimit:    cfg.ArmLimit,
		frameWidth:  cfg.FrameWidth,
		frameHeight: cfg.FrameHeight,
		armPos:      initialArmPos,
		logger:      cfg.Logger,
	}, nil
}

// Reset puts the arm back at its initial position.
func (e *Environment) Reset(ctx context.Context) (env.Observation, error) {
	e.armPos = initialArmPos
	e.simTime = 0
	e.logger.Debugf("Environment reset, arm at %.2f", e.armPos)
	return e.Observe(ctx)
}

// Observe renders and captures a frame of the current state.
func (e *Environment) Observe(ctx context.Context) (env.Observation, error) {
	if err := ctx.Err(); err != nil {
		return env.Observation{}, err
	}

	frame, err := e.renderFrame()
	if err != nil {
		return env.Observation{}, fmt.Errorf("could not render frame: %w", err)
	}

	return env.Observation{
		Frame:   frame,
		ArmPos:  e.armPos,
		SimTime: e.simTime,
	}, nil
}

// Step advances the simulation one control tick.
func (e *Environment) Step(ctx context.Context, dx float64) (env.Observation, error) {
	if err := ctx.Err(); err != nil {
		return env.Observation{}, err
	}

	e.armPos += dx * e.dt.Seconds()
	e.armPos = math.Max(-e.armLimit, math.Min(e.armLimit, e.armPos))
	e.simTime += e.dt

	return e.Observe(ctx)
}

// SafetyOK reports whether the arm is within its limits.
func (e *Environment) SafetyOK() bool {
	return math.Abs(e.armPos) <= e.armLimit
}

// Close releases the environment.
func (e *Environment) Close() error { return nil }

// markerX maps the arm position to a frame column.
func (e *Environment) markerX() int {
	const margin = 8
	xMin := float64(margin)
	xMax := float64(e.frameWidth - margin - 1)
	norm := (e.armPos + e.armLimit) / (2 * e.armLimit)
	return int(math.Round(xMin + norm*(xMax-xMin)))
}

func (e *Environment) renderFrame() (model.Frame, error) {
	img := image.NewRGBA(image.Rect(0, 0, e.frameWidth, e.frameHeight))

	background := color.RGBA{R: 18, G: 18, B: 18, A: 255}
	line := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	marker := color.RGBA{R: 30, G: 220, B: 30, A: 255}

	for y := 0; y < e.frameHeight; y++ {
		for x := 0; x < e.frameWidth; x++ {
			img.SetRGBA(x, y, background)
		}
	}

	// White vertical line at the center, 2px wide.
	lineX := e.frameWidth / 2
	for y := 0; y < e.frameHeight; y++ {
		img.SetRGBA(lineX-1, y, line)
		img.SetRGBA(lineX, y, line)
	}

	// Green marker box at the arm position.
	x := e.markerX()
	yMid := e.frameHeight / 2
	for yy := max(0, yMid-6); yy < min(e.frameHeight, yMid+7); yy++ {
		for xx := max(0, x-3); xx < min(e.frameWidth, x+4); xx++ {
			img.SetRGBA(xx, yy, marker)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return model.Frame{}, err
	}

	return model.Frame{
		PNG:    buf.Bytes(),
		Width:  e.frameWidth,
		Height: e.frameHeight,
	}, nil
}
