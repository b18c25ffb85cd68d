package display

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/inky"
	"periph.io/x/host/v3"

	"inkbatt/internal/model"
)

// Inky pHAT/wHAT control pins on the Raspberry Pi header.
const (
	pinDC    = "GPIO22"
	pinReset = "GPIO27"
	pinBusy  = "GPIO17"
)

// InkyRenderer drives a Pimoroni Inky panel over SPI. Construction
// fails when the panel or its pins are absent; callers are expected to
// degrade to the console renderer in that case.
type InkyRenderer struct {
	dev    *inky.Dev
	layout Layout
}

// NewInkyRenderer initializes the periph host, opens the first SPI
// port and resets the panel. model is "phat" or "what"; colorName is
// the panel's third ink ("black", "red" or "yellow").
func NewInkyRenderer(model, colorName string, lowThreshold float64) (*InkyRenderer, error) {
	opts := &inky.Opts{BorderColor: inky.White}

	switch strings.ToLower(model) {
	case "phat":
		opts.Model = inky.PHAT
	case "what":
		opts.Model = inky.WHAT
	default:
		return nil, fmt.Errorf("unknown inky model %q", model)
	}

	accent := color.Color(nil)
	switch strings.ToLower(colorName) {
	case "black":
		opts.ModelColor = inky.Black
	case "red":
		opts.ModelColor = inky.Red
		accent = color.RGBA{R: 0xff, A: 0xff}
	case "yellow":
		opts.ModelColor = inky.Yellow
		accent = color.RGBA{R: 0xff, G: 0xff, A: 0xff}
	default:
		return nil, fmt.Errorf("unknown inky color %q", colorName)
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}

	port, err := spireg.Open("")
	if err != nil {
		return nil, fmt.Errorf("open spi port: %w", err)
	}

	dc := gpioreg.ByName(pinDC)
	reset := gpioreg.ByName(pinReset)
	busy := gpioreg.ByName(pinBusy)
	if dc == nil || reset == nil || busy == nil {
		port.Close()
		return nil, fmt.Errorf("inky control pins %s/%s/%s not available", pinDC, pinReset, pinBusy)
	}

	dev, err := inky.New(port, dc, reset, busy, opts)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("init inky panel: %w", err)
	}

	bounds := dev.Bounds()
	return &InkyRenderer{
		dev: dev,
		layout: Layout{
			Width:        bounds.Dx(),
			Height:       bounds.Dy(),
			LowThreshold: lowThreshold,
			Accent:       accent,
		},
	}, nil
}

func (r *InkyRenderer) Render(state model.DisplayState) error {
	frame, err := Compose(state, r.layout)
	if err != nil {
		return fmt.Errorf("compose frame: %w", err)
	}
	if err := r.dev.Draw(r.dev.Bounds(), frame, image.Point{}); err != nil {
		return fmt.Errorf("draw frame: %w", err)
	}
	return nil
}
