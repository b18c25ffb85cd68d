package display

import (
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"inkbatt/internal/model"
)

// Palette indices of a composed frame.
const (
	idxWhite uint8 = iota
	idxBlack
	idxAccent
)

// Layout describes the panel geometry the frame is composed for. All
// positions inside Compose scale from the Inky pHAT's 212x104, so the
// same proportions hold on the larger wHAT.
type Layout struct {
	Width  int
	Height int

	// LowThreshold is the battery percentage below which the value and
	// bar draw in the accent colour.
	LowThreshold float64

	// Accent is the panel's third colour. Nil means red.
	Accent color.Color
}

// DefaultLayout is the Inky pHAT geometry.
func DefaultLayout() Layout {
	return Layout{Width: 212, Height: 104, LowThreshold: 20}
}

func (l Layout) accent() color.Color {
	if l.Accent != nil {
		return l.Accent
	}
	return color.RGBA{R: 0xff, A: 0xff}
}

func (l Layout) sx(v int) int { return v * l.Width / 212 }
func (l Layout) sy(v int) int { return v * l.Height / 104 }

var (
	fontsOnce sync.Once
	boldFont  *opentype.Font
	regFont   *opentype.Font
	fontsErr  error
)

func loadFonts() error {
	fontsOnce.Do(func() {
		boldFont, fontsErr = opentype.Parse(gobold.TTF)
		if fontsErr != nil {
			return
		}
		regFont, fontsErr = opentype.Parse(goregular.TTF)
	})
	return fontsErr
}

func newFace(f *opentype.Font, size int) (font.Face, error) {
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// Compose draws one snapshot into a three-colour paletted frame: a big
// percentage on top (or a NO DATA placeholder before the first
// success), a horizontal charge bar in the middle, and a status line
// with the wall clock, the age of the reading and a retries counter at
// the bottom.
func Compose(state model.DisplayState, l Layout) (*image.Paletted, error) {
	if err := loadFonts(); err != nil {
		return nil, fmt.Errorf("load fonts: %w", err)
	}

	largeFace, err := newFace(boldFont, l.sy(36))
	if err != nil {
		return nil, fmt.Errorf("build large face: %w", err)
	}
	mediumFace, err := newFace(regFont, l.sy(16))
	if err != nil {
		return nil, fmt.Errorf("build medium face: %w", err)
	}
	smallFace, err := newFace(regFont, l.sy(12))
	if err != nil {
		return nil, fmt.Errorf("build small face: %w", err)
	}

	img := image.NewPaletted(image.Rect(0, 0, l.Width, l.Height),
		color.Palette{color.White, color.Black, l.accent()})
	fillRect(img, img.Bounds(), idxWhite)

	margin := l.sx(8)

	valueIdx := idxBlack
	if state.HasData() && state.Reading.Value < l.LowThreshold {
		valueIdx = idxAccent
	}

	// Top section: the value itself, or the placeholder.
	if state.HasData() {
		text := fmt.Sprintf("%d%%", int(state.Reading.Value))
		drawCentered(img, largeFace, text, l.sy(5), valueIdx)
	} else {
		drawCentered(img, mediumFace, "NO DATA", l.sy(15), idxAccent)
	}

	// Middle section: charge bar.
	barY := l.sy(45)
	barH := l.sy(16)
	bar := image.Rect(margin, barY, l.Width-margin, barY+barH)
	strokeRect(img, bar, 2, idxBlack)
	if state.HasData() {
		fillW := int(state.Reading.Value / 100 * float64(bar.Dx()-4))
		if fillW > 0 {
			fillRect(img, image.Rect(bar.Min.X+2, bar.Min.Y+2, bar.Min.X+2+fillW, bar.Max.Y-2), valueIdx)
		}
	} else {
		// Dotted fill marks the bar as meaningless.
		for x := bar.Min.X + 4; x < bar.Max.X-4; x += 6 {
			fillRect(img, image.Rect(x, bar.Min.Y+4, x+2, bar.Max.Y-4), idxBlack)
		}
	}

	// Bottom section: status line, clock, reading age, retries.
	bottomY := l.sy(72)
	lineH := l.sy(14)
	small := smallFace.Metrics().Ascent.Ceil()

	clock := state.At.Format("15:04")
	clockX := l.Width - textWidth(smallFace, clock) - margin
	drawText(img, smallFace, clock, clockX, bottomY+small, idxBlack)

	symbolIdx := idxBlack
	if !state.HasData() || state.Stale() {
		symbolIdx = idxAccent
	}
	drawText(img, smallFace, statusSymbol(state, l.LowThreshold), clockX-l.sx(15), bottomY+small, symbolIdx)

	if state.HasData() {
		drawText(img, smallFace, "Battery Level", margin, bottomY+small, idxBlack)
		if state.LastSuccessAt != nil {
			drawText(img, smallFace, "Updated: "+ageText(state.Age()), margin, bottomY+lineH+small, idxBlack)
		}
		if state.ConsecutiveFailures > 0 {
			retries := fmt.Sprintf("Retries: %d", state.ConsecutiveFailures)
			drawText(img, smallFace, retries, margin, bottomY+2*lineH+small, idxAccent)
		}
	} else {
		drawText(img, smallFace, "Connection Failed", margin, bottomY+small, idxAccent)
	}

	return img, nil
}

// statusSymbol condenses the snapshot into one glyph for the corner of
// the panel: + healthy, ~ below half, ! below the low threshold, X no
// data at all.
func statusSymbol(state model.DisplayState, low float64) string {
	if !state.HasData() {
		return "X"
	}
	switch v := state.Reading.Value; {
	case v < low:
		return "!"
	case v < 50:
		return "~"
	default:
		return "+"
	}
}

// ageText buckets the reading age the way people read it off a wall
// display: sub-minute is just now, then whole minutes, then whole hours.
func ageText(age time.Duration) string {
	switch {
	case age < time.Minute:
		return "Just now"
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	}
}

func drawText(img *image.Paletted, face font.Face, s string, x, baseline int, idx uint8) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(img.Palette[idx]),
		Face: face,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(s)
}

// drawCentered horizontally centres s with its top edge at y.
func drawCentered(img *image.Paletted, face font.Face, s string, y int, idx uint8) {
	x := (img.Bounds().Dx() - textWidth(face, s)) / 2
	drawText(img, face, s, x, y+face.Metrics().Ascent.Ceil(), idx)
}

func textWidth(face font.Face, s string) int {
	return font.MeasureString(face, s).Ceil()
}

func fillRect(img *image.Paletted, r image.Rectangle, idx uint8) {
	r = r.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetColorIndex(x, y, idx)
		}
	}
}

func strokeRect(img *image.Paletted, r image.Rectangle, width int, idx uint8) {
	fillRect(img, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+width), idx)
	fillRect(img, image.Rect(r.Min.X, r.Max.Y-width, r.Max.X, r.Max.Y), idx)
	fillRect(img, image.Rect(r.Min.X, r.Min.Y, r.Min.X+width, r.Max.Y), idx)
	fillRect(img, image.Rect(r.Max.X-width, r.Min.Y, r.Max.X, r.Max.Y), idx)
}
