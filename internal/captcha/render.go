package captcha

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"sync"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// Canvas geometry and palette.
const (
	Width  = 300
	Height = 90

	gridStep     = 4
	speckleCount = 420

	glyphW     = 64 // offscreen glyph canvas
	glyphH     = 80
	glyphStep  = 2 // dot grid inside the glyph canvas
	glyphBaseX = 32
	glyphGap   = 44
	fontSize   = 44
	glyphShear = -0.15
	maxTilt    = 0.22 // full range of the per-glyph rotation, radians
	jitter     = 1.2  // full range of per-dot jitter, pixels
)

var (
	gridColor  = color.RGBA{0xe6, 0xe9, 0xef, 0xff}
	glyphColor = color.RGBA{0x1f, 0x3f, 0xe3, 0xff}
)

// Renderer turns a code into an encoded image.
type Renderer interface {
	Render(code string) ([]byte, error)
}

// BitmapRenderer draws a code as clusters of small blue dots over a dotted
// grid and random speckles, and encodes the result as PNG.
type BitmapRenderer struct {
	mu   sync.Mutex // font faces are not safe for concurrent use
	face font.Face
	rnd  Rand
}

// NewBitmapRenderer loads the bundled bold face used for glyphs.
func NewBitmapRenderer(rnd Rand) (*BitmapRenderer, error) {
	f, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse glyph font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: fontSize, DPI: 72, Hinting: font.HintingNone})
	if err != nil {
		return nil, fmt.Errorf("glyph face: %w", err)
	}
	return &BitmapRenderer{face: face, rnd: rnd}, nil
}

// Render draws code and returns PNG bytes.
func (b *BitmapRenderer) Render(code string) ([]byte, error) {
	img := b.Draw(code)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode captcha: %w", err)
	}
	return buf.Bytes(), nil
}

// Draw paints code onto a fresh Width x Height canvas.
func (b *BitmapRenderer) Draw(code string) *image.RGBA {
	b.mu.Lock()
	defer b.mu.Unlock()

	dst := image.NewRGBA(image.Rect(0, 0, Width, Height))
	xdraw.Draw(dst, dst.Bounds(), image.White, image.Point{}, xdraw.Src)

	for y := gridStep; y < Height; y += gridStep {
		for x := gridStep; x < Width; x += gridStep {
			dst.SetRGBA(x, y, gridColor)
		}
	}

	for i := 0; i < speckleCount; i++ {
		x := b.rnd.Float64() * Width
		y := b.rnd.Float64() * Height
		r := b.rnd.Float64()*1.2 + 0.2
		a := 0.65 + b.rnd.Float64()*0.25
		fillDot(dst, x, y, r, color.NRGBA{38, 70, 225, uint8(math.Round(a * 255))})
	}

	for i, ch := range code {
		angle := (b.rnd.Float64() - 0.5) * maxTilt
		ox := float64(glyphBaseX + i*glyphGap - glyphW/2)
		oy := float64(Height/2 - glyphH/2)
		for _, p := range b.glyphDots(string(ch), angle) {
			jx := (b.rnd.Float64() - 0.5) * jitter
			jy := (b.rnd.Float64() - 0.5) * jitter
			fillDot(dst, ox+float64(p.X)+jx, oy+float64(p.Y)+jy, 1, glyphColor)
		}
	}
	return dst
}

// glyphDots rasterizes ch on a white glyphW x glyphH canvas, tilted by angle
// and sheared, and returns the points of the 2px sampling grid that landed
// on ink.
func (b *BitmapRenderer) glyphDots(ch string, angle float64) []image.Point {
	// Upright glyph, centered horizontally, vertically middle-aligned 6px
	// below the canvas center.
	upright := image.NewRGBA(image.Rect(0, 0, glyphW, glyphH))
	m := b.face.Metrics()
	adv := font.MeasureString(b.face, ch)
	d := font.Drawer{
		Dst:  upright,
		Src:  image.NewUniform(glyphColor),
		Face: b.face,
		Dot: fixed.Point26_6{
			X: fixed.I(glyphW/2) - adv/2,
			Y: fixed.I(glyphH/2+6) + (m.Ascent-m.Descent)/2,
		},
	}
	d.DrawString(ch)

	off := image.NewRGBA(upright.Bounds())
	xdraw.Draw(off, off.Bounds(), image.White, image.Point{}, xdraw.Src)
	xdraw.BiLinear.Transform(off, tiltAround(glyphW/2, glyphH/2, angle, glyphShear), upright, upright.Bounds(), xdraw.Over, nil)

	var pts []image.Point
	for y := 0; y < glyphH; y += glyphStep {
		for x := 0; x < glyphW; x += glyphStep {
			c := off.RGBAAt(x, y)
			if c.A > 40 && (c.R < 240 || c.G < 240 || c.B < 240) {
				pts = append(pts, image.Point{X: x, Y: y})
			}
		}
	}
	return pts
}

// tiltAround returns the source-to-destination transform that rotates by
// angle after shearing x by shear*y, both about (cx, cy).
func tiltAround(cx, cy, angle, shear float64) f64.Aff3 {
	sin, cos := math.Sincos(angle)
	m00, m01 := cos, shear*cos-sin
	m10, m11 := sin, shear*sin+cos
	return f64.Aff3{
		m00, m01, cx - m00*cx - m01*cy,
		m10, m11, cy - m10*cx - m11*cy,
	}
}

// fillDot composites an anti-aliased disc of radius r centered at (cx, cy).
func fillDot(dst *image.RGBA, cx, cy, r float64, c color.Color) {
	x0, y0 := int(math.Floor(cx-r)), int(math.Floor(cy-r))
	x1, y1 := int(math.Ceil(cx+r)), int(math.Ceil(cy+r))
	w, h := x1-x0, y1-y0
	if w <= 0 || h <= 0 {
		return
	}

	ox, oy := float32(cx-float64(x0)), float32(cy-float64(y0))
	rr := float32(r)
	k := rr * 0.5523 // cubic Bézier circle constant

	z := vector.NewRasterizer(w, h)
	z.MoveTo(ox+rr, oy)
	z.CubeTo(ox+rr, oy+k, ox+k, oy+rr, ox, oy+rr)
	z.CubeTo(ox-k, oy+rr, ox-rr, oy+k, ox-rr, oy)
	z.CubeTo(ox-rr, oy-k, ox-k, oy-rr, ox, oy-rr)
	z.CubeTo(ox+k, oy-rr, ox+rr, oy-k, ox+rr, oy)
	z.ClosePath()

	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})

	xdraw.DrawMask(dst, image.Rect(x0, y0, x1, y1), image.NewUniform(c), image.Point{}, mask, image.Point{}, xdraw.Over)
}
