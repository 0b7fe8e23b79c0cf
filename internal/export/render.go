// Package export rasterizes canvases to images. A canvas is drawn in its
// own plane, covering the same rectangle as its outline in the viewer.
package export

import (
	"errors"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/vector"
	"seehuhn.de/go/geom/vec"

	"github.com/cherish/cherish/backend-go/internal/engine"
)

const (
	DefaultWidth       = 1024
	DefaultStrokeWidth = 2.0
)

var ErrEmptyImage = errors.New("image size must be positive")

// PhotoLoader returns the pixels behind a photo path.
type PhotoLoader func(path string) (image.Image, error)

type Options struct {
	// Width in pixels. The height follows from the canvas aspect.
	Width       int
	StrokeWidth float64
	Background  color.Color
}

func (o Options) withDefaults() Options {
	if o.Width == 0 {
		o.Width = DefaultWidth
	}
	if o.StrokeWidth <= 0 {
		o.StrokeWidth = DefaultStrokeWidth
	}
	if o.Background == nil {
		o.Background = color.White
	}
	return o
}

// placeholder is painted where a photo's pixels cannot be loaded.
var placeholder = color.NRGBA{R: 0x99, G: 0x99, B: 0x99, A: 0xff}

// RenderCanvas draws the photos and then the strokes of c in row order.
// load may be nil, in which case every photo is drawn as a placeholder.
func RenderCanvas(c *engine.Canvas, opt Options, load PhotoLoader) (*image.RGBA, error) {
	opt = opt.withDefaults()
	if opt.Width < 0 {
		return nil, ErrEmptyImage
	}

	r := c.FrameRect()
	k := float64(opt.Width) / (r.URx - r.LLx)
	height := int(math.Ceil((r.URy - r.LLy) * k))
	if height <= 0 {
		return nil, ErrEmptyImage
	}

	dst := image.NewRGBA(image.Rect(0, 0, opt.Width, height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(opt.Background), image.Point{}, draw.Src)

	// Canvas plane to pixels, flipping v so that up stays up.
	toPixels := engine.Matrix2D{k, 0, 0, -k, -r.LLx * k, r.URy * k}
	z := vector.NewRasterizer(opt.Width, height)

	for _, p := range c.Photos() {
		var img image.Image
		if load != nil {
			img, _ = load(p.Path())
		}
		if img == nil {
			drawPlaceholder(dst, z, toPixels, p)
			continue
		}
		drawPhoto(dst, toPixels, p, img)
	}

	half := float32(opt.StrokeWidth / 2)
	for _, st := range c.Strokes() {
		pts := st.Points()
		if len(pts) == 0 {
			continue
		}
		px := make([]vec.Vec2, len(pts))
		for i, p := range pts {
			px[i] = toPixels.Apply(p)
		}
		z.Reset(opt.Width, height)
		polyline(z, px, half)
		z.Draw(dst, dst.Bounds(), image.NewUniform(nrgba(st.Color())), image.Point{})
	}
	return dst, nil
}

// drawPhoto composes pixel space of img, the photo's unit square and the
// canvas plane into a single source-to-destination transform.
func drawPhoto(dst *image.RGBA, toPixels engine.Matrix2D, p *engine.Photo, img image.Image) {
	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	if w == 0 || h == 0 {
		return
	}
	fromImage := engine.Translate(0, 1).
		Multiply(engine.Scale(1/w, -1/h)).
		Multiply(engine.Translate(-float64(b.Min.X), -float64(b.Min.Y)))
	m := toPixels.Multiply(p.Matrix()).Multiply(fromImage)

	var opts *draw.Options
	if p.Opacity() < 1 {
		opts = &draw.Options{SrcMask: image.NewUniform(color.Alpha{A: uint8(p.Opacity() * 0xff)})}
	}
	draw.BiLinear.Transform(dst, aff3(m), img, b, draw.Over, opts)
}

func drawPlaceholder(dst *image.RGBA, z *vector.Rasterizer, toPixels engine.Matrix2D, p *engine.Photo) {
	size := dst.Bounds().Size()
	z.Reset(size.X, size.Y)
	corners := p.Corners()
	for i, c := range corners {
		q := toPixels.Apply(c)
		if i == 0 {
			z.MoveTo(float32(q.X), float32(q.Y))
		} else {
			z.LineTo(float32(q.X), float32(q.Y))
		}
	}
	z.ClosePath()
	fill := placeholder
	fill.A = uint8(float64(fill.A) * p.Opacity())
	z.Draw(dst, dst.Bounds(), image.NewUniform(fill), image.Point{})
}

// polyline adds one quad per segment and a square on every point. All of
// them wind the same way so overlaps do not cancel.
func polyline(z *vector.Rasterizer, pts []vec.Vec2, half float32) {
	for i, p := range pts {
		x, y := float32(p.X), float32(p.Y)
		quad(z,
			x-half, y-half,
			x-half, y+half,
			x+half, y+half,
			x+half, y-half,
		)
		if i == 0 {
			continue
		}
		q := pts[i-1]
		dx, dy := p.X-q.X, p.Y-q.Y
		l := math.Hypot(dx, dy)
		if l == 0 {
			continue
		}
		nx := float32(-dy / l * float64(half))
		ny := float32(dx / l * float64(half))
		qx, qy := float32(q.X), float32(q.Y)
		quad(z,
			qx+nx, qy+ny,
			x+nx, y+ny,
			x-nx, y-ny,
			qx-nx, qy-ny,
		)
	}
}

func quad(z *vector.Rasterizer, ax, ay, bx, by, cx, cy, dx, dy float32) {
	z.MoveTo(ax, ay)
	z.LineTo(bx, by)
	z.LineTo(cx, cy)
	z.LineTo(dx, dy)
	z.ClosePath()
}

// aff3 reorders a column-major canvas matrix into the row-major layout
// used by x/image.
func aff3(m engine.Matrix2D) f64.Aff3 {
	return f64.Aff3{m[0], m[2], m[4], m[1], m[3], m[5]}
}

func nrgba(c engine.Color) color.NRGBA {
	var out [4]uint8
	for i, v := range c {
		out[i] = uint8(math.Round(float64(min(max(v, 0), 1)) * 0xff))
	}
	return color.NRGBA{R: out[0], G: out[1], B: out[2], A: out[3]}
}
