package engine

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"

	_ "golang.org/x/image/bmp"
	"seehuhn.de/go/geom/rect"
	"seehuhn.de/go/geom/vec"
)

// Photo is a textured rectangle in a canvas' local plane, described by its
// center, size and in-plane rotation.
type Photo struct {
	id      uint
	name    string
	path    string
	center  vec.Vec2
	width   float64
	height  float64
	angle   float64
	opacity float64
}

// photoSize is the local extent of the longer side of a newly loaded photo.
const photoSize = 1.0

func newPhoto(id uint, path string, pxWidth, pxHeight int) *Photo {
	w, h := photoSize, photoSize
	if pxWidth > 0 && pxHeight > 0 {
		if pxWidth >= pxHeight {
			h = photoSize * float64(pxHeight) / float64(pxWidth)
		} else {
			w = photoSize * float64(pxWidth) / float64(pxHeight)
		}
	}
	return &Photo{
		id:      id,
		name:    entityName("Photo", id),
		path:    path,
		width:   w,
		height:  h,
		opacity: 1,
	}
}

// ImageSize reads the pixel dimensions of an image file without decoding
// the pixels. PNG, JPEG and BMP are supported.
func ImageSize(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("decode image %s: %w", path, err)
	}
	return cfg.Width, cfg.Height, nil
}

func (p *Photo) ID() uint                 { return p.id }
func (p *Photo) Name() string             { return p.name }
func (p *Photo) Path() string             { return p.path }
func (p *Photo) Center() vec.Vec2         { return p.center }
func (p *Photo) Size() (float64, float64) { return p.width, p.height }
func (p *Photo) Angle() float64           { return p.angle }
func (p *Photo) Opacity() float64         { return p.opacity }

func (p *Photo) SetOpacity(o float64) { p.opacity = min(max(o, 0), 1) }

func (p *Photo) EntityType() EntityType { return EntityPhoto }

// Corners returns the four local corners, counter-clockwise from the
// lower left one.
func (p *Photo) Corners() [4]vec.Vec2 {
	m := p.Matrix()
	var out [4]vec.Vec2
	for i, c := range [4]vec.Vec2{{}, {X: 1}, {X: 1, Y: 1}, {Y: 1}} {
		out[i] = m.Apply(c)
	}
	return out
}

// Matrix maps image coordinates in [0,1]x[0,1] onto the canvas plane.
func (p *Photo) Matrix() Matrix2D {
	return PhotoMatrix(p.center, p.width, p.height, p.angle)
}

func (p *Photo) Bounds() rect.Rect {
	c := p.Corners()
	return boundsOf(c[:])
}

func (p *Photo) MoveDelta(du, dv float64) {
	p.center = p.center.Add(vec.Vec2{X: du, Y: dv})
}

// Scale scales the photo around center. Factors apply along the photo's
// own axes, so a rotated photo stays rectangular.
func (p *Photo) Scale(sx, sy float64, center vec.Vec2) {
	p.center = scale2(p.center, center, sx, sy)
	p.width *= sx
	p.height *= sy
}

func (p *Photo) Rotate(theta float64, center vec.Vec2) {
	p.center = rotate2(p.center, center, theta)
	p.angle += theta
}

type photoGeometry struct {
	center        vec.Vec2
	width, height float64
	angle         float64
}

func (p *Photo) snapshot() geometry {
	return photoGeometry{p.center, p.width, p.height, p.angle}
}

func (p *Photo) restore(g geometry) {
	pg := g.(photoGeometry)
	p.center, p.width, p.height, p.angle = pg.center, pg.width, pg.height, pg.angle
}

// anchors are the center and the midpoint of the right edge, which fix
// position, in-plane rotation and width after a re-projection.
func (p *Photo) anchors() []vec.Vec2 {
	right := rotate2(p.center.Add(vec.Vec2{X: p.width / 2}), p.center, p.angle)
	return []vec.Vec2{p.center, right}
}

func (p *Photo) setAnchors(pts []vec.Vec2) {
	center, right := pts[0], pts[1]
	d := right.Sub(center)
	w := 2 * d.Length()
	if p.width > 0 {
		p.height *= w / p.width
	}
	p.width = w
	p.center = center
	p.angle = math.Atan2(d.Y, d.X)
}

func entityName(prefix string, id uint) string {
	return fmt.Sprintf("%s%d", prefix, id)
}
