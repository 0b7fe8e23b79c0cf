package engine

import (
	"encoding/json"
	"fmt"

	"seehuhn.de/go/geom/rect"
	"seehuhn.de/go/geom/vec"
)

// DrawCommand is a single drawing operation for a viewer to execute.
// Geometry is already in world space, in painter's order.
type DrawCommand struct {
	Op        string    `json:"op"`                  // "frame", "stroke" or "photo"
	CanvasID  uint      `json:"canvasId"`            // For hit correlation
	EntityID  uint      `json:"entityId,omitempty"`  // Photo id; strokes have none
	Row       int       `json:"row"`                 // Row within the canvas collection
	Points    []float64 `json:"points"`              // Flattened x, y, z triples
	Transform []float64 `json:"transform,omitempty"` // Image square to canvas plane, [a, b, c, d, e, f]
	Color     string    `json:"color,omitempty"`     // #rrggbbaa
	Selected  bool      `json:"selected,omitempty"`
	Opacity   float64   `json:"opacity,omitempty"`
	Path      string    `json:"path,omitempty"` // Photo image path
}

// Canvas frame colors by role.
var roleColors = map[CanvasRole]Color{
	RoleNormal:   {0.6, 0.6, 0.6, 1},
	RoleCurrent:  {1, 0.4, 0.4, 1},
	RolePrevious: {0.4, 0.4, 1, 1},
	RoleSelected: {0.4, 0.8, 0.4, 1},
}

// frameMargin pads the drawn canvas frame around its content; empty
// canvases get a frame of side 2*frameMargin.
const frameMargin = 0.5

// CompileDrawCommands generates a draw command buffer for the scene. Hidden
// canvases are skipped. The current canvas is drawn last.
func CompileDrawCommands(s *Scene) []DrawCommand {
	if s == nil {
		return nil
	}
	var commands []DrawCommand
	cur := s.Current()
	for _, c := range s.canvases {
		if c != cur && c.visible {
			compileCanvas(c, &commands)
		}
	}
	if cur != nil && cur.visible {
		compileCanvas(cur, &commands)
	}
	return commands
}

func compileCanvas(c *Canvas, commands *[]DrawCommand) {
	*commands = append(*commands, DrawCommand{
		Op:       "frame",
		CanvasID: c.id,
		Row:      -1,
		Points:   worldPoints(c, rectCorners(c.FrameRect())),
		Color:    roleColors[c.Role()].Hex(),
		Selected: c.editing || c.cloning,
	})

	for i, p := range c.photos {
		corners := p.Corners()
		*commands = append(*commands, DrawCommand{
			Op:        "photo",
			CanvasID:  c.id,
			EntityID:  p.id,
			Row:       i,
			Points:    worldPoints(c, corners[:]),
			Transform: p.Matrix().ToSlice(),
			Selected:  c.IsSelectedEntity(p),
			Opacity:   p.opacity,
			Path:      p.path,
		})
	}

	for i, st := range c.strokes {
		color := st.color
		selected := c.IsSelectedEntity(st)
		if selected {
			color = StrokeColorSelected
		}
		*commands = append(*commands, DrawCommand{
			Op:       "stroke",
			CanvasID: c.id,
			Row:      i,
			Points:   worldPoints(c, st.Points()),
			Color:    color.Hex(),
			Selected: selected,
		})
		st.ClearDirty()
	}
}

// FrameRect is the local rectangle drawn as the canvas outline: the
// bounds of its content padded by a margin.
func (c *Canvas) FrameRect() rect.Rect {
	r := rect.Rect{LLx: -frameMargin, LLy: -frameMargin, URx: frameMargin, URy: frameMargin}
	for _, st := range c.strokes {
		if st.NumPoints() > 0 {
			r = unionRect(r, pad(st.Bounds(), frameMargin))
		}
	}
	for _, p := range c.photos {
		r = unionRect(r, pad(p.Bounds(), frameMargin))
	}
	return r
}

func pad(r rect.Rect, m float64) rect.Rect {
	return rect.Rect{LLx: r.LLx - m, LLy: r.LLy - m, URx: r.URx + m, URy: r.URy + m}
}

func rectCorners(r rect.Rect) []vec.Vec2 {
	return []vec.Vec2{
		{X: r.LLx, Y: r.LLy},
		{X: r.URx, Y: r.LLy},
		{X: r.URx, Y: r.URy},
		{X: r.LLx, Y: r.URy},
	}
}

func worldPoints(c *Canvas, pts []vec.Vec2) []float64 {
	out := make([]float64, 0, 3*len(pts))
	for _, p := range pts {
		w := c.ToWorld(p)
		out = append(out, w.X, w.Y, w.Z)
	}
	return out
}

// Hex formats c as #rrggbbaa.
func (c Color) Hex() string {
	var b [4]uint8
	for i, v := range c {
		b[i] = uint8(min(max(v, 0), 1)*255 + 0.5)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", b[0], b[1], b[2], b[3])
}

// DrawCommandsToJSON serializes draw commands to JSON.
func DrawCommandsToJSON(commands []DrawCommand) (string, error) {
	if commands == nil {
		commands = []DrawCommand{}
	}
	data, err := json.Marshal(commands)
	if err != nil {
		return "[]", err
	}
	return string(data), nil
}

// StrokeAt returns the topmost stroke of c with a vertex or segment within
// radius of the local point p, or nil.
func (c *Canvas) StrokeAt(p vec.Vec2, radius float64) *Stroke {
	for i := len(c.strokes) - 1; i >= 0; i-- {
		st := c.strokes[i]
		pts := st.Points()
		for j := range pts {
			if j == 0 {
				if pts[0].Sub(p).Length() <= radius {
					return st
				}
				continue
			}
			if segmentDistance(p, pts[j-1], pts[j]) <= radius {
				return st
			}
		}
	}
	return nil
}

// PhotoAt returns the topmost photo of c containing the local point p.
func (c *Canvas) PhotoAt(p vec.Vec2) *Photo {
	for i := len(c.photos) - 1; i >= 0; i-- {
		ph := c.photos[i]
		inv, ok := ph.Matrix().Invert()
		if !ok {
			continue
		}
		q := inv.Apply(p)
		if q.X >= 0 && q.X <= 1 && q.Y >= 0 && q.Y <= 1 {
			return ph
		}
	}
	return nil
}

func segmentDistance(p, a, b vec.Vec2) float64 {
	ab := b.Sub(a)
	l2 := ab.X*ab.X + ab.Y*ab.Y
	if l2 == 0 {
		return p.Sub(a).Length()
	}
	t := ((p.X-a.X)*ab.X + (p.Y-a.Y)*ab.Y) / l2
	t = min(max(t, 0), 1)
	return p.Sub(a.Add(ab.Mul(t))).Length()
}
