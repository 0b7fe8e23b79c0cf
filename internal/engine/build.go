package engine

import (
	"fmt"
	"log/slog"
	"math"

	"seehuhn.de/go/geom/vec"

	"github.com/cherish/cherish/backend-go/internal/document"
)

// BuildScene builds a live scene from a document record. Id counters are
// raised past every id in use so ids stay unique after loading. Role
// references naming a missing canvas are dropped.
func BuildScene(doc *document.SceneDocument) (*Scene, error) {
	s := NewScene()
	if doc == nil {
		return s, nil
	}
	if doc.Version > document.Version {
		return nil, fmt.Errorf("document version %d: %w", doc.Version, ErrInvalidDocument)
	}

	s.filePath = doc.FilePath
	s.idCanvas, s.idPhoto, s.idBookmark = doc.IDCanvas, doc.IDPhoto, doc.IDBookmark

	canvasIDs := make(map[uint]bool, len(doc.Canvases))
	photoIDs := make(map[uint]bool)
	for _, dc := range doc.Canvases {
		if canvasIDs[dc.ID] {
			return nil, fmt.Errorf("duplicate canvas id %d: %w", dc.ID, ErrInvalidDocument)
		}
		canvasIDs[dc.ID] = true
		s.idCanvas = max(s.idCanvas, dc.ID+1)

		c := newCanvas(dc.ID, dc.Name, Frame{
			Rotation:    quatFromRecord(dc.Rotation),
			Translation: vec3FromRecord(dc.Translation),
		})
		c.visible = dc.Visible
		for _, ds := range dc.Strokes {
			st := strokeFromRecord(ds)
			if err := st.Check(); err != nil {
				slog.Warn("loaded stroke is off its canvas plane", "canvas", c.name, "error", err)
			}
			c.strokes = append(c.strokes, st)
		}
		for _, dp := range dc.Photos {
			if photoIDs[dp.ID] {
				return nil, fmt.Errorf("duplicate photo id %d: %w", dp.ID, ErrInvalidDocument)
			}
			photoIDs[dp.ID] = true
			s.idPhoto = max(s.idPhoto, dp.ID+1)
			c.photos = append(c.photos, photoFromRecord(dp))
		}
		s.canvases = append(s.canvases, c)
	}

	for _, db := range doc.Bookmarks {
		s.idBookmark = max(s.idBookmark, db.ID+1)
		name := db.Name
		if name == "" {
			name = entityName("Bookmark", db.ID)
		}
		s.bookmarks = append(s.bookmarks, &Bookmark{
			id:   db.ID,
			name: name,
			pose: CameraPose{
				Eye:    vec3FromRecord(db.Eye),
				Center: vec3FromRecord(db.Center),
				Up:     vec3FromRecord(db.Up),
			},
		})
	}

	if doc.Current != nil && canvasIDs[*doc.Current] {
		s.refs.current = canvasRef{id: *doc.Current, set: true}
	}
	if doc.Previous != nil && canvasIDs[*doc.Previous] && s.refs.current.set && *doc.Previous != *doc.Current {
		s.refs.previous = canvasRef{id: *doc.Previous, set: true}
	}
	s.syncRoles()
	return s, nil
}

// ToDocument converts the scene into a document record. Transient state
// such as selections and the target role is not saved.
func ToDocument(s *Scene) *document.SceneDocument {
	doc := document.NewEmptyDocument(s.filePath)
	doc.IDCanvas, doc.IDPhoto, doc.IDBookmark = s.idCanvas, s.idPhoto, s.idBookmark

	for _, c := range s.canvases {
		dc := document.Canvas{
			ID:          c.id,
			Name:        c.name,
			Rotation:    document.Quat{c.frame.Rotation.X, c.frame.Rotation.Y, c.frame.Rotation.Z, c.frame.Rotation.W},
			Translation: vec3ToRecord(c.frame.Translation),
			Visible:     c.visible,
			Strokes:     make([]document.Stroke, 0, len(c.strokes)),
			Photos:      make([]document.Photo, 0, len(c.photos)),
		}
		for _, st := range c.strokes {
			ds := document.Stroke{
				Points:    make([]document.Vec3, len(st.pts)),
				Color:     document.Color(st.color),
				Primitive: document.PrimitiveLineStripAdjacency,
			}
			for i, p := range st.pts {
				ds.Points[i] = vec3ToRecord(p)
			}
			dc.Strokes = append(dc.Strokes, ds)
		}
		for _, p := range c.photos {
			dc.Photos = append(dc.Photos, document.Photo{
				ID:      p.id,
				Name:    p.name,
				Path:    p.path,
				CenterU: p.center.X,
				CenterV: p.center.Y,
				Width:   p.width,
				Height:  p.height,
				Angle:   p.angle,
				Opacity: p.opacity,
			})
		}
		doc.Canvases = append(doc.Canvases, dc)
	}

	for _, b := range s.bookmarks {
		doc.Bookmarks = append(doc.Bookmarks, document.Bookmark{
			ID:     b.id,
			Name:   b.name,
			Eye:    vec3ToRecord(b.pose.Eye),
			Center: vec3ToRecord(b.pose.Center),
			Up:     vec3ToRecord(b.pose.Up),
		})
	}

	if c := s.Current(); c != nil {
		id := c.id
		doc.Current = &id
	}
	if c := s.Previous(); c != nil {
		id := c.id
		doc.Previous = &id
	}
	return doc
}

func strokeFromRecord(ds document.Stroke) *Stroke {
	st := &Stroke{color: Color(ds.Color), dirty: true}
	if st.color == (Color{}) {
		st.color = StrokeColorNormal
	}
	st.pts = make([]Vec3, len(ds.Points))
	for i, p := range ds.Points {
		st.pts[i] = vec3FromRecord(p)
	}
	return st
}

func photoFromRecord(dp document.Photo) *Photo {
	name := dp.Name
	if name == "" {
		name = entityName("Photo", dp.ID)
	}
	return &Photo{
		id:      dp.ID,
		name:    name,
		path:    dp.Path,
		center:  vec.Vec2{X: dp.CenterU, Y: dp.CenterV},
		width:   dp.Width,
		height:  dp.Height,
		angle:   dp.Angle,
		opacity: dp.Opacity,
	}
}

// quatFromRecord normalizes a stored rotation that drifted from unit
// length; an all-zero record reads as the identity.
func quatFromRecord(q document.Quat) Quat {
	r := Quat{q[0], q[1], q[2], q[3]}
	if r == (Quat{}) {
		return QuatIdentity()
	}
	if l := r.X*r.X + r.Y*r.Y + r.Z*r.Z + r.W*r.W; math.Abs(l-1) > Epsilon {
		return r.Normalize()
	}
	return r
}

func vec3FromRecord(v document.Vec3) Vec3 { return Vec3{v[0], v[1], v[2]} }
func vec3ToRecord(v Vec3) document.Vec3   { return document.Vec3{v.X, v.Y, v.Z} }
