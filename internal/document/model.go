// Package document holds the serializable records of a scene. The engine
// converts its live entities to and from these records; storage and the
// network layer only ever see records.
package document

// PrimitiveLineStripAdjacency is the topology every stroke is drawn with.
const PrimitiveLineStripAdjacency = "lineStripAdjacency"

const Version = 1

type SceneDocument struct {
	Version    int        `json:"version"`
	FilePath   string     `json:"filePath,omitempty"`
	IDCanvas   uint       `json:"idCanvas"`
	IDPhoto    uint       `json:"idPhoto"`
	IDBookmark uint       `json:"idBookmark"`
	Canvases   []Canvas   `json:"canvases"`
	Bookmarks  []Bookmark `json:"bookmarks"`

	// Role references are canvas ids; nil means unset.
	Current  *uint `json:"current,omitempty"`
	Previous *uint `json:"previous,omitempty"`
}

// Vec3 is an x, y, z triple.
type Vec3 [3]float64

// Quat is a rotation quaternion stored as x, y, z, w.
type Quat [4]float64

// Color is an RGBA color with components in [0, 1].
type Color [4]float32

type Canvas struct {
	ID          uint     `json:"id"`
	Name        string   `json:"name"`
	Rotation    Quat     `json:"rotation"`
	Translation Vec3     `json:"translation"`
	Visible     bool     `json:"visible"`
	Strokes     []Stroke `json:"strokes"`
	Photos      []Photo  `json:"photos"`
}

type Stroke struct {
	Points    []Vec3 `json:"points"`
	Color     Color  `json:"color"`
	Primitive string `json:"primitive"`
}

type Photo struct {
	ID      uint    `json:"id"`
	Name    string  `json:"name"`
	Path    string  `json:"path"`
	CenterU float64 `json:"centerU"`
	CenterV float64 `json:"centerV"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Angle   float64 `json:"angle"`
	Opacity float64 `json:"opacity"`
}

type Bookmark struct {
	ID     uint   `json:"id"`
	Name   string `json:"name"`
	Eye    Vec3   `json:"eye"`
	Center Vec3   `json:"center"`
	Up     Vec3   `json:"up"`
}

// NewEmptyDocument creates a document with no canvases.
func NewEmptyDocument(filePath string) *SceneDocument {
	return &SceneDocument{
		Version:   Version,
		FilePath:  filePath,
		Canvases:  []Canvas{},
		Bookmarks: []Bookmark{},
	}
}

// NewSampleDocument creates the default starting scene: three orthogonal
// canvases through the origin and a single bookmark looking at them.
func NewSampleDocument() *SceneDocument {
	const s = 0.7071067811865476
	current := uint(0)
	previous := uint(1)
	return &SceneDocument{
		Version:    Version,
		IDCanvas:   3,
		IDBookmark: 1,
		Canvases: []Canvas{
			{ID: 0, Name: "Canvas0", Rotation: Quat{0, 0, 0, 1}, Visible: true, Strokes: []Stroke{}, Photos: []Photo{}},
			{ID: 1, Name: "Canvas1", Rotation: Quat{s, 0, 0, s}, Visible: true, Strokes: []Stroke{}, Photos: []Photo{}},
			{ID: 2, Name: "Canvas2", Rotation: Quat{0, s, 0, s}, Visible: true, Strokes: []Stroke{}, Photos: []Photo{}},
		},
		Bookmarks: []Bookmark{
			{ID: 0, Name: "Bookmark0", Eye: Vec3{0, -10, 5}, Center: Vec3{0, 0, 0}, Up: Vec3{0, 0, 1}},
		},
		Current:  &current,
		Previous: &previous,
	}
}
