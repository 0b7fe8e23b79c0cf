package engine

// Bookmark is a named camera pose.
type Bookmark struct {
	id   uint
	name string
	pose CameraPose
}

// CameraPose is a look-at camera description.
type CameraPose struct {
	Eye    Vec3
	Center Vec3
	Up     Vec3
}

func (b *Bookmark) ID() uint         { return b.id }
func (b *Bookmark) Name() string     { return b.name }
func (b *Bookmark) Pose() CameraPose { return b.pose }
