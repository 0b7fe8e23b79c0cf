package engine

// NotificationType identifies a scene change list and tree views react to.
type NotificationType int

const (
	// CanvasAdded carries Name.
	CanvasAdded NotificationType = iota
	// CanvasRemoved carries CanvasIndex, the row the canvas had.
	CanvasRemoved
	// PhotoAdded carries Name and CanvasIndex of the owning canvas.
	PhotoAdded
	// PhotoRemoved carries Name and CanvasIndex of the owning canvas.
	PhotoRemoved
	// CanvasRoleChanged carries CanvasIndex and Role.
	CanvasRoleChanged
	// BookmarksChanged is sent after any bookmark add, update or delete.
	BookmarksChanged
	// UpdateRequested asks views to redraw.
	UpdateRequested
)

var notificationNames = map[NotificationType]string{
	CanvasAdded:       "canvasAdded",
	CanvasRemoved:     "canvasRemoved",
	PhotoAdded:        "photoAdded",
	PhotoRemoved:      "photoRemoved",
	CanvasRoleChanged: "canvasRoleChanged",
	BookmarksChanged:  "bookmarksChanged",
	UpdateRequested:   "updateRequested",
}

func (t NotificationType) String() string {
	if n, ok := notificationNames[t]; ok {
		return n
	}
	return "unknown"
}

// CanvasRole is the display role of a canvas, used by views to color rows.
type CanvasRole int

const (
	RoleNormal CanvasRole = iota
	RoleCurrent
	RolePrevious
	RoleSelected
)

type Notification struct {
	Type        NotificationType `json:"type"`
	Name        string           `json:"name,omitempty"`
	CanvasIndex int              `json:"canvasIndex"`
	Role        CanvasRole       `json:"role,omitempty"`
}

// notifier is a synchronous observer list. Subscribers run on the
// mutating goroutine, before the mutating call returns.
type notifier struct {
	next int
	subs map[int]func(Notification)
	// order keeps delivery in subscription order.
	order []int
}

// Subscribe registers fn and returns a function that removes it.
func (n *notifier) Subscribe(fn func(Notification)) func() {
	if n.subs == nil {
		n.subs = make(map[int]func(Notification))
	}
	id := n.next
	n.next++
	n.subs[id] = fn
	n.order = append(n.order, id)
	return func() {
		delete(n.subs, id)
		for i, o := range n.order {
			if o == id {
				n.order = append(n.order[:i], n.order[i+1:]...)
				break
			}
		}
	}
}

func (n *notifier) publish(ev Notification) {
	for _, id := range append([]int(nil), n.order...) {
		if fn, ok := n.subs[id]; ok {
			fn(ev)
		}
	}
}
