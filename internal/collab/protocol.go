package collab

import (
	"encoding/json"

	"github.com/cherish/cherish/backend-go/internal/document"
	"github.com/cherish/cherish/backend-go/internal/engine"
)

type Message struct {
	Type     string          `json:"type"`
	SceneID  string          `json:"sceneId,omitempty"`
	ClientID string          `json:"clientId,omitempty"`
	UserID   string          `json:"userId,omitempty"`
	Seq      int64           `json:"seq,omitempty"`
	Payload  json.RawMessage `json:"payload"`
}

// PresencePayload is what a client shares about itself: where its camera
// looks and which canvas it draws on.
type PresencePayload struct {
	Camera      *CameraPose `json:"camera,omitempty"`
	CanvasID    *uint       `json:"canvasId,omitempty"`
	DisplayName string      `json:"displayName,omitempty"`
}

type CameraPose struct {
	Eye    document.Vec3 `json:"eye"`
	Center document.Vec3 `json:"center"`
	Up     document.Vec3 `json:"up"`
}

type PresenceStatePayload struct {
	Presences map[string]*PresencePayload `json:"presences"`
}

type PresenceJoinPayload struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

type PresenceLeavePayload struct {
	UserID string `json:"userId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

const (
	TypePresenceUpdate = "presence.update"
	TypePresenceState  = "presence.state"
	TypePresenceJoin   = "presence.join"
	TypePresenceLeave  = "presence.leave"
	TypeError          = "error"

	// Connection
	TypeWelcome = "welcome"

	// Document sync
	TypeDocSync = "doc.sync"

	// Operation message types
	TypeOpSubmit    = "op.submit"
	TypeOpAck       = "op.ack"
	TypeOpNack      = "op.nack"
	TypeOpBroadcast = "op.broadcast"
)

type WelcomePayload struct {
	ClientID  string `json:"clientId"`
	SceneID   string `json:"sceneId"`
	ServerSeq int64  `json:"serverSeq"`
}

type DocSyncPayload struct {
	Document  *document.SceneDocument `json:"document"`
	ServerSeq int64                   `json:"serverSeq"`
}

// --- Operation Types ---

// Operation types. Gesture operations carry a pointer Event and run as
// start/append/finish sequences; the rest apply in one step.
const (
	OpStrokeAdd        = "stroke.add"
	OpStrokeErase      = "stroke.erase"
	OpSelectionMove    = "selection.move"
	OpSelectionScale   = "selection.scale"
	OpSelectionRotate  = "selection.rotate"
	OpCanvasOffset     = "canvas.offset"
	OpCanvasRotate     = "canvas.rotate"
	OpCanvasClone      = "canvas.clone"
	OpGestureAbort     = "gesture.abort"
	OpCanvasAdd        = "canvas.add"
	OpCanvasDelete     = "canvas.delete"
	OpCanvasCurrent    = "canvas.current"
	OpCanvasTarget     = "canvas.target"
	OpCanvasVisibility = "canvas.visibility"
	OpCanvasOthers     = "canvas.others"
	OpEntitySelect     = "entity.select"
	OpEntityDelete     = "entity.delete"
	OpSelectionAll     = "selection.all"
	OpSelectionClear   = "selection.clear"
	OpSelectionPush    = "selection.push"
	OpPhotoAdd         = "photo.add"
	OpBookmarkAdd      = "bookmark.add"
	OpBookmarkUpdate   = "bookmark.update"
	OpBookmarkDelete   = "bookmark.delete"
	OpHistoryUndo      = "history.undo"
	OpHistoryRedo      = "history.redo"
)

// Entity kinds named by entity.select and entity.delete.
const (
	EntityStroke = "stroke"
	EntityPhoto  = "photo"
)

// Operation is a scene edit submitted by a client. Which fields are read
// depends on Type.
type Operation struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	ClientSeq int64  `json:"clientSeq"`

	// Gestures
	Event    string         `json:"event,omitempty"`
	U        float64        `json:"u,omitempty"`
	V        float64        `json:"v,omitempty"`
	Radius   float64        `json:"radius,omitempty"`
	Point    *document.Vec3 `json:"point,omitempty"`
	Rotation *document.Quat `json:"rotation,omitempty"`
	Center   *document.Vec3 `json:"center,omitempty"`
	Normal   *document.Vec3 `json:"normal,omitempty"`
	Camera   *CameraPose    `json:"camera,omitempty"`

	// Targets
	CanvasID *uint  `json:"canvasId,omitempty"`
	Entity   string `json:"entity,omitempty"`
	Index    *int   `json:"index,omitempty"`
	Visible  *bool  `json:"visible,omitempty"`
	Select   *bool  `json:"select,omitempty"`

	// For photo.add
	Path   string `json:"path,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// OperationSubmitPayload is the payload for op.submit messages
type OperationSubmitPayload struct {
	Operation Operation `json:"operation"`
}

// History is the undo state after an operation.
type History struct {
	CanUndo  bool   `json:"canUndo"`
	CanRedo  bool   `json:"canRedo"`
	UndoText string `json:"undoText,omitempty"`
	RedoText string `json:"redoText,omitempty"`
}

// OperationAckPayload is the payload for op.ack messages
type OperationAckPayload struct {
	OperationID     string                `json:"operationId"`
	ServerSeq       int64                 `json:"serverSeq"`
	ServerTimestamp int64                 `json:"serverTimestamp"`
	State           string                `json:"state,omitempty"`
	History         History               `json:"history"`
	Events          []engine.Notification `json:"events,omitempty"`
}

// OperationNackPayload is the payload for op.nack messages
type OperationNackPayload struct {
	OperationID string `json:"operationId"`
	Reason      string `json:"reason"`
}

// OperationBroadcastPayload is the payload for op.broadcast messages
type OperationBroadcastPayload struct {
	Operation Operation             `json:"operation"`
	UserID    string                `json:"userId"`
	ServerSeq int64                 `json:"serverSeq"`
	History   History               `json:"history"`
	Events    []engine.Notification `json:"events,omitempty"`
}
