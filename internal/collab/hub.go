package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cherish/cherish/backend-go/internal/document"
)

// storeTimeout bounds a single load or save issued by the hub.
const storeTimeout = 10 * time.Second

// Loader fetches the stored document of a scene.
type Loader func(ctx context.Context, sceneID string) (*document.SceneDocument, error)

// Saver persists a scene document as the next version.
type Saver func(ctx context.Context, sceneID string, doc *document.SceneDocument) error

type Room struct {
	sceneID  string
	clients  map[string]*Client // clientID -> client
	presence *PresenceManager
	state    *SceneState
}

func NewRoom(sceneID string, state *SceneState) *Room {
	return &Room{
		sceneID:  sceneID,
		clients:  make(map[string]*Client),
		presence: NewPresenceManager(),
		state:    state,
	}
}

// Hub keeps one room per open scene. Rooms are loaded when their first
// client joins, saved every autosave interval while dirty, and saved and
// dropped when their last client leaves. A room whose save failed stays
// open without clients until a later save succeeds.
type Hub struct {
	mu         sync.RWMutex
	rooms      map[string]*Room // sceneID -> room
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopped    chan struct{}
	stopOnce   sync.Once

	load     Loader
	save     Saver
	autosave time.Duration
}

// NewHub creates a hub. A zero autosave interval saves only when rooms
// close and on Stop.
func NewHub(load Loader, save Saver, autosave time.Duration) *Hub {
	return &Hub{
		rooms:      make(map[string]*Room),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
		load:       load,
		save:       save,
		autosave:   autosave,
	}
}

func (h *Hub) Run() {
	defer close(h.stopped)

	var tick <-chan time.Time
	if h.autosave > 0 {
		ticker := time.NewTicker(h.autosave)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-tick:
			h.saveAll()
		case <-h.done:
			h.saveAll()
			return
		}
	}
}

// Stop saves every dirty room and ends Run.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
	<-h.stopped
}

// Register hands client to the hub. It reports false once the hub stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Snapshot returns the live document of an open scene.
func (h *Hub) Snapshot(sceneID string) (*document.SceneDocument, bool) {
	room := h.room(sceneID)
	if room == nil {
		return nil, false
	}
	doc, _ := room.state.Snapshot()
	return doc, true
}

// Render returns the draw commands of an open scene.
func (h *Hub) Render(sceneID string) (string, bool) {
	room := h.room(sceneID)
	if room == nil {
		return "", false
	}
	return room.state.Render(), true
}

func (h *Hub) room(sceneID string) *Room {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[sceneID]
}

func (h *Hub) openRoom(sceneID string) (*Room, error) {
	if room := h.room(sceneID); room != nil {
		return room, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	doc, err := h.load(ctx, sceneID)
	if err != nil {
		return nil, err
	}
	state, err := NewSceneState(doc)
	if err != nil {
		return nil, err
	}

	room := NewRoom(sceneID, state)
	h.mu.Lock()
	h.rooms[sceneID] = room
	h.mu.Unlock()
	slog.Info("scene opened", "scene", sceneID)
	return room, nil
}

func (h *Hub) addClient(client *Client) {
	room, err := h.openRoom(client.SceneID)
	if err != nil {
		slog.Error("open scene", "error", err, "scene", client.SceneID)
		client.Send(errorMessage("scene could not be loaded"))
		client.close()
		return
	}

	h.mu.Lock()
	room.clients[client.ClientID] = client
	h.mu.Unlock()

	doc, seq := room.state.Snapshot()
	client.Send(payloadMessage(TypeWelcome, WelcomePayload{
		ClientID:  client.ClientID,
		SceneID:   client.SceneID,
		ServerSeq: seq,
	}))
	client.Send(payloadMessage(TypeDocSync, DocSyncPayload{Document: doc, ServerSeq: seq}))

	// Send current presence state to new client
	if stateMsg := room.presence.StateMessage(); stateMsg != nil {
		client.Send(stateMsg)
	}

	// Broadcast join to other clients
	joinMsg := payloadMessage(TypePresenceJoin, PresenceJoinPayload{
		UserID:      client.UserID,
		DisplayName: client.DisplayName,
	})
	joinMsg.UserID = client.UserID
	joinMsg.ClientID = client.ClientID
	h.broadcastToRoom(client.SceneID, joinMsg, client.ClientID)

	slog.Info("client joined", "user", client.UserID, "scene", client.SceneID)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.SceneID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, member := room.clients[client.ClientID]; !member {
		h.mu.Unlock()
		return
	}
	delete(room.clients, client.ClientID)
	client.close()
	empty := len(room.clients) == 0
	h.mu.Unlock()

	room.presence.Remove(client.ClientID)

	if res, ok := room.state.Release(client.ClientID); ok {
		h.broadcastResult(room, client, Operation{Type: OpGestureAbort}, res)
	}

	if empty {
		if err := h.saveRoom(room); err != nil {
			// The autosave tick or Stop retries; the edits stay in memory.
			slog.Error("save scene, keeping it open", "error", err, "scene", client.SceneID)
		} else {
			h.closeIfEmpty(room)
		}
	}

	// Broadcast leave to remaining clients
	leaveMsg := payloadMessage(TypePresenceLeave, PresenceLeavePayload{UserID: client.UserID})
	leaveMsg.UserID = client.UserID
	leaveMsg.ClientID = client.ClientID
	h.broadcastToRoom(client.SceneID, leaveMsg, "")

	slog.Info("client left", "user", client.UserID, "scene", client.SceneID)
}

func (h *Hub) saveAll() {
	h.mu.RLock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, room := range h.rooms {
		rooms = append(rooms, room)
	}
	h.mu.RUnlock()

	for _, room := range rooms {
		if err := h.saveRoom(room); err != nil {
			slog.Error("save scene", "error", err, "scene", room.sceneID)
			continue
		}
		// Rooms left open by an earlier failed save close once they are stored.
		h.closeIfEmpty(room)
	}
}

// saveRoom stores the live document of room if it changed since the last
// successful save.
func (h *Hub) saveRoom(room *Room) error {
	if !room.state.Dirty() {
		return nil
	}
	doc, seq := room.state.Snapshot()

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := h.save(ctx, room.sceneID, doc); err != nil {
		return fmt.Errorf("save scene %s at seq %d: %w", room.sceneID, seq, err)
	}
	room.state.MarkSaved(seq)
	slog.Debug("scene saved", "scene", room.sceneID, "seq", seq)
	return nil
}

func (h *Hub) closeIfEmpty(room *Room) {
	h.mu.Lock()
	// A client may have joined while the room was saved.
	closed := len(room.clients) == 0 && h.rooms[room.sceneID] == room
	if closed {
		delete(h.rooms, room.sceneID)
	}
	h.mu.Unlock()
	if closed {
		slog.Info("scene closed", "scene", room.sceneID)
	}
}

func (h *Hub) handleMessage(sender *Client, msg *Message) {
	switch msg.Type {
	case TypePresenceUpdate:
		h.handlePresenceUpdate(sender, msg)
	case TypeOpSubmit:
		h.handleOperation(sender, msg)
	default:
		slog.Warn("unknown message type", "type", msg.Type, "user", sender.UserID)
	}
}

func (h *Hub) handlePresenceUpdate(sender *Client, msg *Message) {
	var presence PresencePayload
	if err := json.Unmarshal(msg.Payload, &presence); err != nil {
		slog.Warn("invalid presence payload", "error", err)
		return
	}

	presence.DisplayName = sender.DisplayName

	room := h.room(sender.SceneID)
	if room == nil {
		return
	}

	stored := room.presence.Update(sender.ClientID, presence, room.state.HasCanvas)

	// Broadcast to other clients in room
	outMsg := payloadMessage(TypePresenceUpdate, stored)
	outMsg.UserID = sender.UserID
	outMsg.ClientID = sender.ClientID
	h.broadcastToRoom(sender.SceneID, outMsg, sender.ClientID)
}

func (h *Hub) handleOperation(sender *Client, msg *Message) {
	var submit OperationSubmitPayload
	if err := json.Unmarshal(msg.Payload, &submit); err != nil {
		slog.Warn("invalid operation payload", "error", err, "user", sender.UserID)
		sender.Send(errorMessage("invalid operation payload"))
		return
	}
	op := submit.Operation

	room := h.room(sender.SceneID)
	if room == nil {
		return
	}

	res, err := room.state.Apply(sender.ClientID, op)
	if err != nil {
		slog.Debug("operation rejected", "error", err, "op", op.Type, "user", sender.UserID)
		sender.Send(payloadMessage(TypeOpNack, OperationNackPayload{
			OperationID: op.ID,
			Reason:      err.Error(),
		}))
		return
	}

	ack := payloadMessage(TypeOpAck, OperationAckPayload{
		OperationID:     op.ID,
		ServerSeq:       res.ServerSeq,
		ServerTimestamp: GetServerTimestamp(),
		State:           res.State,
		History:         res.History,
		Events:          res.Events,
	})
	ack.Seq = res.ServerSeq
	sender.Send(ack)

	h.broadcastResult(room, sender, op, res)
}

// broadcastResult tells every client but sender about an applied operation.
func (h *Hub) broadcastResult(room *Room, sender *Client, op Operation, res *Result) {
	out := payloadMessage(TypeOpBroadcast, OperationBroadcastPayload{
		Operation: op,
		UserID:    sender.UserID,
		ServerSeq: res.ServerSeq,
		History:   res.History,
		Events:    res.Events,
	})
	out.Seq = res.ServerSeq
	out.UserID = sender.UserID
	h.broadcastToRoom(room.sceneID, out, sender.ClientID)

	if removesCanvas(res.Events) {
		h.prunePresence(room)
	}
}

// prunePresence drops deleted canvases from the room's presences and, if
// any changed, sends everyone the new presence state.
func (h *Hub) prunePresence(room *Room) {
	pruned := room.presence.Prune(room.state.HasCanvas)
	if len(pruned) == 0 {
		return
	}
	slog.Debug("presence pruned", "scene", room.sceneID, "clients", pruned)
	if msg := room.presence.StateMessage(); msg != nil {
		h.broadcastToRoom(room.sceneID, msg, "")
	}
}

func (h *Hub) broadcastToRoom(sceneID string, msg *Message, excludeClientID string) {
	h.mu.RLock()
	room, ok := h.rooms[sceneID]
	if !ok {
		h.mu.RUnlock()
		return
	}

	clients := make([]*Client, 0, len(room.clients))
	for _, c := range room.clients {
		if c.ClientID != excludeClientID {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Send(msg)
	}
}

func payloadMessage(typ string, payload any) *Message {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal payload", "error", err, "type", typ)
		data = []byte("null")
	}
	return &Message{Type: typ, Payload: data}
}

func errorMessage(text string) *Message {
	return payloadMessage(TypeError, ErrorPayload{Message: text})
}
