package collab

import (
	"encoding/json"
	"log/slog"
	"slices"
	"sync"

	"github.com/cherish/cherish/backend-go/internal/engine"
)

// PresenceManager tracks what each connected client last shared, keyed by
// client id so that one user may join from several windows. A presence
// only names canvases the scene still holds.
type PresenceManager struct {
	mu        sync.RWMutex
	presences map[string]*PresencePayload
}

func NewPresenceManager() *PresenceManager {
	return &PresenceManager{
		presences: make(map[string]*PresencePayload),
	}
}

// Update stores p for clientID and returns the stored copy. A canvas id
// for which exists reports false is dropped.
func (pm *PresenceManager) Update(clientID string, p PresencePayload, exists func(id uint) bool) *PresencePayload {
	if p.CanvasID != nil && !exists(*p.CanvasID) {
		p.CanvasID = nil
	}
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.presences[clientID] = &p
	return &p
}

func (pm *PresenceManager) Remove(clientID string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	delete(pm.presences, clientID)
}

// Prune forgets the canvas of every presence whose canvas no longer
// exists and returns the affected client ids in order.
func (pm *PresenceManager) Prune(exists func(id uint) bool) []string {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	var pruned []string
	for clientID, p := range pm.presences {
		if p.CanvasID == nil || exists(*p.CanvasID) {
			continue
		}
		// Payloads handed out by GetAll are shared, so replace rather than edit.
		cp := *p
		cp.CanvasID = nil
		pm.presences[clientID] = &cp
		pruned = append(pruned, clientID)
	}
	slices.Sort(pruned)
	return pruned
}

func (pm *PresenceManager) GetAll() map[string]*PresencePayload {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	result := make(map[string]*PresencePayload, len(pm.presences))
	for k, v := range pm.presences {
		result[k] = v
	}
	return result
}

func (pm *PresenceManager) StateMessage() *Message {
	all := pm.GetAll()
	payload, err := json.Marshal(PresenceStatePayload{Presences: all})
	if err != nil {
		slog.Error("marshal presence state", "error", err)
		return nil
	}
	return &Message{
		Type:    TypePresenceState,
		Payload: payload,
	}
}

func removesCanvas(events []engine.Notification) bool {
	return slices.ContainsFunc(events, func(n engine.Notification) bool {
		return n.Type == engine.CanvasRemoved
	})
}
