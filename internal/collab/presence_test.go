package collab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cherish/cherish/backend-go/internal/document"
	"github.com/cherish/cherish/backend-go/internal/engine"
)

func canvasSet(ids ...uint) func(uint) bool {
	return func(id uint) bool {
		for _, x := range ids {
			if x == id {
				return true
			}
		}
		return false
	}
}

func TestPresenceUpdateDropsUnknownCanvas(t *testing.T) {
	pm := NewPresenceManager()
	exists := canvasSet(0, 1)

	got := pm.Update("client_a", PresencePayload{CanvasID: uintPtr(1)}, exists)
	require.NotNil(t, got.CanvasID)
	assert.Equal(t, uint(1), *got.CanvasID)

	got = pm.Update("client_a", PresencePayload{CanvasID: uintPtr(7), DisplayName: "Ada"}, exists)
	assert.Nil(t, got.CanvasID)
	assert.Equal(t, "Ada", got.DisplayName)
	assert.Same(t, got, pm.GetAll()["client_a"])
}

func TestPresencePrune(t *testing.T) {
	pm := NewPresenceManager()
	all := canvasSet(0, 1, 2)
	camera := &CameraPose{Eye: document.Vec3{0, 0, 5}}
	pm.Update("client_b", PresencePayload{CanvasID: uintPtr(1), Camera: camera}, all)
	pm.Update("client_a", PresencePayload{CanvasID: uintPtr(1)}, all)
	pm.Update("client_c", PresencePayload{CanvasID: uintPtr(2)}, all)
	pm.Update("client_d", PresencePayload{}, all)

	before := pm.GetAll()
	pruned := pm.Prune(canvasSet(0, 2))
	assert.Equal(t, []string{"client_a", "client_b"}, pruned)

	after := pm.GetAll()
	assert.Nil(t, after["client_b"].CanvasID)
	assert.Equal(t, camera, after["client_b"].Camera)
	assert.Equal(t, uint(2), *after["client_c"].CanvasID)
	// Earlier snapshots keep what they saw.
	assert.Equal(t, uint(1), *before["client_b"].CanvasID)

	assert.Empty(t, pm.Prune(canvasSet(0, 2)))
}

func TestRemovesCanvas(t *testing.T) {
	assert.False(t, removesCanvas(nil))
	assert.False(t, removesCanvas([]engine.Notification{{Type: engine.CanvasAdded}}))
	assert.True(t, removesCanvas([]engine.Notification{
		{Type: engine.CanvasRoleChanged},
		{Type: engine.CanvasRemoved, CanvasIndex: 1},
	}))
}
