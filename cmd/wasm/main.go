//go:build js && wasm

package main

import (
	"encoding/json"
	"syscall/js"

	"github.com/cherish/cherish/backend-go/internal/collab"
	"github.com/cherish/cherish/backend-go/internal/document"
)

// localClient is the client id of every operation applied in the browser.
const localClient = "local"

var state *collab.SceneState

func main() {
	var err error
	state, err = collab.NewSceneState(nil)
	if err != nil {
		panic(err)
	}

	// Create the engine API object
	cherishEngine := js.Global().Get("Object").New()

	// --- Commands (frontend → backend) ---
	cherishEngine.Set("loadDocument", js.FuncOf(loadDocument))
	cherishEngine.Set("loadSampleDocument", js.FuncOf(loadSampleDocument))
	cherishEngine.Set("applyOperation", js.FuncOf(applyOperation))

	// --- Queries (frontend ← backend) ---
	cherishEngine.Set("render", js.FuncOf(render))
	cherishEngine.Set("pick", js.FuncOf(pick))
	cherishEngine.Set("getDocument", js.FuncOf(getDocument))
	cherishEngine.Set("getHistory", js.FuncOf(getHistory))

	// Register on global scope
	js.Global().Set("cherishEngine", cherishEngine)

	// Signal that WASM is ready
	js.Global().Set("cherishWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

// --- Command Handlers ---

func loadDocument(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("missing document JSON")
	}

	var doc document.SceneDocument
	if err := json.Unmarshal([]byte(args[0].String()), &doc); err != nil {
		return errorResult(err.Error())
	}
	return replaceState(&doc)
}

func loadSampleDocument(this js.Value, args []js.Value) interface{} {
	return replaceState(nil)
}

func replaceState(doc *document.SceneDocument) interface{} {
	next, err := collab.NewSceneState(doc)
	if err != nil {
		return errorResult(err.Error())
	}
	state = next
	return js.ValueOf(map[string]interface{}{"ok": true})
}

// applyOperation takes an operation as JSON, in the same format clients
// submit to the server, and returns the result as JSON.
func applyOperation(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("missing operation JSON")
	}

	var op collab.Operation
	if err := json.Unmarshal([]byte(args[0].String()), &op); err != nil {
		return errorResult(err.Error())
	}

	res, err := state.Apply(localClient, op)
	if err != nil {
		return errorResult(err.Error())
	}

	out, err := json.Marshal(collab.OperationAckPayload{
		OperationID:     op.ID,
		ServerSeq:       res.ServerSeq,
		ServerTimestamp: collab.GetServerTimestamp(),
		State:           res.State,
		History:         res.History,
		Events:          res.Events,
	})
	if err != nil {
		return errorResult(err.Error())
	}
	return js.ValueOf(string(out))
}

// --- Query Handlers ---

func render(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(state.Render())
}

func pick(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return js.ValueOf(`{"index":-1}`)
	}
	out, _ := json.Marshal(state.Pick(args[0].Float(), args[1].Float(), args[2].Float()))
	return js.ValueOf(string(out))
}

func getDocument(this js.Value, args []js.Value) interface{} {
	doc, _ := state.Snapshot()
	out, err := json.Marshal(doc)
	if err != nil {
		return js.ValueOf("{}")
	}
	return js.ValueOf(string(out))
}

func getHistory(this js.Value, args []js.Value) interface{} {
	out, _ := json.Marshal(state.History())
	return js.ValueOf(string(out))
}

func errorResult(msg string) interface{} {
	return js.ValueOf(map[string]interface{}{"error": msg})
}
