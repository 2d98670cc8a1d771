package domain

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestWorkspaceJSONShape(t *testing.T) {
	ws := NewWorkspace("2026-10-19T00:00:00.000Z")
	ws.Profile.Name = "Dana"
	ws.Profile.RegulatoryID = "TXD000000001"
	ws = ws.WithCollection(CollectionLDAR, []Record{{FieldID: "a", "tag": "V-1", "ppm": json.Number("620")}})

	data, err := json.Marshal(ws)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range CollectionKeys {
		if _, ok := doc[string(key)]; !ok {
			t.Fatalf("document missing %s", key)
		}
	}
	for _, key := range []string{"profile", "created", "modified"} {
		if _, ok := doc[key]; !ok {
			t.Fatalf("document missing %s", key)
		}
	}
	if !strings.Contains(string(doc["profile"]), `"epaId":"TXD000000001"`) {
		t.Fatalf("profile = %s", doc["profile"])
	}
	if string(doc["ghg"]) != "[]" {
		t.Fatalf("empty collection encoded as %s", doc["ghg"])
	}
	if !strings.Contains(string(doc["ldar"]), `"ppm":620`) {
		t.Fatalf("number not preserved: %s", doc["ldar"])
	}
}

func TestWorkspaceUnmarshalMergesOverDefaults(t *testing.T) {
	ws := NewWorkspace("2026-01-01T00:00:00.000Z")
	doc := `{"profile":{"name":"A","facility":"B"},"ldar":[{"_id":"x","ppm":12.50}],"ghg":null,"customNote":{"a":1}}`
	if err := json.Unmarshal([]byte(doc), &ws); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ws.Created != "2026-01-01T00:00:00.000Z" {
		t.Fatalf("absent created should keep the default, got %q", ws.Created)
	}
	if ws.Profile.Title != "" {
		t.Fatalf("profile should be replaced wholesale, title = %q", ws.Profile.Title)
	}
	recs := ws.Records(CollectionLDAR)
	if len(recs) != 1 || recs[0]["ppm"] != json.Number("12.50") {
		t.Fatalf("records = %#v", recs)
	}
	if ghg := ws.Collections[CollectionGHG]; ghg == nil || len(ghg) != 0 {
		t.Fatalf("null collection should decode empty, got %#v", ghg)
	}
	if string(ws.Extra["customNote"]) != `{"a":1}` {
		t.Fatalf("extra = %s", ws.Extra["customNote"])
	}

	out, err := json.Marshal(ws)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(out), `"customNote":{"a":1}`) || !strings.Contains(string(out), `"ppm":12.50`) {
		t.Fatalf("round trip lost data: %s", out)
	}
}

func TestWorkspaceUnmarshalRejectsNonObjects(t *testing.T) {
	for _, doc := range []string{`[]`, `"x"`, `{"ldar":{}}`, `{"ldar":[null]}`} {
		var ws Workspace
		if err := json.Unmarshal([]byte(doc), &ws); err == nil {
			t.Fatalf("%s: expected error", doc)
		}
	}
}

func TestWithCollectionDoesNotMutate(t *testing.T) {
	ws := NewWorkspace("x")
	next := ws.WithCollection(CollectionRCRA, []Record{{"code": "D001"}})
	if len(ws.Records(CollectionRCRA)) != 0 {
		t.Fatalf("original workspace mutated")
	}
	if len(next.Records(CollectionRCRA)) != 1 || next.RecordCount() != 1 {
		t.Fatalf("collection not replaced")
	}
}

func TestCloneIsDeep(t *testing.T) {
	ws := NewWorkspace("x").WithCollection(CollectionLDAR, []Record{{"tag": "V-1"}})
	ws.Extra = map[string]json.RawMessage{"k": json.RawMessage(`1`)}
	cp := ws.Clone()
	cp.Collections[CollectionLDAR][0]["tag"] = "changed"
	cp.Extra["k"][0] = '2'
	if ws.Records(CollectionLDAR)[0]["tag"] != "V-1" || string(ws.Extra["k"]) != "1" {
		t.Fatalf("clone shares state with original")
	}
}

func TestRecordHelpers(t *testing.T) {
	r := Record{FieldID: "id-1", FieldCreated: "t", "n": json.Number("4"), "b": true, "nil": nil}
	if r.ID() != "id-1" || r.Text("n") != "4" || r.Text("b") != "true" || r.Text("nil") != "" || r.Text("missing") != "" {
		t.Fatalf("text rendering wrong")
	}
	pub := r.Public()
	if _, ok := pub[FieldID]; ok {
		t.Fatalf("public kept system field")
	}
	if len(pub) != 3 {
		t.Fatalf("public = %v", pub)
	}
}

func TestNormalize(t *testing.T) {
	ghost := "ghost"
	s := RootState{
		Workspaces: map[string]Workspace{"b": {}, "a": {}, "c": {}},
		Order:      []string{"c", "ghost", "c"},
		LastOpen:   &ghost,
	}
	got := s.Normalize()
	if !reflect.DeepEqual(got.Order, []string{"c", "a", "b"}) {
		t.Fatalf("order = %v", got.Order)
	}
	if got.LastOpen != nil {
		t.Fatalf("dangling lastOpen kept")
	}

	empty := RootState{}.Normalize()
	if empty.Workspaces == nil || len(empty.Order) != 0 {
		t.Fatalf("empty root = %+v", empty)
	}
}

func TestRootStateJSON(t *testing.T) {
	id := "w1"
	s := NewRootState().WithWorkspace(id, NewWorkspace("x"))
	s.Order = []string{id}
	s.LastOpen = &id
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"lastOpen":"w1"`) || !strings.Contains(string(data), `"order":["w1"]`) {
		t.Fatalf("root = %s", data)
	}
	var back RootState
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if open, ok := back.Open(); !ok || open != id {
		t.Fatalf("open = %q", open)
	}

	closed := NewRootState()
	data, _ = json.Marshal(closed)
	if !strings.Contains(string(data), `"lastOpen":null`) {
		t.Fatalf("closed root = %s", data)
	}
}
