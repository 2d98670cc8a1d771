// Package domain defines the persisted root document, workspaces, generic
// records, module schemas, and the rule evaluation primitives used by
// envirotrack.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// CollectionKey identifies one of the ten record collections held by a workspace.
type CollectionKey string

// Supported collection keys. The declaration order is the display order used
// across the application.
const (
	// CollectionLDAR holds leak detection and repair readings.
	CollectionLDAR CollectionKey = "ldar"
	// CollectionGHG holds greenhouse gas reporting periods.
	CollectionGHG CollectionKey = "ghg"
	// CollectionBWON holds benzene waste stream records.
	CollectionBWON CollectionKey = "bwon"
	// CollectionPermits holds environmental permits.
	CollectionPermits CollectionKey = "permits"
	// CollectionIncidents holds notices of violation, deviations, and spills.
	CollectionIncidents CollectionKey = "incidents"
	// CollectionRCRA holds hazardous waste accumulation streams.
	CollectionRCRA CollectionKey = "rcra"
	// CollectionSPCC holds oil storage tank inventories.
	CollectionSPCC CollectionKey = "spcc"
	// CollectionFlare holds flare events.
	CollectionFlare CollectionKey = "flare"
	// CollectionStacks holds stack performance tests.
	CollectionStacks CollectionKey = "stacks"
	// CollectionCorrectiveActions holds corrective action items.
	CollectionCorrectiveActions CollectionKey = "cas"
)

// CollectionKeys lists every collection in declaration order.
var CollectionKeys = []CollectionKey{
	CollectionLDAR,
	CollectionGHG,
	CollectionBWON,
	CollectionPermits,
	CollectionIncidents,
	CollectionRCRA,
	CollectionSPCC,
	CollectionFlare,
	CollectionStacks,
	CollectionCorrectiveActions,
}

// Valid reports whether k names a known collection.
func (k CollectionKey) Valid() bool {
	for _, known := range CollectionKeys {
		if k == known {
			return true
		}
	}
	return false
}

// System field names carried by every record. The leading underscore marks a
// field as internal; exports strip such fields.
const (
	FieldID      = "_id"
	FieldCreated = "_ts"
	FieldUpdated = "_upd"
)

// IsSystemField reports whether name is an internal bookkeeping field.
func IsSystemField(name string) bool {
	return strings.HasPrefix(name, "_")
}

// Record is one entry in a collection: module-specific fields plus the system
// fields. Values are whatever JSON produced (strings, json.Number, bools, nil).
type Record map[string]any

// ID returns the record identifier or "" when unset.
func (r Record) ID() string {
	return r.Text(FieldID)
}

// Text renders a field as a string; nil and missing fields render as "".
func (r Record) Text(field string) string {
	v, ok := r[field]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	cp := make(Record, len(r))
	for k, v := range r {
		cp[k] = v
	}
	return cp
}

// Public returns a copy of the record without system fields.
func (r Record) Public() Record {
	cp := make(Record, len(r))
	for k, v := range r {
		if IsSystemField(k) {
			continue
		}
		cp[k] = v
	}
	return cp
}

// Profile carries analyst and facility metadata. Fields are free-form.
type Profile struct {
	Name           string `json:"name" validate:"required"`
	Title          string `json:"title"`
	Facility       string `json:"facility" validate:"required"`
	RegulatoryID   string `json:"epaId"`
	Agency         string `json:"agency"`
	State          string `json:"state"`
	Certifications string `json:"certs"`
}

// DefaultTitle is the professional title given to new workspace profiles.
const DefaultTitle = "Environmental Analyst"

// Workspace is one facility or project: a profile, the ten record
// collections, and creation/modification stamps.
type Workspace struct {
	Profile     Profile
	Collections map[CollectionKey][]Record
	Created     string
	Modified    string
	// Extra preserves unknown top-level document keys verbatim.
	Extra map[string]json.RawMessage
}

// NewWorkspace builds an empty workspace stamped with now.
func NewWorkspace(now string) Workspace {
	cols := make(map[CollectionKey][]Record, len(CollectionKeys))
	for _, k := range CollectionKeys {
		cols[k] = []Record{}
	}
	return Workspace{
		Profile:     Profile{Title: DefaultTitle},
		Collections: cols,
		Created:     now,
		Modified:    now,
	}
}

// Records returns the collection for key (never nil).
func (w Workspace) Records(key CollectionKey) []Record {
	recs := w.Collections[key]
	if recs == nil {
		return []Record{}
	}
	return recs
}

// WithCollection returns a copy of w whose collection key is replaced by recs.
// Other collection slices are shared with w.
func (w Workspace) WithCollection(key CollectionKey, recs []Record) Workspace {
	cols := make(map[CollectionKey][]Record, len(w.Collections)+1)
	for k, v := range w.Collections {
		cols[k] = v
	}
	cols[key] = recs
	w.Collections = cols
	return w
}

// Clone returns a deep copy of the workspace.
func (w Workspace) Clone() Workspace {
	cp := w
	cp.Collections = make(map[CollectionKey][]Record, len(w.Collections))
	for k, recs := range w.Collections {
		out := make([]Record, len(recs))
		for i, r := range recs {
			out[i] = r.Clone()
		}
		cp.Collections[k] = out
	}
	if w.Extra != nil {
		cp.Extra = make(map[string]json.RawMessage, len(w.Extra))
		for k, v := range w.Extra {
			cp.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return cp
}

// RecordCount sums the records across every collection.
func (w Workspace) RecordCount() int {
	n := 0
	for _, recs := range w.Collections {
		n += len(recs)
	}
	return n
}

// MarshalJSON writes the flat document shape: profile, one array per
// collection, created, modified, plus any preserved extra keys.
func (w Workspace) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(CollectionKeys)+3+len(w.Extra))
	for k, v := range w.Extra {
		doc[k] = v
	}
	doc["profile"] = w.Profile
	for _, k := range CollectionKeys {
		doc[string(k)] = w.Records(k)
	}
	doc["created"] = w.Created
	doc["modified"] = w.Modified
	return json.Marshal(doc)
}

// UnmarshalJSON merges a document over the receiver: keys present in the
// document replace the receiver's values, absent ones are left alone. Record
// numbers decode as json.Number so values survive a round trip unchanged.
func (w *Workspace) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("workspace document must be an object")
	}
	if w.Collections == nil {
		w.Collections = make(map[CollectionKey][]Record, len(CollectionKeys))
	}
	for name, msg := range raw {
		switch name {
		case "profile":
			if isNull(msg) {
				continue
			}
			var p Profile
			if err := json.Unmarshal(msg, &p); err != nil {
				return fmt.Errorf("decode profile: %w", err)
			}
			w.Profile = p
		case "created":
			if err := json.Unmarshal(msg, &w.Created); err != nil {
				return fmt.Errorf("decode created: %w", err)
			}
		case "modified":
			if err := json.Unmarshal(msg, &w.Modified); err != nil {
				return fmt.Errorf("decode modified: %w", err)
			}
		default:
			key := CollectionKey(name)
			if !key.Valid() {
				if w.Extra == nil {
					w.Extra = make(map[string]json.RawMessage)
				}
				w.Extra[name] = append(json.RawMessage(nil), msg...)
				continue
			}
			recs, err := decodeRecords(msg)
			if err != nil {
				return fmt.Errorf("decode %s: %w", name, err)
			}
			w.Collections[key] = recs
		}
	}
	for _, k := range CollectionKeys {
		if w.Collections[k] == nil {
			w.Collections[k] = []Record{}
		}
	}
	return nil
}

func decodeRecords(msg json.RawMessage) ([]Record, error) {
	if isNull(msg) {
		return []Record{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(msg))
	dec.UseNumber()
	var recs []Record
	if err := dec.Decode(&recs); err != nil {
		return nil, err
	}
	for i, r := range recs {
		if r == nil {
			return nil, fmt.Errorf("record %d is not an object", i)
		}
	}
	if recs == nil {
		recs = []Record{}
	}
	return recs, nil
}

func isNull(msg json.RawMessage) bool {
	return len(bytes.TrimSpace(msg)) == 0 || string(bytes.TrimSpace(msg)) == "null"
}

// RootState is the single persisted document holding every workspace.
type RootState struct {
	Workspaces map[string]Workspace `json:"workspaces"`
	Order      []string             `json:"order"`
	LastOpen   *string              `json:"lastOpen"`
}

// NewRootState returns the blank document used on first run.
func NewRootState() RootState {
	return RootState{
		Workspaces: make(map[string]Workspace),
		Order:      []string{},
	}
}

// WithWorkspace returns a copy of s with workspaces[id] set to ws. The order
// slice is shared; callers that change order must allocate a new one.
func (s RootState) WithWorkspace(id string, ws Workspace) RootState {
	out := make(map[string]Workspace, len(s.Workspaces)+1)
	for k, v := range s.Workspaces {
		out[k] = v
	}
	out[id] = ws
	s.Workspaces = out
	return s
}

// Open returns the currently open workspace id and whether it resolves.
func (s RootState) Open() (string, bool) {
	if s.LastOpen == nil {
		return "", false
	}
	_, ok := s.Workspaces[*s.LastOpen]
	return *s.LastOpen, ok
}

// Normalize repairs the order/workspace relationship: ids in order that no
// longer exist are dropped, duplicates are removed, workspaces missing from
// order are appended in key order, and a dangling lastOpen is cleared.
func (s RootState) Normalize() RootState {
	if s.Workspaces == nil {
		s.Workspaces = make(map[string]Workspace)
	}
	seen := make(map[string]struct{}, len(s.Order))
	order := make([]string, 0, len(s.Workspaces))
	for _, id := range s.Order {
		if _, ok := s.Workspaces[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		order = append(order, id)
	}
	var missing []string
	for id := range s.Workspaces {
		if _, ok := seen[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	s.Order = append(order, missing...)
	if s.LastOpen != nil {
		if _, ok := s.Workspaces[*s.LastOpen]; !ok {
			s.LastOpen = nil
		}
	}
	return s
}
