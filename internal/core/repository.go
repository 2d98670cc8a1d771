package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"envirotrack/pkg/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

var profileLabels = map[string]string{
	"name":     "Full Name",
	"facility": "Facility / Company Name",
}

// Repository holds the pure root-state transitions. Every method takes the
// current RootState and returns a new one; inputs are never mutated.
type Repository struct {
	ids     IDGenerator
	clock   Clock
	schemas domain.SchemaSet
}

// NewRepository constructs a repository. Nil arguments fall back to UUIDv7
// ids, the system clock, and the embedded module schemas.
func NewRepository(ids IDGenerator, clock Clock, schemas domain.SchemaSet) *Repository {
	if ids == nil {
		ids = uuidGenerator{}
	}
	if clock == nil {
		clock = systemClock{}
	}
	if schemas == nil {
		schemas = domain.DefaultSchemas()
	}
	return &Repository{ids: ids, clock: clock, schemas: schemas}
}

// Schemas returns the module schemas the repository validates against.
func (r *Repository) Schemas() domain.SchemaSet { return r.schemas }

func (r *Repository) stamp() string { return NowStamp(r.clock.Now()) }

// CreateWorkspace inserts a new empty workspace, appends it to the display
// order, and opens it.
func (r *Repository) CreateWorkspace(root domain.RootState, profile domain.Profile) (domain.RootState, string, error) {
	if err := validateProfile(profile); err != nil {
		return root, "", err
	}
	if profile.Title == "" {
		profile.Title = domain.DefaultTitle
	}
	id := r.ids.NewID()
	ws := domain.NewWorkspace(r.stamp())
	ws.Profile = profile

	next := root.WithWorkspace(id, ws)
	next.Order = appendID(root.Order, id)
	next.LastOpen = &id
	return next, id, nil
}

// OpenWorkspace marks id as the open workspace.
func (r *Repository) OpenWorkspace(root domain.RootState, id string) (domain.RootState, error) {
	if _, ok := root.Workspaces[id]; !ok {
		return root, fmt.Errorf("open %s: %w", id, ErrWorkspaceNotFound)
	}
	open := id
	root.LastOpen = &open
	return root, nil
}

// CloseWorkspace clears the open workspace.
func (r *Repository) CloseWorkspace(root domain.RootState) domain.RootState {
	root.LastOpen = nil
	return root
}

// DeleteWorkspace removes id from the workspace map and the display order and
// clears lastOpen when it pointed at id. The bool reports whether anything changed.
func (r *Repository) DeleteWorkspace(root domain.RootState, id string) (domain.RootState, bool) {
	if _, ok := root.Workspaces[id]; !ok {
		return root, false
	}
	workspaces := make(map[string]domain.Workspace, len(root.Workspaces))
	for k, v := range root.Workspaces {
		if k != id {
			workspaces[k] = v
		}
	}
	order := make([]string, 0, len(root.Order))
	for _, o := range root.Order {
		if o != id {
			order = append(order, o)
		}
	}
	next := domain.RootState{Workspaces: workspaces, Order: order, LastOpen: root.LastOpen}
	if root.LastOpen != nil && *root.LastOpen == id {
		next.LastOpen = nil
	}
	return next, true
}

// SaveProfile replaces the profile of workspace id and bumps its modified stamp.
// A blank title falls back to the default, as on create.
func (r *Repository) SaveProfile(root domain.RootState, id string, profile domain.Profile) (domain.RootState, error) {
	ws, ok := root.Workspaces[id]
	if !ok {
		return root, fmt.Errorf("save profile %s: %w", id, ErrWorkspaceNotFound)
	}
	if err := validateProfile(profile); err != nil {
		return root, err
	}
	if profile.Title == "" {
		profile.Title = domain.DefaultTitle
	}
	ws.Profile = profile
	ws.Modified = r.stamp()
	return root.WithWorkspace(id, ws), nil
}

// ImportWorkspace decodes document, merges it over a fresh empty workspace,
// and inserts it under a new id. Existing workspaces are never overwritten, so
// importing the same backup twice yields two workspaces. A malformed document
// leaves root untouched.
func (r *Repository) ImportWorkspace(root domain.RootState, document []byte) (domain.RootState, string, error) {
	trimmed := bytes.TrimSpace(document)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return root, "", fmt.Errorf("%w: expected a JSON object", ErrMalformedImport)
	}
	now := r.stamp()
	ws := domain.NewWorkspace(now)
	if err := json.Unmarshal(trimmed, &ws); err != nil {
		return root, "", fmt.Errorf("%w: %v", ErrMalformedImport, err)
	}
	ws.Modified = now
	for _, key := range domain.CollectionKeys {
		ws.Collections[key] = r.ensureRecordIDs(ws.Collections[key], now)
	}

	id := r.ids.NewID()
	next := root.WithWorkspace(id, ws)
	next.Order = appendID(root.Order, id)
	return next, id, nil
}

// ensureRecordIDs assigns a fresh _id to records that lack one or repeat an
// id seen earlier in the same collection.
func (r *Repository) ensureRecordIDs(recs []domain.Record, now string) []domain.Record {
	seen := make(map[string]struct{}, len(recs))
	out := make([]domain.Record, len(recs))
	for i, rec := range recs {
		id := rec.ID()
		if _, dup := seen[id]; id == "" || dup {
			rec = rec.Clone()
			id = r.ids.NewID()
			rec[domain.FieldID] = id
			if rec.Text(domain.FieldCreated) == "" {
				rec[domain.FieldCreated] = now
			}
		}
		seen[id] = struct{}{}
		out[i] = rec
	}
	return out
}

func appendID(order []string, id string) []string {
	out := make([]string, 0, len(order)+1)
	out = append(out, order...)
	return append(out, id)
}

func validateProfile(p domain.Profile) error {
	check := p
	check.Name = strings.TrimSpace(p.Name)
	check.Facility = strings.TrimSpace(p.Facility)
	err := validate.Struct(check)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		field := verrs[0].Field()
		return &ValidationError{Field: field, Label: profileLabels[field]}
	}
	return err
}
