package core

import (
	"fmt"
	"strings"

	"envirotrack/pkg/domain"
)

func (r *Repository) schema(key domain.CollectionKey) (domain.ModuleSchema, error) {
	m, ok := r.schemas.Lookup(key)
	if !ok {
		return domain.ModuleSchema{}, fmt.Errorf("%w: %q", ErrUnknownCollection, key)
	}
	return m, nil
}

// AddRecord validates fields against the module schema and appends a new
// record with a fresh id and creation stamp. Nothing is appended when a
// required field is blank.
func (r *Repository) AddRecord(ws domain.Workspace, key domain.CollectionKey, fields domain.Record) (domain.Workspace, domain.Record, error) {
	schema, err := r.schema(key)
	if err != nil {
		return ws, nil, err
	}
	rec := fields.Public()
	if err := checkRequired(schema, rec); err != nil {
		return ws, nil, err
	}
	now := r.stamp()
	rec[domain.FieldID] = r.ids.NewID()
	rec[domain.FieldCreated] = now

	old := ws.Records(key)
	recs := make([]domain.Record, 0, len(old)+1)
	recs = append(recs, old...)
	recs = append(recs, rec)

	next := ws.WithCollection(key, recs)
	next.Modified = now
	return next, rec, nil
}

// EditRecord shallow-merges fields over the record with the given id and sets
// its update stamp. A missing id is not an error: the workspace is returned
// unchanged and the bool is false.
func (r *Repository) EditRecord(ws domain.Workspace, key domain.CollectionKey, id string, fields domain.Record) (domain.Workspace, bool, error) {
	schema, err := r.schema(key)
	if err != nil {
		return ws, false, err
	}
	old := ws.Records(key)
	idx := indexOf(old, id)
	if idx < 0 {
		return ws, false, nil
	}
	merged := old[idx].Clone()
	for k, v := range fields.Public() {
		merged[k] = v
	}
	if err := checkRequired(schema, merged); err != nil {
		return ws, false, err
	}
	now := r.stamp()
	merged[domain.FieldUpdated] = now

	recs := make([]domain.Record, len(old))
	copy(recs, old)
	recs[idx] = merged

	next := ws.WithCollection(key, recs)
	next.Modified = now
	return next, true, nil
}

// DeleteRecord removes the record with the given id. Deleting an id that is
// not present leaves the workspace unchanged and reports false.
func (r *Repository) DeleteRecord(ws domain.Workspace, key domain.CollectionKey, id string) (domain.Workspace, bool, error) {
	if _, err := r.schema(key); err != nil {
		return ws, false, err
	}
	old := ws.Records(key)
	if indexOf(old, id) < 0 {
		// modified stays as is: nothing was removed.
		return ws, false, nil
	}
	recs := make([]domain.Record, 0, len(old)-1)
	for _, rec := range old {
		if rec.ID() != id {
			recs = append(recs, rec)
		}
	}
	next := ws.WithCollection(key, recs)
	next.Modified = r.stamp()
	return next, true, nil
}

func indexOf(recs []domain.Record, id string) int {
	if id == "" {
		return -1
	}
	for i, rec := range recs {
		if rec.ID() == id {
			return i
		}
	}
	return -1
}

// checkRequired rejects rec when any required field is absent, nil, or blank
// after trimming.
func checkRequired(schema domain.ModuleSchema, rec domain.Record) error {
	for _, f := range schema.Required() {
		value := strings.TrimSpace(rec.Text(f.Name))
		if err := validate.Var(value, "required"); err != nil {
			return &ValidationError{Collection: schema.Key, Field: f.Name, Label: f.Label}
		}
	}
	return nil
}
