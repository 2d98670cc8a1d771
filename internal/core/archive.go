package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"envirotrack/internal/blob"
	"envirotrack/pkg/domain"
)

const (
	archivePrefix      = "exports"
	archiveStampLayout = "20060102T150405.000Z"
	backupName         = "backup"
)

// Archive files export documents into a blob store under
// exports/<workspace-id>/<stamp>-<name>.<ext>.
type Archive struct {
	store blob.Store
	clock Clock
}

// NewArchive wraps store. A nil clock uses the system clock.
func NewArchive(store blob.Store, clock Clock) *Archive {
	if clock == nil {
		clock = systemClock{}
	}
	return &Archive{store: store, clock: clock}
}

func (a *Archive) key(workspaceID, name, ext string) string {
	stamp := a.clock.Now().UTC().Format(archiveStampLayout)
	return path.Join(archivePrefix, workspaceID, fmt.Sprintf("%s-%s.%s", stamp, name, ext))
}

// SaveBackup writes the JSON backup of ws.
func (a *Archive) SaveBackup(ctx context.Context, workspaceID string, ws domain.Workspace) (blob.Info, error) {
	data, err := MarshalBackup(ws)
	if err != nil {
		return blob.Info{}, err
	}
	return a.store.Put(ctx, a.key(workspaceID, backupName, "json"), bytes.NewReader(data), blob.PutOptions{
		ContentType: "application/json",
		Metadata: map[string]string{
			"workspace": workspaceID,
			"facility":  ws.Profile.Facility,
		},
	})
}

// SaveCSV writes the CSV export of one collection.
func (a *Archive) SaveCSV(ctx context.Context, workspaceID string, schema domain.ModuleSchema, recs []domain.Record) (blob.Info, error) {
	table, err := ExportRows(schema, recs)
	if err != nil {
		return blob.Info{}, err
	}
	var buf bytes.Buffer
	if err := table.WriteCSV(&buf); err != nil {
		return blob.Info{}, err
	}
	name := schema.ExportName
	if name == "" {
		name = string(schema.Key)
	}
	return a.store.Put(ctx, a.key(workspaceID, name, "csv"), &buf, blob.PutOptions{
		ContentType: "text/csv",
		Metadata: map[string]string{
			"workspace":  workspaceID,
			"collection": string(schema.Key),
		},
	})
}

// List returns the archived exports of a workspace, or of all workspaces
// when workspaceID is empty.
func (a *Archive) List(ctx context.Context, workspaceID string) ([]blob.Info, error) {
	prefix := archivePrefix + "/"
	if workspaceID != "" {
		prefix = path.Join(archivePrefix, workspaceID) + "/"
	}
	return a.store.List(ctx, prefix)
}

// Read returns the content stored under key.
func (a *Archive) Read(ctx context.Context, key string) ([]byte, error) {
	_, rc, err := a.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}
