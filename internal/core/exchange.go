package core

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"envirotrack/pkg/domain"
)

// ExportWorkspace returns a deep copy of ws suitable for handing outside the
// store. Importing it yields a workspace equal in profile and records.
func ExportWorkspace(ws domain.Workspace) domain.Workspace {
	return ws.Clone()
}

// MarshalBackup encodes ws as the indented JSON backup document.
func MarshalBackup(ws domain.Workspace) ([]byte, error) {
	data, err := json.MarshalIndent(ExportWorkspace(ws), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal backup: %w", err)
	}
	return data, nil
}

// Table is a flattened collection ready for spreadsheet export.
type Table struct {
	Header []string
	Rows   [][]string
}

// ExportRows flattens recs for CSV. Columns follow the schema field order,
// then any other non-system keys found on the records in sorted order. System
// fields never appear.
func ExportRows(schema domain.ModuleSchema, recs []domain.Record) (Table, error) {
	if len(recs) == 0 {
		return Table{}, fmt.Errorf("%s: %w", schema.Key, ErrNoRecords)
	}
	header := make([]string, 0, len(schema.Fields))
	known := make(map[string]struct{}, len(schema.Fields))
	for _, f := range schema.Fields {
		header = append(header, f.Name)
		known[f.Name] = struct{}{}
	}
	var extra []string
	for _, rec := range recs {
		for k := range rec {
			if domain.IsSystemField(k) {
				continue
			}
			if _, ok := known[k]; ok {
				continue
			}
			known[k] = struct{}{}
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	header = append(header, extra...)

	rows := make([][]string, len(recs))
	for i, rec := range recs {
		row := make([]string, len(header))
		for j, col := range header {
			row[j] = rec.Text(col)
		}
		rows[i] = row
	}
	return Table{Header: header, Rows: rows}, nil
}

// WriteCSV writes the header line followed by one line per row.
func (t Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}
