package core_test

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"envirotrack/internal/core"
	"envirotrack/pkg/domain"
)

func bwonSchema(t *testing.T) domain.ModuleSchema {
	t.Helper()
	schema, ok := domain.DefaultSchemas().Lookup(domain.CollectionBWON)
	if !ok {
		t.Fatalf("bwon schema missing")
	}
	return schema
}

func TestExportRowsColumnOrder(t *testing.T) {
	recs := []domain.Record{
		{"_id": "a", "_ts": "2026-01-01", "stream": "API separator", "annual_lb": "4.2", "zeta": "z"},
		{"_id": "b", "stream": "DAF float", "annual_lb": "11", "alpha": "first", "_upd": "x"},
	}
	table, err := core.ExportRows(bwonSchema(t), recs)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	wantHeader := []string{"stream", "benzene_ppm", "flow", "annual_lb", "control", "eff", "alpha", "zeta"}
	if !reflect.DeepEqual(table.Header, wantHeader) {
		t.Fatalf("header = %v", table.Header)
	}
	wantRows := [][]string{
		{"API separator", "", "", "4.2", "", "", "", "z"},
		{"DAF float", "", "", "11", "", "", "first", ""},
	}
	if !reflect.DeepEqual(table.Rows, wantRows) {
		t.Fatalf("rows = %v", table.Rows)
	}
}

func TestExportRowsEmpty(t *testing.T) {
	if _, err := core.ExportRows(bwonSchema(t), nil); !errors.Is(err, core.ErrNoRecords) {
		t.Fatalf("expected ErrNoRecords, got %v", err)
	}
}

func TestWriteCSVQuotesValues(t *testing.T) {
	table := core.Table{
		Header: []string{"stream", "notes"},
		Rows:   [][]string{{"Sump, north", `said "hi"`}},
	}
	var buf bytes.Buffer
	if err := table.WriteCSV(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := "stream,notes\n\"Sump, north\",\"said \"\"hi\"\"\"\n"
	if buf.String() != want {
		t.Fatalf("csv = %q", buf.String())
	}
}

func TestMarshalBackupIsIndented(t *testing.T) {
	ws := domain.NewWorkspace("2026-10-19T00:00:00.000Z")
	data, err := core.MarshalBackup(ws)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), "\n  \"cas\": []") {
		t.Fatalf("backup not indented with two spaces: %s", data)
	}
}

func TestCombustionCO2(t *testing.T) {
	cases := []struct {
		mmbtu string
		fuel  string
		want  string
	}{
		{"1000", "Natural Gas", "53.06"},
		{"12345.678", "Diesel", "913.09"},
		{"0", "Propane", "0"},
	}
	for _, tc := range cases {
		got, err := core.CombustionCO2(decimal.RequireFromString(tc.mmbtu), tc.fuel)
		if err != nil {
			t.Fatalf("%s: %v", tc.fuel, err)
		}
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("%s %s: got %s want %s", tc.mmbtu, tc.fuel, got, tc.want)
		}
	}
	if _, err := core.CombustionCO2(decimal.NewFromInt(1), "Wood"); !errors.Is(err, core.ErrUnknownFuel) {
		t.Fatalf("expected unknown fuel, got %v", err)
	}
}

func TestFuelsSorted(t *testing.T) {
	fuels := core.Fuels()
	if len(fuels) != 5 {
		t.Fatalf("fuels = %v", fuels)
	}
	for i := 1; i < len(fuels); i++ {
		if fuels[i-1] > fuels[i] {
			t.Fatalf("fuels not sorted: %v", fuels)
		}
	}
	if ef, ok := core.EmissionFactor("Coal (bituminous)"); !ok || !ef.Equal(decimal.RequireFromString("94.35")) {
		t.Fatalf("coal factor = %s", ef)
	}
}
