package domain

import (
	"strings"
	"testing"
)

func TestDefaultSchemasCoverEveryCollection(t *testing.T) {
	set := DefaultSchemas()
	for _, key := range CollectionKeys {
		m, ok := set.Lookup(key)
		if !ok {
			t.Fatalf("missing schema for %s", key)
		}
		if m.Title == "" || m.ExportName == "" || len(m.Fields) == 0 {
			t.Fatalf("incomplete schema for %s: %+v", key, m)
		}
		if len(m.Required()) == 0 {
			t.Fatalf("%s has no required fields", key)
		}
		for _, f := range m.Fields {
			if IsSystemField(f.Name) {
				t.Fatalf("%s declares system field %s", key, f.Name)
			}
			if f.Kind == KindSelect && len(f.Options) == 0 {
				t.Fatalf("%s.%s is a select without options", key, f.Name)
			}
		}
	}
}

func TestRequiredFields(t *testing.T) {
	want := map[CollectionKey][]string{
		CollectionLDAR:              {"tag", "unit"},
		CollectionGHG:               {"month", "CO2e"},
		CollectionBWON:              {"stream", "annual_lb"},
		CollectionPermits:           {"type", "number"},
		CollectionIncidents:         {"date", "desc"},
		CollectionRCRA:              {"code", "name"},
		CollectionSPCC:              {"name"},
		CollectionFlare:             {"date", "unit"},
		CollectionStacks:            {"unit", "result"},
		CollectionCorrectiveActions: {"finding", "action"},
	}
	set := DefaultSchemas()
	for key, names := range want {
		var got []string
		for _, f := range set[key].Required() {
			got = append(got, f.Name)
		}
		if strings.Join(got, ",") != strings.Join(names, ",") {
			t.Fatalf("%s required = %v, want %v", key, got, names)
		}
	}
}

func TestSchemaDefaults(t *testing.T) {
	m := DefaultSchemas()[CollectionFlare]
	d := m.Defaults()
	if d["reported"] != "Yes" || d["reg"] != "40 CFR §63.670" || d["date"] != "" {
		t.Fatalf("defaults = %v", d)
	}
	if f, ok := m.Field("min"); !ok || f.Kind != KindNumber {
		t.Fatalf("min field = %+v", f)
	}
}

func TestParseSchemasRejectsIncompleteDocuments(t *testing.T) {
	cases := map[string]string{
		"unknown":   "modules:\n  - key: wetlands\n",
		"duplicate": "modules:\n  - key: ldar\n  - key: ldar\n",
		"missing":   "modules:\n  - key: ldar\n",
		"yaml":      "modules: [",
	}
	for name, doc := range cases {
		if _, err := ParseSchemas([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
