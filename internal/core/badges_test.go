package core_test

import (
	"testing"

	"envirotrack/internal/core"
	"envirotrack/pkg/domain"
)

func TestBadge(t *testing.T) {
	cases := []struct {
		name  string
		key   domain.CollectionKey
		rec   domain.Record
		level core.Level
		label string
	}{
		{"ldar leaking", domain.CollectionLDAR, domain.Record{"status": "Leaking", "ppm": "50"}, core.LevelFail, "Leaking"},
		{"ldar over action level", domain.CollectionLDAR, domain.Record{"status": "No Leak", "ppm": "501"}, core.LevelFail, "501 ppm"},
		{"ldar watch", domain.CollectionLDAR, domain.Record{"status": "No Leak", "ppm": "300"}, core.LevelWarn, "300 ppm"},
		{"ldar clean", domain.CollectionLDAR, domain.Record{"status": "No Leak", "ppm": "200"}, core.LevelPass, "200 ppm"},
		{"ldar no reading", domain.CollectionLDAR, domain.Record{"status": "No Leak"}, core.LevelUnknown, "No Leak"},
		{"bwon over", domain.CollectionBWON, domain.Record{"annual_lb": "10.01"}, core.LevelFail, "Non-Compliant"},
		{"bwon at threshold", domain.CollectionBWON, domain.Record{"annual_lb": "10.0"}, core.LevelPass, "Compliant"},
		{"permit 89 days", domain.CollectionPermits, domain.Record{"expiry": "2027-01-16"}, core.LevelFail, "89d"},
		{"permit 90 days", domain.CollectionPermits, domain.Record{"expiry": "2027-01-17"}, core.LevelWarn, "90d"},
		{"permit far out", domain.CollectionPermits, domain.Record{"expiry": "2028-01-01"}, core.LevelPass, "439d"},
		{"permit unknown", domain.CollectionPermits, domain.Record{}, core.LevelUnknown, ""},
		{"rcra near limit", domain.CollectionRCRA, domain.Record{"elapsed": "81"}, core.LevelFail, "81/90 days"},
		{"rcra watch", domain.CollectionRCRA, domain.Record{"elapsed": "64"}, core.LevelWarn, "64/90 days"},
		{"rcra fraction truncated", domain.CollectionRCRA, domain.Record{"elapsed": "63.9"}, core.LevelPass, "63/90 days"},
		{"stack fail", domain.CollectionStacks, domain.Record{"status": "Fail"}, core.LevelFail, "Fail"},
		{"stack pass", domain.CollectionStacks, domain.Record{"status": "Pass"}, core.LevelPass, "Pass"},
		{"stack pending", domain.CollectionStacks, domain.Record{"status": "Pending Review"}, core.LevelUnknown, "Pending Review"},
		{"spcc compliant", domain.CollectionSPCC, domain.Record{"status": "Compliant"}, core.LevelPass, "Compliant"},
		{"spcc deficiency", domain.CollectionSPCC, domain.Record{"status": "Deficiency Noted"}, core.LevelWarn, "Deficiency Noted"},
		{"spcc non-compliant", domain.CollectionSPCC, domain.Record{"status": "Non-Compliant"}, core.LevelFail, "Non-Compliant"},
		{"incident open", domain.CollectionIncidents, domain.Record{"status": "Open"}, core.LevelFail, "Open"},
		{"incident reported", domain.CollectionIncidents, domain.Record{"status": "Reported"}, core.LevelWarn, "Reported"},
		{"incident closed", domain.CollectionIncidents, domain.Record{"status": "Closed"}, core.LevelPass, "Closed"},
		{"ca due soon", domain.CollectionCorrectiveActions, domain.Record{"status": "Open", "due": "2026-10-25"}, core.LevelFail, "due in 6d"},
		{"ca closed overdue", domain.CollectionCorrectiveActions, domain.Record{"status": "Closed", "due": "2026-01-01"}, core.LevelPass, "Closed"},
		{"ca later", domain.CollectionCorrectiveActions, domain.Record{"status": "Planned", "due": "2027-03-01"}, core.LevelWarn, "Planned"},
		{"ghg ungraded", domain.CollectionGHG, domain.Record{"CO2e": "1"}, core.LevelUnknown, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := core.Badge(tc.key, tc.rec, testNow)
			if got.Level != tc.level || got.Label != tc.label {
				t.Fatalf("got %+v, want %s %q", got, tc.level, tc.label)
			}
		})
	}
}
