package models

import (
	"regexp"
	"testing"
	"time"
)

var poNumberPattern = regexp.MustCompile(`^PO-\d{8}-[0-9A-F]{6}$`)

func TestGeneratePoNumber_Format(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
	po := GeneratePoNumber(now)
	if !poNumberPattern.MatchString(po) {
		t.Errorf("po number %q does not match PO-YYYYMMDD-XXXXXX", po)
	}
	if po[3:11] != "20260315" {
		t.Errorf("po number %q does not carry the issue date", po)
	}
}

func TestGeneratePoNumber_Unique(t *testing.T) {
	now := time.Now()
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		po := GeneratePoNumber(now)
		if seen[po] {
			t.Fatalf("duplicate po number %q after %d draws", po, i)
		}
		seen[po] = true
	}
}
