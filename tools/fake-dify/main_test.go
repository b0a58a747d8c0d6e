package main

import "testing"

func TestParseApps(t *testing.T) {
	apps := parseApps(" a1:Daily report:key-1, b2 ,,c3:Chat")
	if len(apps) != 3 {
		t.Fatalf("expected 3 apps, got %d", len(apps))
	}
	if apps[0].ID != "a1" || apps[0].Name != "Daily report" || apps[0].Secret != "key-1" {
		t.Errorf("unexpected first app: %+v", apps[0])
	}
	if apps[1].Name != "b2" || apps[1].Secret != "" {
		t.Errorf("bare id should use id as name: %+v", apps[1])
	}
	if apps[2].Mode != "workflow" {
		t.Errorf("expected workflow mode, got %q", apps[2].Mode)
	}
}
