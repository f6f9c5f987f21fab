package main

import "testing"

func TestParseFlagsDefaultsToDryRun(t *testing.T) {
	f := parseFlags(nil)
	if !f.DryRun || f.BatchSize != 100 || f.Limit != 0 || f.Force {
		t.Fatalf("unexpected defaults: %+v", f)
	}
}

func TestParseFlagsExecute(t *testing.T) {
	f := parseFlags([]string{"-execute", "-batch", "25", "-limit", "10", "-force"})
	if f.DryRun {
		t.Fatal("-execute should disable dry-run")
	}
	if f.BatchSize != 25 || f.Limit != 10 || !f.Force {
		t.Fatalf("unexpected flags: %+v", f)
	}
}
