package main

import "testing"

func TestServeCmd(t *testing.T) {
	cmd := serveCmd()
	if cmd.Use != "serve" {
		t.Errorf("serveCmd().Use = %q, want %q", cmd.Use, "serve")
	}
	if cmd.RunE == nil {
		t.Error("serveCmd() has no RunE")
	}
}

func TestMigrateCmd(t *testing.T) {
	cmd := migrateCmd()
	if cmd.Use != "migrate" {
		t.Errorf("migrateCmd().Use = %q, want %q", cmd.Use, "migrate")
	}

	want := map[string]bool{"up": false, "status": false}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Use]; ok {
			want[sub.Use] = true
			if f := sub.Flags().Lookup("dir"); f == nil {
				t.Errorf("migrate %s is missing the --dir flag", sub.Use)
			}
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("migrate has no %q subcommand", name)
		}
	}
}
