package main

import (
	"strings"
	"testing"
)

func TestCommandsRegistered(t *testing.T) {
	want := []string{"integrate", "stats", "search", "trend", "serve"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered (got %v, err %v)", name, cmd, err)
		}
	}
}

func TestArgumentErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"integrate without target", []string{"integrate"}, "at least one of the flags"},
		{"integrate with both targets", []string{"integrate", "--company", "AAPL", "--all-major"}, "none of the others can be"},
		{"trend unknown tag", []string{"trend", "NotAConcept"}, "unknown tag"},
		{"search without query", []string{"search"}, "accepts 1 arg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rootCmd.SetArgs(tt.args)
			t.Cleanup(func() {
				company, allMajor = "", false
				for _, c := range []string{"company", "all-major"} {
					if f := integrateCmd.Flags().Lookup(c); f != nil {
						f.Changed = false
					}
				}
			})

			err := rootCmd.Execute()
			if err == nil {
				t.Fatalf("expected error for %v", tt.args)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}
