package main

import "testing"

func TestParseCommand(t *testing.T) {
	cases := []struct {
		name  string
		args  []string
		force bool
		cmd   string
		want  bool
	}{
		{"no args defaults to start", nil, false, "start", false},
		{"bare command", []string{"run-once"}, false, "run-once", false},
		{"trailing force flag", []string{"run-once", "-force"}, false, "run-once", true},
		{"double-dash force", []string{"run-once", "--force"}, false, "run-once", true},
		{"leading force carries through", []string{"deploy"}, true, "deploy", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd, force := parseCommand(tc.args, tc.force)
			if cmd != tc.cmd {
				t.Fatalf("expected command %q, got %q", tc.cmd, cmd)
			}
			if force != tc.want {
				t.Fatalf("expected force=%v, got %v", tc.want, force)
			}
		})
	}
}
