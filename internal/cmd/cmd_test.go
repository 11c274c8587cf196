package cmd

import "testing"

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{"manager": false, "worker": false, "status": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestNewPortalClient(t *testing.T) {
	if _, err := newPortalClient("fake"); err != nil {
		t.Errorf("fake driver: %v", err)
	}
	if _, err := newPortalClient("pjn"); err == nil {
		t.Error("expected error for driver not built in")
	}
}
