package proc

import (
	"testing"

	"beeos/internal/defs"
)

// TestSetuidBSDSemantics covers all four scenario-6 cases: spec.md §8.
func TestSetuidBSDSemantics(t *testing.T) {
	cases := []struct {
		name        string
		before      Credentials_t
		target      int
		wantErr     defs.Err_t
		wantAfter   Credentials_t
	}{
		{
			name:      "root sets all three",
			before:    Credentials_t{Uid: 0, Euid: 0, Suid: 0},
			target:    1000,
			wantErr:   0,
			wantAfter: Credentials_t{Uid: 1000, Euid: 1000, Suid: 1000},
		},
		{
			name:      "privileged via euid==0 sets all three",
			before:    Credentials_t{Uid: 1000, Euid: 0, Suid: 0},
			target:    1000,
			wantErr:   0,
			wantAfter: Credentials_t{Uid: 1000, Euid: 1000, Suid: 1000},
		},
		{
			name:      "unprivileged may assume saved uid",
			before:    Credentials_t{Uid: 1000, Euid: 1000, Suid: 0},
			target:    0,
			wantErr:   0,
			wantAfter: Credentials_t{Uid: 0, Euid: 0, Suid: 0},
		},
		{
			name:      "unprivileged cannot assume unrelated uid",
			before:    Credentials_t{Uid: 1000, Euid: 1000, Suid: 1000},
			target:    0,
			wantErr:   -defs.EPERM,
			wantAfter: Credentials_t{Uid: 1000, Euid: 1000, Suid: 1000},
		},
	}

	for _, c := range cases {
		cred := c.before
		err := Setuid(&cred, c.target)
		if err != c.wantErr {
			t.Errorf("%s: err = %v, want %v", c.name, err, c.wantErr)
		}
		if cred != c.wantAfter {
			t.Errorf("%s: cred after = %+v, want %+v", c.name, cred, c.wantAfter)
		}
	}
}
