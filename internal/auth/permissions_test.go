package auth

import (
	"testing"
)

func TestHasPermission(t *testing.T) {
	t.Parallel()

	granted := []string{PermReadPRs, PermWriteResults}
	if !HasPermission(granted, PermReadPRs) {
		t.Fatalf("expected read:prs to be granted")
	}
	if HasPermission(granted, PermReadProfile) {
		t.Fatalf("expected read:profile to be missing")
	}
	if HasPermission(nil, PermReadPRs) {
		t.Fatalf("expected nothing granted for empty list")
	}
}

func TestHasAnyPermission(t *testing.T) {
	t.Parallel()

	granted := []string{PermReadWorkouts}
	if !HasAnyPermission(granted, PermReadProfile, PermReadWorkouts) {
		t.Fatalf("expected any-match to succeed")
	}
	if HasAnyPermission(granted, PermReadProfile, PermReadMeets) {
		t.Fatalf("expected any-match to fail")
	}
}

func TestHasAllPermissions(t *testing.T) {
	t.Parallel()

	granted := []string{PermReadWorkouts, PermWriteWorkouts}
	if !HasAllPermissions(granted, PermReadWorkouts, PermWriteWorkouts) {
		t.Fatalf("expected all-match to succeed")
	}
	if HasAllPermissions(granted, PermReadWorkouts, PermWriteResults) {
		t.Fatalf("expected all-match to fail on missing scope")
	}
}

func TestValidatePermissions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		requested   []string
		wantValid   bool
		wantInvalid []string
	}{
		{name: "empty", requested: nil, wantValid: true},
		{name: "all valid", requested: []string{PermReadPRs, PermWriteResults}, wantValid: true},
		{name: "one invalid", requested: []string{PermReadPRs, "write:everything"}, wantValid: false, wantInvalid: []string{"write:everything"}},
		{name: "all invalid", requested: []string{"admin", "root"}, wantValid: false, wantInvalid: []string{"admin", "root"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			valid, invalid := ValidatePermissions(tt.requested)
			if valid != tt.wantValid {
				t.Fatalf("valid = %v, want %v", valid, tt.wantValid)
			}
			if len(invalid) != len(tt.wantInvalid) {
				t.Fatalf("invalid = %v, want %v", invalid, tt.wantInvalid)
			}
			for i := range invalid {
				if invalid[i] != tt.wantInvalid[i] {
					t.Fatalf("invalid = %v, want %v", invalid, tt.wantInvalid)
				}
			}
		})
	}
}
