package auth

// Permission scopes grantable to API keys. Read scopes gate the query
// surface of the main app; write scopes gate event ingestion here.
const (
	PermReadProfile   = "read:profile"
	PermReadPRs       = "read:prs"
	PermReadWorkouts  = "read:workouts"
	PermReadRankings  = "read:rankings"
	PermReadMeets     = "read:meets"
	PermWriteWorkouts = "write:workouts"
	PermWriteResults  = "write:results"
)

// AllPermissions is the closed set of valid scopes.
var AllPermissions = []string{
	PermReadProfile,
	PermReadPRs,
	PermReadWorkouts,
	PermReadRankings,
	PermReadMeets,
	PermWriteWorkouts,
	PermWriteResults,
}

// HasPermission reports whether perm is in granted.
func HasPermission(granted []string, perm string) bool {
	for _, p := range granted {
		if p == perm {
			return true
		}
	}
	return false
}

// HasAnyPermission reports whether at least one of perms is granted.
func HasAnyPermission(granted []string, perms ...string) bool {
	for _, p := range perms {
		if HasPermission(granted, p) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether every one of perms is granted.
func HasAllPermissions(granted []string, perms ...string) bool {
	for _, p := range perms {
		if !HasPermission(granted, p) {
			return false
		}
	}
	return true
}

// ValidatePermissions checks a requested scope list against the closed
// set. Invalid entries are reported by value, never as an error.
func ValidatePermissions(requested []string) (valid bool, invalid []string) {
	for _, p := range requested {
		if !HasPermission(AllPermissions, p) {
			invalid = append(invalid, p)
		}
	}
	return len(invalid) == 0, invalid
}
