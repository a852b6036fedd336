package proc

import "beeos/internal/defs"

/// Setuid implements BSD setuid semantics exactly as spec.md §8 scenario
/// 6 lays out: a caller with effective uid 0 may set all three uids to
/// target; an unprivileged caller may only do so when target equals its
/// current real or saved uid (the saved-set-uid escape hatch). Any other
/// request is rejected with -EPERM.
func Setuid(cred *Credentials_t, target int) defs.Err_t {
	privileged := cred.Euid == 0
	if privileged || target == cred.Uid || target == cred.Suid {
		cred.Uid, cred.Euid, cred.Suid = target, target, target
		return 0
	}
	return -defs.EPERM
}
