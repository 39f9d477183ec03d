package shared

import "strings"

const lockPrefix = "provisioning"

// LockKey builds redis keys for provisioning critical sections.
func LockKey(parts ...string) string {
	return lockPrefix + ":" + strings.Join(parts, ":") + ":lock"
}
