// Package testing is imported for its side effect by test binaries that
// assemble the full portal: it enables test mode and selects the in-memory
// account store unless the environment already picked one.
package testing

import "os"

func init() {
	_ = os.Setenv("PORTAL_TEST_MODE", "1")
	if os.Getenv("ACCOUNT_STORE") == "" {
		_ = os.Setenv("ACCOUNT_STORE", "memory")
	}
}
