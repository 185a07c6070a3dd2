package app

import (
	"os"
	"strconv"
	"sync"
)

// TestModeEnv disables network side effects in the binaries when true.
const TestModeEnv = "PORTAL_TEST_MODE"

var inTestMode = sync.OnceValue(func() bool {
	on, _ := strconv.ParseBool(os.Getenv(TestModeEnv))
	return on
})

// InTestMode reports whether the binaries should skip startup.
func InTestMode() bool {
	return inTestMode()
}
