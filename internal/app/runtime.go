package app

import (
	"os"
	"sync"
)

// TestModeEnv makes the binaries exit before opening connections when set to 1.
const TestModeEnv = "ODYSSEY_TEST_MODE"

var testMode = sync.OnceValue(func() bool {
	return os.Getenv(TestModeEnv) == "1"
})

// InTestMode reports whether the binaries should skip runtime side effects.
func InTestMode() bool {
	return testMode()
}
