package app

import (
	"flag"
	"os"
)

// InTestMode reports whether the process runs under `go test`, so the
// entry points can skip runtime startup.
func InTestMode() bool {
	if os.Getenv("APP_TEST_MODE") == "1" {
		return true
	}
	return flag.Lookup("test.v") != nil
}
