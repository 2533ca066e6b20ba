package export

import (
	"os"
	"testing"

	"github.com/vanderheijden86/polycheck/pkg/metrics"
)

func TestMain(m *testing.M) {
	// Keep parser warnings off the test output.
	os.Setenv("POLYCHECK_ROBOT", "1")
	metrics.ResetAll()

	os.Exit(m.Run())
}
