package ui

import (
	"errors"
	"os"
	"testing"

	"github.com/vanderheijden86/polycheck/pkg/metrics"
)

func TestMain(m *testing.M) {
	// Never touch the real clipboard; tests that need it install a fake.
	writeClipboard = func(string) error { return errors.New("clipboard disabled in tests") }
	metrics.ResetAll()

	os.Exit(m.Run())
}
