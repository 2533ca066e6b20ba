// Package agents keeps polycheck's machine-readable output clean when it is
// driven by scripts or coding agents instead of a person at a terminal.
package agents

import (
	"os"
	"strings"
)

// init runs before Bubble Tea or Lipgloss touch the terminal.
//
// Lipgloss/Termenv background detection writes OSC/DSR query sequences to
// stdout. In a PTY capture those bytes land in the middle of --robot-json
// output, so robot invocations set CI=1, which makes Termenv skip probing.
func init() {
	if os.Getenv("CI") != "" {
		return
	}
	if !shouldSuppressTTYQueries(os.Args, os.Getenv("POLYCHECK_ROBOT") == "1", os.Getenv("POLYCHECK_TEST_MODE") != "") {
		return
	}
	_ = os.Setenv("CI", "1")
}

// Loaded is referenced by main so the package's init is linked in.
func Loaded() bool {
	return true
}

func shouldSuppressTTYQueries(args []string, envRobot, envTest bool) bool {
	if envRobot || envTest {
		return true
	}
	for _, arg := range args {
		if strings.HasPrefix(arg, "--robot-") || strings.HasPrefix(arg, "-robot-") {
			return true
		}
		switch arg {
		case "--version", "--help", "-version", "-help", "-h":
			return true
		}
	}
	return false
}
