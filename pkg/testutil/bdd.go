package testutil

import "testing"

func step(t *testing.T, keyword, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run(keyword+" "+desc, fn)
}

// Given names the precondition of a scenario as a subtest.
func Given(t *testing.T, desc string, fn func(t *testing.T)) { step(t, "Given", desc, fn) }

// When names the action under test.
func When(t *testing.T, desc string, fn func(t *testing.T)) { step(t, "When", desc, fn) }

// Then names the expected outcome.
func Then(t *testing.T, desc string, fn func(t *testing.T)) { step(t, "Then", desc, fn) }
