package utils

import (
	"testing"

	"go.viam.com/test"
)

func TestGuard(t *testing.T) {
	var cleanups int
	build := func(fail bool) {
		guard := NewGuard(func() { cleanups++ })
		defer guard.OnFail()
		if fail {
			return
		}
		guard.Success()
	}

	build(false)
	test.That(t, cleanups, test.ShouldEqual, 0)
	build(true)
	test.That(t, cleanups, test.ShouldEqual, 1)
}
