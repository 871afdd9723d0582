package tui

import (
	"testing"

	"gridboard/testutil"
)

func TestTUIDoesNotReachStorage(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.StorageImportForbidden, "the terminal client goes through the controller")
}
