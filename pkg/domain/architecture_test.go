package domain

import (
	"testing"

	"envirotrack/testutil"
)

// The domain layer is shared by storage, transport and CLI code, so it must
// not depend on any of them.
func TestDomainDoesNotImportProjectPackages(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.ProjectImportForbidden, "pkg/domain is the leaf of the module")
}

func TestDomainHasNoDriverDependencies(t *testing.T) {
	if testing.Short() {
		t.Skip("runs go list")
	}
	testutil.AssertNoTransitiveDependency(t, ".", testutil.DriverImportForbidden, "pkg/domain must build without drivers or frameworks")
}
