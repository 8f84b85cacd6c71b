package graph

import (
	"testing"

	"farmgraph/testutil"
)

func TestGraphDoesNotReachStorage(t *testing.T) {
	forbidden := testutil.AnyOf(testutil.InfraImport, testutil.PrefixImport("farmgraph/internal/blob"))
	testutil.AssertNoDirectImports(t, ".", forbidden, "projection reads facts through internal/core only")
}
