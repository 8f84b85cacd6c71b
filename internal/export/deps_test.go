package export

import (
	"testing"

	"farmgraph/testutil"
)

func TestExportUsesBlobFacade(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InfraImport, "exports go through internal/blob and internal/core")
}
