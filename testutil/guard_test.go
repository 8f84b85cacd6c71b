package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
}

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package x\n\nimport (\n\t\"fmt\"\n\t\"farmgraph/internal/infra/blob/fs\"\n)\n")
	writeFile(t, dir, "b.go", "package x\n\nimport \"farmgraph/internal/infra/persistence/sqlite\"\n")
	writeFile(t, dir, "a_test.go", "package x\n\nimport \"farmgraph/internal/infra/blob/s3\"\n")
	writeFile(t, dir, "notes.txt", "import \"farmgraph/internal/infra/x\"")

	viols, err := directImportViolations(dir, InfraImport)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"farmgraph/internal/infra/blob/fs (in a.go)",
		"farmgraph/internal/infra/persistence/sqlite (in b.go)",
	}, viols)
}

func TestDirectImportViolationsErrors(t *testing.T) {
	_, err := directImportViolations(filepath.Join(t.TempDir(), "missing"), InfraImport)
	require.Error(t, err)

	dir := t.TempDir()
	writeFile(t, dir, "broken.go", "package x\nimport (")
	_, err = directImportViolations(dir, InfraImport)
	require.Error(t, err)
}

func TestPredicates(t *testing.T) {
	neo := PrefixImport("github.com/neo4j/neo4j-go-driver/v5")
	assert.True(t, neo("github.com/neo4j/neo4j-go-driver/v5"))
	assert.True(t, neo("github.com/neo4j/neo4j-go-driver/v5/neo4j"))
	assert.False(t, neo("github.com/neo4j/neo4j-go-driver/v55"))

	either := AnyOf(InfraImport, neo)
	assert.True(t, either("farmgraph/internal/infra/blob/memory"))
	assert.True(t, either("github.com/neo4j/neo4j-go-driver/v5/neo4j"))
	assert.False(t, either("farmgraph/internal/core"))
}

func TestAssertNoDirectImportsPassesOnCleanDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ok.go", "package x\n\nimport \"farmgraph/internal/core\"\n")
	AssertNoDirectImports(t, dir, InfraImport, "clean")
}
