package domain

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// allowedExternalImports lists the third-party packages the domain layer may
// depend on. Everything else outside the standard library is rejected.
var allowedExternalImports = map[string]struct{}{
	"github.com/shopspring/decimal": {},
}

// TestDomainImportBoundaries keeps the domain free of internal packages and
// unapproved third-party dependencies.
func TestDomainImportBoundaries(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("cannot get working dir: %v", err)
	}
	entries, err := os.ReadDir(wd)
	if err != nil {
		t.Fatalf("cannot read dir: %v", err)
	}

	fset := token.NewFileSet()
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		file, err := parser.ParseFile(fset, filepath.Join(wd, name), nil, parser.ImportsOnly)
		if err != nil {
			t.Fatalf("parse %s: %v", name, err)
		}
		for _, spec := range file.Imports {
			path, err := strconv.Unquote(spec.Path.Value)
			if err != nil {
				t.Fatalf("unquote %s: %v", spec.Path.Value, err)
			}
			switch {
			case strings.Contains(path, "/internal/"):
				t.Errorf("domain package must not import internal packages: %s (%s)", path, name)
			case isStdlib(path):
			default:
				if _, ok := allowedExternalImports[path]; !ok {
					t.Errorf("domain package imports unapproved dependency: %s (%s)", path, name)
				}
			}
		}
	}
}

// isStdlib treats any import without a dot in its first element as standard library.
func isStdlib(path string) bool {
	first, _, _ := strings.Cut(path, "/")
	return !strings.Contains(first, ".")
}
