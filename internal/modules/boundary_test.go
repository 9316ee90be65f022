// Package modules_test verifies module boundary compliance.
package modules_test

import (
	"go/parser"
	"go/token"
	"path/filepath"
	"strings"
	"testing"
)

const modulePath = "github.com/canectors/carexplorer"

// TestModuleBoundaryCompliance checks that module packages depend only on
// the pipeline and shared packages, never on the code that wires them.
func TestModuleBoundaryCompliance(t *testing.T) {
	modulePackages := []string{
		"internal/modules/source",
		"internal/modules/filter",
		"internal/modules/output",
	}

	forbiddenImports := []string{
		modulePath + "/internal/runtime",
		modulePath + "/internal/factory",
		modulePath + "/internal/registry",
		modulePath + "/internal/cli",
		modulePath + "/internal/config",
	}

	for _, pkgPath := range modulePackages {
		t.Run(pkgPath, func(t *testing.T) {
			matches, err := filepath.Glob(filepath.Join("../..", pkgPath, "*.go"))
			if err != nil {
				t.Fatalf("failed to glob package %s: %v", pkgPath, err)
			}
			if len(matches) == 0 {
				t.Fatalf("no Go files found in %s", pkgPath)
			}

			for _, file := range matches {
				if strings.HasSuffix(file, "_test.go") {
					continue
				}

				fset := token.NewFileSet()
				f, err := parser.ParseFile(fset, file, nil, parser.ImportsOnly)
				if err != nil {
					t.Fatalf("failed to parse file %s: %v", file, err)
				}

				for _, imp := range f.Imports {
					importPath := strings.Trim(imp.Path.Value, `"`)
					for _, forbidden := range forbiddenImports {
						if importPath == forbidden {
							t.Errorf("BOUNDARY VIOLATION: %s imports forbidden package %s\n"+
								"Modules must not depend on the runtime or its wiring.",
								filepath.Base(file), forbidden)
						}
					}
				}
			}
		})
	}
}

// TestModulesDoNotImportEachOther keeps sources, filters and outputs
// independent so that each can be registered on its own.
func TestModulesDoNotImportEachOther(t *testing.T) {
	packages := []string{"source", "filter", "output"}
	for _, pkg := range packages {
		t.Run(pkg, func(t *testing.T) {
			matches, err := filepath.Glob(filepath.Join(pkg, "*.go"))
			if err != nil {
				t.Fatalf("glob: %v", err)
			}
			for _, file := range matches {
				if strings.HasSuffix(file, "_test.go") {
					continue
				}
				f, err := parser.ParseFile(token.NewFileSet(), file, nil, parser.ImportsOnly)
				if err != nil {
					t.Fatalf("failed to parse file %s: %v", file, err)
				}
				for _, imp := range f.Imports {
					importPath := strings.Trim(imp.Path.Value, `"`)
					for _, other := range packages {
						if other != pkg && importPath == modulePath+"/internal/modules/"+other {
							t.Errorf("%s imports sibling module package %s", file, importPath)
						}
					}
				}
			}
		})
	}
}
