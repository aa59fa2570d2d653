package driver

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"smelt/internal/asm"
	"smelt/internal/ast"
	"smelt/internal/diag"
	"smelt/internal/testkit"
)

func writeProgram(t *testing.T, dir, name string, root *ast.Block) string {
	t.Helper()
	var buf bytes.Buffer
	if err := ast.Encode(&buf, root); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func storeProgram() *ast.Block {
	return testkit.Block(
		testkit.ExprStmt(testkit.Call("sstore", testkit.Lit(0), testkit.Lit(42))),
	)
}

func TestCompileFile(t *testing.T) {
	dir := t.TempDir()
	path := writeProgram(t, dir, "store.astp", storeProgram())

	res, err := CompileFile(path, DefaultConfig())
	if err != nil {
		t.Fatalf("CompileFile: %v", err)
	}
	if res.Failed() {
		t.Fatalf("diagnostics: %+v", res.Diags.Items())
	}
	if res.Listing == nil || res.Listing.CountOp(asm.SSTORE) != 1 {
		t.Errorf("listing missing the store")
	}
}

func TestCompileFileReportsExternalIdentifier(t *testing.T) {
	dir := t.TempDir()
	path := writeProgram(t, dir, "ext.astp", testkit.Block(
		testkit.ExprStmt(testkit.Call("sstore", testkit.Lit(0), testkit.Ident("phantom"))),
	))

	res, err := CompileFile(path, DefaultConfig())
	if err != nil {
		t.Fatalf("CompileFile: %v", err)
	}
	if !res.Failed() {
		t.Fatalf("external identifier not reported")
	}
	found := false
	for _, d := range res.Diags.Items() {
		if d.Code == diag.BackExternalIdentifier {
			found = true
		}
	}
	if !found {
		t.Errorf("diagnostics = %+v, want code %s", res.Diags.Items(), diag.BackExternalIdentifier)
	}
}

func TestCompileFileReportsGarbageInput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "junk.astp")
	if err := os.WriteFile(path, []byte("not an ast"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	res, err := CompileFile(path, DefaultConfig())
	if err != nil {
		t.Fatalf("CompileFile: %v", err)
	}
	if !res.Failed() {
		t.Fatalf("garbage input compiled")
	}
	if res.Diags.Items()[0].Code != diag.DrvBadInput {
		t.Errorf("code = %s, want %s", res.Diags.Items()[0].Code, diag.DrvBadInput)
	}
}

func TestCompileAllKeepsInputOrder(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"a.astp", "b.astp", "c.astp"} {
		paths = append(paths, writeProgram(t, dir, name, storeProgram()))
	}
	results, err := CompileAll(context.Background(), paths, DefaultConfig())
	if err != nil {
		t.Fatalf("CompileAll: %v", err)
	}
	if len(results) != len(paths) {
		t.Fatalf("got %d results", len(results))
	}
	for i, res := range results {
		if res.Path != paths[i] {
			t.Errorf("result %d is %s, want %s", i, res.Path, paths[i])
		}
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadConfig(filepath.Join(dir, DefaultConfigName))
	if err != nil {
		t.Fatalf("missing manifest should yield defaults: %v", err)
	}
	if !cfg.Build.NamedLabels || cfg.Build.MaxDiagnostics != 100 {
		t.Errorf("defaults wrong: %+v", cfg)
	}

	path := filepath.Join(dir, DefaultConfigName)
	manifest := `
[package]
name = "demo"

[build]
named_labels = false
max_diagnostics = 7
validate = true
`
	if err := os.WriteFile(path, []byte(manifest), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err = LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Package.Name != "demo" || cfg.Build.NamedLabels || cfg.Build.MaxDiagnostics != 7 || !cfg.Build.Validate {
		t.Errorf("parsed config wrong: %+v", cfg)
	}

	if err := os.WriteFile(path, []byte("= not toml"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Errorf("malformed manifest accepted")
	}
}

func TestDumpDFG(t *testing.T) {
	dir := t.TempDir()
	path := writeProgram(t, dir, "prog.astp", storeProgram())
	dump, err := DumpDFG(path)
	if err != nil {
		t.Fatalf("DumpDFG: %v", err)
	}
	for _, want := range []string{"entry bb0", "builtin sstore", "exit: main"} {
		if !strings.Contains(dump, want) {
			t.Errorf("dump missing %q:\n%s", want, dump)
		}
	}
}

func TestRenderResult(t *testing.T) {
	dir := t.TempDir()
	path := writeProgram(t, dir, "store.astp", storeProgram())
	res, err := CompileFile(path, DefaultConfig())
	if err != nil {
		t.Fatalf("CompileFile: %v", err)
	}
	var out bytes.Buffer
	if err := RenderResult(&out, res, false); err != nil {
		t.Fatalf("RenderResult: %v", err)
	}
	if !strings.Contains(out.String(), "SSTORE") {
		t.Errorf("rendered listing missing SSTORE:\n%s", out.String())
	}

	var summary bytes.Buffer
	RenderSummary(&summary, []*Result{res}, false)
	if !strings.Contains(summary.String(), "compiled 1") {
		t.Errorf("summary = %q", summary.String())
	}
}
