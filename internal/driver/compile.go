package driver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"smelt/internal/asm"
	"smelt/internal/ast"
	"smelt/internal/codegen"
	"smelt/internal/dfg"
	"smelt/internal/diag"
	"smelt/internal/dialect"
	"smelt/internal/layout"
	"smelt/internal/observ"
	"smelt/internal/scope"
	"smelt/internal/source"
)

// Result is the outcome of compiling one input.
type Result struct {
	Path    string
	Listing *asm.Listing
	Diags   *diag.Bag
	Timer   *observ.Timer
}

// Failed reports whether the input produced no usable listing.
func (r *Result) Failed() bool {
	return r.Diags.HasErrors()
}

// CompileFile runs the whole backend over one serialized AST.
func CompileFile(path string, cfg *Config) (*Result, error) {
	res := &Result{
		Path:  path,
		Diags: diag.NewBag(cfg.Build.MaxDiagnostics),
		Timer: observ.NewTimer(),
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("driver: %w", err)
	}
	defer f.Close()

	phase := res.Timer.Begin("decode")
	root, err := ast.Decode(f)
	if err != nil {
		res.Diags.Add(diag.Diagnostic{
			Severity: diag.SevError,
			Code:     diag.DrvBadInput,
			Message:  err.Error(),
		})
		return res, nil
	}
	res.Timer.End(phase, "")

	phase = res.Timer.Begin("resolve")
	info, err := scope.Resolve(root)
	if err != nil {
		res.Diags.Add(diag.Diagnostic{
			Severity: diag.SevError,
			Code:     diag.DrvBadInput,
			Message:  err.Error(),
		})
		return res, nil
	}
	res.Timer.End(phase, "")

	if cfg.Build.Validate {
		phase = res.Timer.Begin("validate")
		if err := validateLowering(info, root); err != nil {
			res.Diags.Add(diag.Diagnostic{
				Severity: diag.SevError,
				Code:     diag.BackInvariantViolation,
				Message:  err.Error(),
			})
			return res, nil
		}
		res.Timer.End(phase, "")
	}

	phase = res.Timer.Begin("compile")
	listing := asm.NewListing()
	runErr := codegen.Run(listing, info, root, dialect.NewEVM(), &dialect.Context{
		ObjectName: cfg.Package.Name,
	}, codegen.Options{
		UseNamedLabelsForFunctions: cfg.Build.NamedLabels,
	})
	res.Timer.End(phase, fmt.Sprintf("%d items", len(listing.Items())))

	if runErr != nil {
		reportRunError(diag.BagReporter{Bag: res.Diags}, runErr)
		return res, nil
	}
	res.Listing = listing
	return res, nil
}

// validateLowering rebuilds the DFG and runs the structural validator; used
// under the manifest's validate flag to catch backend bugs early.
func validateLowering(info *scope.Info, root *ast.Block) error {
	g, err := dfg.Build(info, dialect.NewEVM(), root)
	if err != nil {
		return err
	}
	return dfg.Validate(g)
}

// reportRunError classifies a pipeline error into the diagnostic taxonomy.
func reportRunError(r diag.Reporter, err error) {
	var external *dfg.ExternalIdentifierError
	var tooDeep *layout.StackTooDeepError
	switch {
	case errors.As(err, &external):
		r.Report(diag.BackExternalIdentifier, diag.SevError, source.Span{}, external.Error())
	case errors.As(err, &tooDeep):
		r.Report(diag.BackStackTooDeep, diag.SevError, source.Span{}, err.Error())
	default:
		r.Report(diag.BackInvariantViolation, diag.SevError, source.Span{}, err.Error())
	}
}

// CompileAll compiles the inputs concurrently, bounded by the host's
// parallelism. Results come back in input order.
func CompileAll(ctx context.Context, paths []string, cfg *Config) ([]*Result, error) {
	results := make([]*Result, len(paths))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		g.Go(func() error {
			res, err := CompileFile(path, cfg)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// DumpDFG lowers one input and renders its control-flow graph.
func DumpDFG(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("driver: %w", err)
	}
	defer f.Close()

	root, err := ast.Decode(f)
	if err != nil {
		return "", err
	}
	info, err := scope.Resolve(root)
	if err != nil {
		return "", err
	}
	g, err := dfg.Build(info, dialect.NewEVM(), root)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := dfg.Dump(&b, g); err != nil {
		return "", err
	}
	return b.String(), nil
}
