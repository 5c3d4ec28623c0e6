package validation

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/harrison/weaver/internal/executor"
	"github.com/harrison/weaver/internal/fileutil"
	"github.com/harrison/weaver/internal/models"
	"github.com/harrison/weaver/internal/pysource"
)

const findSpecScript = `import importlib.util, sys; sys.exit(0 if importlib.util.find_spec(sys.argv[1]) else 1)`

// maxTypeIssues caps the type checker lines kept as warnings.
const maxTypeIssues = 20

func passed(reason string) models.LayerResult {
	return models.LayerResult{Status: models.LayerPassed, Reason: reason}
}

func skipped(reason string) models.LayerResult {
	return models.LayerResult{Status: models.LayerSkipped, Reason: reason}
}

func failed(reason string, issues []string) models.LayerResult {
	return models.LayerResult{Status: models.LayerFailed, Reason: reason, Issues: issues}
}

// checkSyntax compiles each file with the interpreter, or parses it with
// tree-sitter when no interpreter is installed.
func (v *Validator) checkSyntax(ctx context.Context, srcs []*source) models.LayerResult {
	var issues []string
	useInterpreter := v.available(v.cfg.Python)
	for _, s := range srcs {
		if useInterpreter {
			res, err := v.run(ctx, v.cfg.Python+" -m py_compile "+executor.ShellQuote(s.file), v.cfg.CommandTimeout)
			if err != nil {
				issues = append(issues, fmt.Sprintf("%s: %s", s.file, failureDetail(res)))
			}
			continue
		}
		if err := pysource.CheckSyntax(ctx, s.file, s.data); err != nil {
			issues = append(issues, err.Error())
		}
	}
	if len(issues) > 0 {
		return failed(fmt.Sprintf("%d files do not compile", len(issues)), issues)
	}
	if !useInterpreter {
		return passed("structural parse (" + v.cfg.Python + " not installed)")
	}
	return passed("")
}

// checkTypes runs the type checker once over all files.
func (v *Validator) checkTypes(ctx context.Context, srcs []*source) models.LayerResult {
	if !v.available(v.cfg.TypeChecker) {
		return skipped(v.cfg.TypeChecker + " not installed")
	}
	files := make([]string, len(srcs))
	for i, s := range srcs {
		files[i] = s.file
	}
	res, err := v.run(ctx, v.cfg.TypeChecker+" --ignore-missing-imports "+quoteAll(files), v.cfg.CommandTimeout)
	if err == nil {
		return passed("")
	}
	var issues []string
	for _, l := range strings.Split(res.Output, "\n") {
		if strings.Contains(l, "error:") && len(issues) < maxTypeIssues {
			issues = append(issues, strings.TrimSpace(l))
		}
	}
	if len(issues) == 0 {
		issues = []string{failureDetail(res)}
	}
	return failed(v.cfg.TypeChecker+" reported errors", issues)
}

// checkImports resolves every import against the source tree, then against
// the interpreter's module search path. Relative imports must be local.
// Without an interpreter unresolved absolute imports are only reported.
func (v *Validator) checkImports(ctx context.Context, srcs []*source) models.LayerResult {
	useInterpreter := v.available(v.cfg.Python)
	external := make(map[string]bool)
	var issues, unverified []string

	for _, s := range srcs {
		for _, imp := range s.summary.Imports {
			if imp.Module == "__future__" {
				continue
			}
			candidates := pysource.ResolveImport(s.file, imp)
			if len(candidates) == 0 || v.anyLocal(candidates) {
				continue
			}
			where := fmt.Sprintf("%s:%d", s.file, imp.Line)
			if pysource.IsRelative(imp) {
				issues = append(issues, fmt.Sprintf("%s: cannot resolve relative import %q", where, imp.Statement()))
				continue
			}
			module := candidates[0]
			if !useInterpreter {
				unverified = append(unverified, fmt.Sprintf("%s: cannot verify import %q (%s not installed)", where, module, v.cfg.Python))
				continue
			}
			ok, seen := external[module]
			if !seen {
				_, err := v.run(ctx, v.cfg.Python+" -c "+executor.ShellQuote(findSpecScript)+" "+executor.ShellQuote(module), v.cfg.CommandTimeout)
				ok = err == nil
				external[module] = ok
			}
			if !ok {
				issues = append(issues, fmt.Sprintf("%s: cannot resolve import %q", where, module))
			}
		}
	}
	if len(issues) > 0 {
		return failed(fmt.Sprintf("%d unresolved imports", len(issues)), issues)
	}
	r := passed("")
	r.Issues = unverified
	if len(unverified) > 0 {
		r.Reason = fmt.Sprintf("%d imports not verified", len(unverified))
	}
	return r
}

// anyLocal reports whether any candidate module exists in the source tree,
// as a module file, a package or a namespace directory.
func (v *Validator) anyLocal(candidates []string) bool {
	for _, c := range candidates {
		for _, f := range pysource.ModuleFiles(c) {
			if fileExists(v.path(f)) {
				return true
			}
		}
		if info, err := os.Stat(v.path(strings.ReplaceAll(c, ".", "/"))); err == nil && info.IsDir() {
			return true
		}
	}
	return false
}

// checkSignatures compares call sites against the local definitions they
// reach: functions and classes defined in the same file or imported by name
// from another modified file. Attribute calls and calls with *args or
// **kwargs are not checked.
func (v *Validator) checkSignatures(ctx context.Context, srcs []*source) models.LayerResult {
	defsByModule := make(map[string]map[string]models.FunctionSignature)
	for _, s := range srcs {
		defsByModule[pysource.ModuleName(s.file)] = definitions(s.summary)
	}

	var issues []string
	checked := 0
	for _, s := range srcs {
		visible := make(map[string]models.FunctionSignature)
		for name, sig := range defsByModule[pysource.ModuleName(s.file)] {
			visible[name] = sig
		}
		for _, imp := range s.summary.Imports {
			if !imp.From {
				continue
			}
			candidates := pysource.ResolveImport(s.file, imp)
			if len(candidates) == 0 {
				continue
			}
			defs, ok := defsByModule[candidates[0]]
			if !ok {
				continue
			}
			for _, name := range imp.Names {
				orig, alias := splitAlias(name)
				if sig, ok := defs[orig]; ok {
					visible[alias] = sig
				}
			}
		}

		for _, call := range s.summary.Calls {
			sig, ok := visible[call.Name]
			if !ok || call.Attribute || call.Splat {
				continue
			}
			checked++
			if problem := arityProblem(sig, call); problem != "" {
				issues = append(issues, fmt.Sprintf("%s:%d: %s() %s", s.file, call.Line, call.Name, problem))
			}
		}
	}
	if len(issues) > 0 {
		return failed(fmt.Sprintf("%d incompatible calls", len(issues)), issues)
	}
	return passed(fmt.Sprintf("%d calls checked", checked))
}

// definitions maps callable names to signatures. Classes map to their
// __init__; names defined more than once are left out.
func definitions(summary *models.SourceSummary) map[string]models.FunctionSignature {
	defs := make(map[string]models.FunctionSignature)
	dup := make(map[string]bool)
	add := func(name string, sig models.FunctionSignature) {
		if _, exists := defs[name]; exists {
			dup[name] = true
			return
		}
		defs[name] = sig
	}
	for _, fn := range summary.Functions {
		if len(fn.Decorators) > 0 {
			// decorators may change the signature
			dup[fn.Name] = true
			continue
		}
		add(fn.Name, fn)
	}
	for _, cls := range summary.Classes {
		ctor := models.FunctionSignature{Name: cls.Name, Class: cls.Name, Params: []models.Parameter{{Name: "self"}}}
		for _, m := range cls.Methods {
			if m.Name == "__init__" {
				ctor = m
				ctor.Name = cls.Name
			}
		}
		if len(cls.Bases) > 0 && len(ctor.Params) == 1 {
			// inherited constructor
			dup[cls.Name] = true
			continue
		}
		add(cls.Name, ctor)
	}
	for name := range dup {
		delete(defs, name)
	}
	return defs
}

// arityProblem describes why call cannot bind to sig, or returns "".
func arityProblem(sig models.FunctionSignature, call models.Call) string {
	params := sig.CallableParams()
	byName := make(map[string]models.Parameter, len(params))
	for _, p := range params {
		byName[p.Name] = p
	}
	keywords := make(map[string]bool, len(call.Keywords))
	for _, k := range call.Keywords {
		keywords[k] = true
		if _, ok := byName[k]; !ok && !sig.AcceptsKeywords() {
			return fmt.Sprintf("got an unexpected keyword argument %q", k)
		}
	}

	required, most := sig.Arity()
	if most >= 0 && call.Positional > most {
		return fmt.Sprintf("takes at most %d positional arguments but %d were given", most, call.Positional)
	}

	positionalSeen := 0
	for _, p := range params {
		if p.Variadic || p.KwVariadic {
			continue
		}
		if !p.KeywordOnly && positionalSeen < call.Positional {
			positionalSeen++
			if keywords[p.Name] {
				return fmt.Sprintf("got multiple values for argument %q", p.Name)
			}
			continue
		}
		if p.Required() && !keywords[p.Name] {
			return fmt.Sprintf("missing required argument %q (needs at least %d)", p.Name, required)
		}
	}
	return ""
}

func splitAlias(name string) (orig, alias string) {
	parts := strings.SplitN(name, " as ", 2)
	orig = strings.TrimSpace(parts[0])
	alias = orig
	if len(parts) == 2 {
		alias = strings.TrimSpace(parts[1])
	}
	return orig, alias
}

// runTests discovers test files matching the modified modules and runs each
// with its own timeout.
func (v *Validator) runTests(ctx context.Context, srcs []*source) models.LayerResult {
	if !v.available(v.cfg.Python) {
		return skipped(v.cfg.Python + " not installed")
	}
	tests := v.discoverTests(srcs)
	if len(tests) == 0 {
		return skipped("no tests match the modified modules")
	}
	var issues []string
	for _, t := range tests {
		res, err := v.run(ctx, v.cfg.Python+" -m pytest -q "+executor.ShellQuote(t), v.cfg.TestTimeout)
		switch {
		case err == nil:
		case res.TimedOut:
			issues = append(issues, fmt.Sprintf("%s: timed out after %v", t, v.cfg.TestTimeout))
		default:
			issues = append(issues, fmt.Sprintf("%s: %s", t, failureDetail(res)))
		}
	}
	if len(issues) > 0 {
		return failed(fmt.Sprintf("%d of %d test files failed", len(issues), len(tests)), issues)
	}
	return passed(fmt.Sprintf("%d test files passed", len(tests)))
}

// discoverTests finds test_<module>.py and <module>_test.py files under the
// root for every modified module, skipping hidden and cache directories.
func (v *Validator) discoverTests(srcs []*source) []string {
	want := make(map[string]bool)
	for _, s := range srcs {
		stem := strings.TrimSuffix(path.Base(s.file), path.Ext(s.file))
		if stem == "__init__" || strings.HasPrefix(stem, "test_") || strings.HasSuffix(stem, "_test") {
			continue
		}
		want["test_"+stem+".py"] = true
		want[stem+"_test.py"] = true
	}
	if len(want) == 0 {
		return nil
	}

	names := make([]string, 0, len(want))
	for n := range want {
		names = append(names, n)
	}
	result, err := fileutil.ScanDirectory(v.root, fileutil.ScanOptions{
		Names:       names,
		Extensions:  []string{".py"},
		Recursive:   true,
		ExcludeDirs: fileutil.PythonCacheDirs,
		Relative:    true,
	})
	if err != nil {
		v.logger.Warnf("Validation: test discovery failed: %v", err)
		return nil
	}
	return result.Files
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
