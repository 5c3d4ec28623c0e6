// Package glue generates the Python snippets that connect one batch's
// output to another: handoff wrappers, predicted imports, adapter stubs and
// type converters.
package glue

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"unicode"

	"github.com/harrison/weaver/internal/config"
	"github.com/harrison/weaver/internal/executor"
	"github.com/harrison/weaver/internal/models"
	"github.com/harrison/weaver/internal/predict"
	"github.com/harrison/weaver/internal/pysource"
)

// ConvertersFile is the module name type converters are written to.
const ConvertersFile = "_converters.py"

// Request is one unit of glue to generate.
type Request struct {
	Intersection models.Intersection
	Interface    *models.PredictedInterface

	// TargetFile receives prepended or appended glue. Empty means the
	// intersection location.
	TargetFile string

	// Pattern overrides the intersection's pattern when set.
	Pattern models.GluePattern
}

func (r Request) pattern() models.GluePattern {
	if r.Pattern != "" {
		return r.Pattern
	}
	if r.Interface != nil && r.Interface.Pattern != "" {
		return r.Interface.Pattern
	}
	return r.Intersection.Pattern
}

func (r Request) target() string {
	if r.TargetFile != "" {
		return r.TargetFile
	}
	return r.Intersection.Location
}

type handler func(g *Generator, r Request) models.GlueCode

// handlers is the closed set of supported patterns.
var handlers = map[models.GluePattern]handler{
	models.PatternHandoffFunction:  (*Generator).handoff,
	models.PatternImportPrediction: (*Generator).importPrediction,
	models.PatternAdapter:          (*Generator).adapter,
	models.PatternTypeConverter:    (*Generator).typeConverter,
}

// Supported reports whether p has a dedicated generator.
func Supported(p models.GluePattern) bool {
	_, ok := handlers[p]
	return ok
}

// Generator turns predicted interfaces into glue code.
type Generator struct {
	enabled           bool
	validationCommand string
}

// NewGenerator creates a generator from the glue configuration.
func NewGenerator(cfg config.GlueConfig) *Generator {
	return &Generator{enabled: cfg.Enabled, validationCommand: cfg.ValidationCommand}
}

// Generate produces the glue for one request. Unknown patterns fall back to
// a single plain import of the location module.
func (g *Generator) Generate(r Request) models.GlueCode {
	pattern := r.pattern()
	if !g.enabled {
		return models.GlueCode{
			IntersectionID: r.Intersection.ID,
			Pattern:        pattern,
			TargetLocation: r.target(),
			Disabled:       true,
			Reason:         "glue generation disabled",
		}
	}
	h, ok := handlers[pattern]
	if !ok {
		h = (*Generator).plainImport
	}
	code := h(g, r)
	code.IntersectionID = r.Intersection.ID
	if code.Pattern == "" {
		code.Pattern = pattern
	}
	code.ValidationCommand = g.validationFor(code.TargetLocation)
	return code
}

func (g *Generator) validationFor(file string) string {
	if g.validationCommand == "" || file == "" {
		return ""
	}
	return strings.ReplaceAll(g.validationCommand, "{file}", executor.ShellQuote(file))
}

func (g *Generator) handoff(r Request) models.GlueCode {
	target := r.target()
	module := pysource.ModuleName(r.Intersection.Location)
	fns := functionsOf(r.Interface)

	var imports []string
	if target != r.Intersection.Location && module != "" && len(fns) > 0 {
		names := make([]string, 0, len(fns))
		for _, fn := range fns {
			names = append(names, fn.Name)
		}
		imports = []string{FromImport(module, names)}
	}

	var sb strings.Builder
	for i, fn := range fns {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		writeHandoff(&sb, fn, module)
	}
	return models.GlueCode{
		Code:              sb.String(),
		TargetLocation:    target,
		Imports:           imports,
		InsertionStrategy: models.InsertAppend,
	}
}

func writeHandoff(sb *strings.Builder, fn models.FunctionSignature, module string) {
	def, call := "def", fn.Name+"("+predict.CallArgs(fn)+")"
	if fn.Async {
		def, call = "async def", "await "+call
	}
	fmt.Fprintf(sb, "%s %s_handoff(%s)", def, fn.Name, paramList(fn))
	if fn.ReturnType != "" {
		fmt.Fprintf(sb, " -> %s", fn.ReturnType)
	}
	sb.WriteString(":\n")
	if module != "" {
		fmt.Fprintf(sb, "    \"\"\"Hand off to %s.%s.\"\"\"\n", module, fn.Name)
	}
	fmt.Fprintf(sb, "    return %s\n", call)
}

func (g *Generator) importPrediction(r Request) models.GlueCode {
	module := pysource.ModuleName(r.Intersection.Location)
	var names []string
	for _, fn := range functionsOf(r.Interface) {
		names = append(names, fn.Name)
	}
	if r.Interface != nil {
		for _, cls := range r.Interface.Classes {
			names = append(names, cls.Name)
		}
	}

	var imports []string
	switch {
	case module == "", r.target() == r.Intersection.Location:
	case len(names) == 0:
		imports = []string{"import " + module}
	default:
		imports = []string{FromImport(module, names)}
	}
	imports = SortImports(imports)
	return models.GlueCode{
		Code:              joinLines(imports),
		TargetLocation:    r.target(),
		Imports:           imports,
		InsertionStrategy: models.InsertPrepend,
	}
}

func (g *Generator) adapter(r Request) models.GlueCode {
	loc := r.Intersection.Location
	stem := strings.TrimSuffix(path.Base(loc), path.Ext(loc))
	className := camel(stem) + "Adapter"

	var sb strings.Builder
	fmt.Fprintf(&sb, "class %s:\n", className)
	fmt.Fprintf(&sb, "    \"\"\"Adapter between %s and %s for %s.\"\"\"\n",
		r.Intersection.SourceBatch, r.Intersection.TargetBatch, loc)
	for _, fn := range functionsOf(r.Interface) {
		params := "self"
		if list := paramList(fn); list != "" {
			params += ", " + list
		}
		fmt.Fprintf(&sb, "\n    def %s(%s):\n", fn.Name, params)
		fmt.Fprintf(&sb, "        raise NotImplementedError(\"%s.%s requires manual integration\")\n", className, fn.Name)
	}
	return models.GlueCode{
		Code:              sb.String(),
		TargetLocation:    path.Join(path.Dir(loc), stem+"_adapter.py"),
		InsertionStrategy: models.InsertNewFile,
	}
}

const convertersSource = `def safe_convert(value, target_type, default=None):
    """Convert value to target_type, returning default when it cannot."""
    if value is None:
        return default
    if isinstance(value, target_type):
        return value
    try:
        return target_type(value)
    except (TypeError, ValueError):
        return default


def strict_convert(value, target_type):
    """Convert value to target_type or raise TypeError."""
    if isinstance(value, target_type):
        return value
    try:
        return target_type(value)
    except (TypeError, ValueError) as exc:
        raise TypeError(
            "cannot convert %r to %s" % (value, target_type.__name__)
        ) from exc
`

func (g *Generator) typeConverter(r Request) models.GlueCode {
	var sb strings.Builder
	sb.WriteString(convertersSource)
	if r.Interface != nil && len(r.Interface.TypeHints) > 0 {
		names := make([]string, 0, len(r.Interface.TypeHints))
		for name := range r.Interface.TypeHints {
			names = append(names, name)
		}
		sort.Strings(names)
		sb.WriteString("\n\n")
		fmt.Fprintf(&sb, "# annotated in %s\n", r.Intersection.Location)
		sb.WriteString("EXPECTED_TYPES = {\n")
		for _, name := range names {
			fmt.Fprintf(&sb, "    %q: %q,\n", name, r.Interface.TypeHints[name])
		}
		sb.WriteString("}\n")
	}
	return models.GlueCode{
		Code:              sb.String(),
		TargetLocation:    path.Join(path.Dir(r.Intersection.Location), ConvertersFile),
		InsertionStrategy: models.InsertNewFile,
	}
}

func (g *Generator) plainImport(r Request) models.GlueCode {
	var imports []string
	if module := pysource.ModuleName(r.Intersection.Location); module != "" {
		imports = []string{"import " + module}
	}
	return models.GlueCode{
		Code:              joinLines(imports),
		TargetLocation:    r.target(),
		Imports:           imports,
		InsertionStrategy: models.InsertPrepend,
	}
}

// FromImport renders "from module import a, b" with names sorted and
// deduplicated.
func FromImport(module string, names []string) string {
	return "from " + module + " import " + strings.Join(dedupe(names), ", ")
}

// SortImports returns the statements sorted and deduplicated, ignoring
// surrounding whitespace and blank entries.
func SortImports(imports []string) []string {
	trimmed := make([]string, 0, len(imports))
	for _, imp := range imports {
		if imp = strings.TrimSpace(imp); imp != "" {
			trimmed = append(trimmed, imp)
		}
	}
	return dedupe(trimmed)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func functionsOf(pred *models.PredictedInterface) []models.FunctionSignature {
	if pred == nil {
		return nil
	}
	return pred.Functions
}

// paramList renders fn's callable parameters, adding the bare "*" marker
// keyword-only parameters need when there is no *args.
func paramList(fn models.FunctionSignature) string {
	params := fn.CallableParams()
	var out []models.Parameter
	marked := false
	for _, p := range params {
		if p.Variadic {
			marked = true
		}
		if p.KeywordOnly && !marked {
			out = append(out, models.Parameter{Name: "*"})
			marked = true
		}
		out = append(out, p)
	}
	return models.FunctionSignature{Params: out}.ParamList()
}

func camel(stem string) string {
	var sb strings.Builder
	upper := true
	for _, r := range stem {
		if r == '_' || r == '-' || r == '.' {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		sb.WriteRune(r)
	}
	if sb.Len() == 0 {
		return "Module"
	}
	return sb.String()
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
