package models

import (
	"strings"
)

// Confidence describes how much a predicted interface can be trusted.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Parameter is a single function parameter.
type Parameter struct {
	Name        string `json:"name"`
	Annotation  string `json:"annotation,omitempty"`
	Default     string `json:"default,omitempty"`
	Variadic    bool   `json:"variadic,omitempty"`    // *args
	KwVariadic  bool   `json:"kw_variadic,omitempty"` // **kwargs
	KeywordOnly bool   `json:"keyword_only,omitempty"`
}

// Required reports whether a caller must supply the parameter.
func (p Parameter) Required() bool {
	return p.Default == "" && !p.Variadic && !p.KwVariadic
}

// FunctionSignature describes a function or method definition.
type FunctionSignature struct {
	Name       string      `json:"name"`
	Params     []Parameter `json:"params"`
	ReturnType string      `json:"return_type,omitempty"`
	Async      bool        `json:"async,omitempty"`
	Decorators []string    `json:"decorators,omitempty"`
	Class      string      `json:"class,omitempty"` // enclosing class for methods
	File       string      `json:"file,omitempty"`
	Line       int         `json:"line,omitempty"`
}

// IsPublic reports whether the name has no leading underscore.
func (f FunctionSignature) IsPublic() bool {
	return !strings.HasPrefix(f.Name, "_")
}

// CallableParams returns the parameters a caller sees, dropping the bound
// receiver for methods.
func (f FunctionSignature) CallableParams() []Parameter {
	if f.Class != "" && len(f.Params) > 0 && (f.Params[0].Name == "self" || f.Params[0].Name == "cls") {
		return f.Params[1:]
	}
	return f.Params
}

// Arity returns the minimum and maximum positional argument counts.
// max is -1 when the function accepts *args.
func (f FunctionSignature) Arity() (min, max int) {
	for _, p := range f.CallableParams() {
		switch {
		case p.Variadic:
			max = -1
		case p.KwVariadic, p.KeywordOnly:
		default:
			if p.Required() {
				min++
			}
			if max >= 0 {
				max++
			}
		}
	}
	return min, max
}

// AcceptsKeywords reports whether the function takes **kwargs.
func (f FunctionSignature) AcceptsKeywords() bool {
	for _, p := range f.Params {
		if p.KwVariadic {
			return true
		}
	}
	return false
}

// ParamList renders the parameters the way they appear in source.
func (f FunctionSignature) ParamList() string {
	parts := make([]string, 0, len(f.Params))
	for _, p := range f.Params {
		var sb strings.Builder
		switch {
		case p.Variadic:
			sb.WriteString("*")
		case p.KwVariadic:
			sb.WriteString("**")
		}
		sb.WriteString(p.Name)
		if p.Annotation != "" {
			sb.WriteString(": ")
			sb.WriteString(p.Annotation)
		}
		if p.Default != "" {
			if p.Annotation != "" {
				sb.WriteString(" = ")
			} else {
				sb.WriteString("=")
			}
			sb.WriteString(p.Default)
		}
		parts = append(parts, sb.String())
	}
	return strings.Join(parts, ", ")
}

// ClassSignature describes a class definition.
type ClassSignature struct {
	Name    string              `json:"name"`
	Bases   []string            `json:"bases,omitempty"`
	Methods []FunctionSignature `json:"methods,omitempty"`
	File    string              `json:"file,omitempty"`
	Line    int                 `json:"line,omitempty"`
}

// Import is one import statement.
type Import struct {
	Module string   `json:"module"`          // dotted module, may start with "." for relative imports
	Names  []string `json:"names,omitempty"` // names for "from X import a, b"
	Alias  string   `json:"alias,omitempty"`
	From   bool     `json:"from,omitempty"`
	Line   int      `json:"line,omitempty"`
}

// Statement renders the import back to source form.
func (i Import) Statement() string {
	if i.From {
		return "from " + i.Module + " import " + strings.Join(i.Names, ", ")
	}
	if i.Alias != "" {
		return "import " + i.Module + " as " + i.Alias
	}
	return "import " + i.Module
}

// Call is one call site found in source.
type Call struct {
	Name       string   `json:"name"`
	Positional int      `json:"positional"`
	Keywords   []string `json:"keywords,omitempty"`
	Splat      bool     `json:"splat,omitempty"`     // call uses *x or **x
	Attribute  bool     `json:"attribute,omitempty"` // obj.name(...) call
	Line       int      `json:"line"`
}

// SourceSummary is everything extracted from one source file.
type SourceSummary struct {
	File       string              `json:"file"`
	Functions  []FunctionSignature `json:"functions"`
	Classes    []ClassSignature    `json:"classes"`
	Imports    []Import            `json:"imports"`
	TypeHints  map[string]string   `json:"type_hints,omitempty"` // annotated assignment target -> type
	Calls      []Call              `json:"calls,omitempty"`
	Confidence Confidence          `json:"confidence"`
	Extractor  string              `json:"extractor"`
}

// PredictedInterface is the API surface a dependent batch is expected to need.
type PredictedInterface struct {
	IntersectionID string              `json:"intersection_id"`
	SourceBatch    string              `json:"source_batch"`
	TargetBatch    string              `json:"target_batch"`
	Location       string              `json:"location"`
	Functions      []FunctionSignature `json:"functions"`
	Classes        []ClassSignature    `json:"classes"`
	Imports        []string            `json:"imports"`
	TypeHints      map[string]string   `json:"type_hints,omitempty"`
	CallPatterns   []string            `json:"call_patterns,omitempty"`
	Confidence     Confidence          `json:"confidence"`
	Extractor      string              `json:"extractor"`
	Pattern        GluePattern         `json:"pattern"`
}
