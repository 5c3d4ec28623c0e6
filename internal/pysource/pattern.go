package pysource

import (
	"context"
	"regexp"
	"strings"

	"github.com/harrison/weaver/internal/models"
)

var (
	defPattern       = regexp.MustCompile(`^(\s*)(async\s+)?def\s+([A-Za-z_]\w*)\s*\(`)
	classPattern     = regexp.MustCompile(`^(\s*)class\s+([A-Za-z_]\w*)\s*(?:\((.*)\))?\s*:`)
	decoratorPattern = regexp.MustCompile(`^\s*@(.+?)\s*$`)
	importPattern    = regexp.MustCompile(`^\s*import\s+(.+?)\s*$`)
	fromPattern      = regexp.MustCompile(`^\s*from\s+(\S+)\s+import\s+(.+?)\s*$`)
	hintPattern      = regexp.MustCompile(`^([A-Za-z_]\w*)\s*:\s*([^=]+?)\s*(?:=.*)?$`)
	callPattern      = regexp.MustCompile(`([A-Za-z_][\w.]*)\s*\(`)
)

var notCallable = map[string]bool{
	"if": true, "elif": true, "while": true, "for": true, "def": true, "class": true,
	"return": true, "and": true, "or": true, "not": true, "in": true, "is": true,
	"with": true, "assert": true, "yield": true, "await": true, "lambda": true,
	"except": true, "del": true, "raise": true, "import": true, "from": true,
}

var hintKeywords = map[string]bool{
	"else": true, "try": true, "finally": true, "lambda": true, "case": true, "match": true,
}

// PatternExtractor is the line-pattern fallback. It never fails and its
// results carry medium confidence.
type PatternExtractor struct{}

// NewPatternExtractor returns the fallback extractor.
func NewPatternExtractor() *PatternExtractor {
	return &PatternExtractor{}
}

func (e *PatternExtractor) Name() string { return "pattern" }

type openClass struct {
	indent int
	sig    models.ClassSignature
}

func (e *PatternExtractor) Extract(ctx context.Context, file string, src []byte) (*models.SourceSummary, error) {
	s := newSummary(file, models.ConfidenceMedium, e.Name())
	lines := strings.Split(string(src), "\n")

	var classes []*openClass
	var decorators []string
	inDocstring := ""

	closeClasses := func(indent int) {
		for len(classes) > 0 && classes[len(classes)-1].indent >= indent {
			s.Classes = append(s.Classes, classes[len(classes)-1].sig)
			classes = classes[:len(classes)-1]
		}
	}

	for i := 0; i < len(lines); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw := lines[i]
		trimmed := strings.TrimSpace(raw)

		if inDocstring != "" {
			if strings.Contains(trimmed, inDocstring) {
				inDocstring = ""
			}
			continue
		}
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if q := openTripleQuote(trimmed); q != "" {
			inDocstring = q
			continue
		}

		indent := len(raw) - len(strings.TrimLeft(raw, " \t"))
		closeClasses(indent)
		lineNo := i + 1

		if m := decoratorPattern.FindStringSubmatch(raw); m != nil {
			decorators = append(decorators, m[1])
			continue
		}

		if m := classPattern.FindStringSubmatch(raw); m != nil {
			c := &openClass{indent: indent, sig: models.ClassSignature{Name: m[2], File: file, Line: lineNo}}
			for _, base := range splitTopLevel(m[3]) {
				if base != "" && !strings.Contains(base, "=") {
					c.sig.Bases = append(c.sig.Bases, base)
				}
			}
			classes = append(classes, c)
			decorators = nil
			continue
		}

		if m := defPattern.FindStringSubmatch(raw); m != nil {
			header, consumed := joinUntilBalanced(lines, i)
			fn := parseDefHeader(header, m[3])
			fn.Async = m[2] != ""
			fn.Decorators = decorators
			fn.File = file
			fn.Line = lineNo
			decorators = nil
			switch {
			case len(classes) > 0 && indent > classes[len(classes)-1].indent:
				cls := classes[len(classes)-1]
				fn.Class = cls.sig.Name
				cls.sig.Methods = append(cls.sig.Methods, fn)
			case indent == 0:
				s.Functions = append(s.Functions, fn)
			}
			i += consumed
			continue
		}
		decorators = nil

		if m := fromPattern.FindStringSubmatch(raw); m != nil {
			names := m[2]
			if strings.HasPrefix(names, "(") && !strings.Contains(names, ")") {
				joined, consumed := joinUntilBalanced(lines, i)
				names = joined[strings.Index(joined, "import")+len("import"):]
				i += consumed
			}
			names = strings.Trim(strings.TrimSpace(stripComment(names)), "()")
			imp := models.Import{Module: m[1], From: true, Line: lineNo}
			for _, n := range splitTopLevel(names) {
				if n != "" {
					imp.Names = append(imp.Names, n)
				}
			}
			s.Imports = append(s.Imports, imp)
			continue
		}
		if m := importPattern.FindStringSubmatch(raw); m != nil {
			for _, part := range splitTopLevel(stripComment(m[1])) {
				fields := strings.Fields(part)
				if len(fields) == 0 {
					continue
				}
				imp := models.Import{Module: fields[0], Line: lineNo}
				if len(fields) == 3 && fields[1] == "as" {
					imp.Alias = fields[2]
				}
				s.Imports = append(s.Imports, imp)
			}
			continue
		}

		if indent == 0 {
			if m := hintPattern.FindStringSubmatch(stripComment(raw)); m != nil && !hintKeywords[m[1]] {
				s.TypeHints[m[1]] = strings.TrimSpace(m[2])
			}
		}
		s.Calls = append(s.Calls, findCalls(stripComment(raw), lineNo)...)
	}
	closeClasses(0)
	return s, nil
}

func openTripleQuote(trimmed string) string {
	for _, q := range []string{`"""`, `'''`} {
		idx := strings.Index(trimmed, q)
		if idx < 0 {
			continue
		}
		if idx > 0 && !isStringPrefix(trimmed[:idx]) {
			continue
		}
		if strings.Contains(trimmed[idx+3:], q) {
			return ""
		}
		return q
	}
	return ""
}

func isStringPrefix(s string) bool {
	switch strings.ToLower(s) {
	case "r", "u", "b", "f", "rb", "br", "fr", "rf":
		return true
	}
	return false
}

// joinUntilBalanced joins lines starting at start until parentheses close.
// It returns the joined text and how many extra lines were consumed.
func joinUntilBalanced(lines []string, start int) (string, int) {
	var sb strings.Builder
	depth := 0
	for i := start; i < len(lines); i++ {
		l := stripComment(lines[i])
		sb.WriteString(strings.TrimSpace(l))
		sb.WriteString(" ")
		depth += strings.Count(l, "(") - strings.Count(l, ")")
		if depth <= 0 {
			return sb.String(), i - start
		}
	}
	return sb.String(), len(lines) - 1 - start
}

func parseDefHeader(header, name string) models.FunctionSignature {
	fn := models.FunctionSignature{Name: name, Params: []models.Parameter{}}
	open := strings.Index(header, "(")
	if open < 0 {
		return fn
	}
	depth := 0
	closeIdx := -1
	for i := open; i < len(header); i++ {
		switch header[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		}
		if depth == 0 {
			closeIdx = i
			break
		}
	}
	if closeIdx < 0 {
		closeIdx = len(header)
	}
	fn.Params = ParseParams(header[open+1 : closeIdx])
	if closeIdx < len(header) {
		rest := header[closeIdx+1:]
		if arrow := strings.Index(rest, "->"); arrow >= 0 {
			ret := rest[arrow+2:]
			if colon := strings.LastIndex(ret, ":"); colon >= 0 {
				ret = ret[:colon]
			}
			fn.ReturnType = strings.TrimSpace(ret)
		}
	}
	return fn
}

// ParseParams parses a parameter list as written between the parentheses of
// a def statement.
func ParseParams(list string) []models.Parameter {
	params := []models.Parameter{}
	keywordOnly := false
	for _, raw := range splitTopLevel(list) {
		if raw == "" || raw == "/" {
			continue
		}
		if raw == "*" {
			keywordOnly = true
			continue
		}
		var p models.Parameter
		switch {
		case strings.HasPrefix(raw, "**"):
			p.KwVariadic = true
			raw = raw[2:]
		case strings.HasPrefix(raw, "*"):
			p.Variadic = true
			raw = raw[1:]
		}
		if eq := topLevelIndex(raw, '='); eq >= 0 {
			p.Default = strings.TrimSpace(raw[eq+1:])
			raw = raw[:eq]
		}
		if colon := strings.Index(raw, ":"); colon >= 0 {
			p.Annotation = strings.TrimSpace(raw[colon+1:])
			raw = raw[:colon]
		}
		p.Name = strings.TrimSpace(raw)
		if keywordOnly && !p.Variadic && !p.KwVariadic {
			p.KeywordOnly = true
		}
		if p.Variadic {
			keywordOnly = true
		}
		params = append(params, p)
	}
	return params
}

func findCalls(l string, lineNo int) []models.Call {
	var calls []models.Call
	trimmed := strings.TrimSpace(l)
	if strings.HasPrefix(trimmed, "def ") || strings.HasPrefix(trimmed, "async def ") || strings.HasPrefix(trimmed, "class ") {
		return nil
	}
	for _, loc := range callPattern.FindAllStringSubmatchIndex(l, -1) {
		name := l[loc[2]:loc[3]]
		if notCallable[name] {
			continue
		}
		if loc[2] > 0 && (l[loc[2]-1] == '"' || l[loc[2]-1] == '\'') {
			continue
		}
		c := models.Call{Name: name, Line: lineNo}
		if dot := strings.LastIndex(name, "."); dot >= 0 {
			c.Name = name[dot+1:]
			c.Attribute = true
		}
		argsStart := loc[1]
		depth := 1
		end := argsStart
		for end < len(l) && depth > 0 {
			switch l[end] {
			case '(', '[', '{':
				depth++
			case ')', ']', '}':
				depth--
			}
			end++
		}
		if depth != 0 {
			continue
		}
		for _, arg := range splitTopLevel(l[argsStart : end-1]) {
			switch {
			case arg == "":
			case strings.HasPrefix(arg, "*"):
				c.Splat = true
			case isKeywordArg(arg):
				c.Keywords = append(c.Keywords, strings.TrimSpace(arg[:strings.Index(arg, "=")]))
			default:
				c.Positional++
			}
		}
		calls = append(calls, c)
	}
	return calls
}

func isKeywordArg(arg string) bool {
	eq := topLevelIndex(arg, '=')
	if eq <= 0 || (eq+1 < len(arg) && arg[eq+1] == '=') {
		return false
	}
	name := strings.TrimSpace(arg[:eq])
	for _, r := range name {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return name != ""
}

// splitTopLevel splits on commas that are not nested in brackets or strings.
func splitTopLevel(s string) []string {
	var parts []string
	depth := 0
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if quote != 0 {
			if ch == quote && (i == 0 || s[i-1] != '\\') {
				quote = 0
			}
			continue
		}
		switch ch {
		case '\'', '"':
			quote = ch
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if tail := strings.TrimSpace(s[start:]); tail != "" || len(parts) > 0 {
		parts = append(parts, tail)
	}
	return parts
}

func topLevelIndex(s string, target byte) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case target:
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func stripComment(l string) string {
	var quote byte
	for i := 0; i < len(l); i++ {
		ch := l[i]
		if quote != 0 {
			if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '\'', '"':
			quote = ch
		case '#':
			return l[:i]
		}
	}
	return l
}

func importInsertionLineByPattern(src string) int {
	lines := strings.Split(src, "\n")
	insertAt := 0
	inDocstring := ""
	seenCode := false
	for i, raw := range lines {
		trimmed := strings.TrimSpace(raw)
		if inDocstring != "" {
			if strings.Contains(trimmed, inDocstring) {
				inDocstring = ""
				insertAt = i + 1
			}
			continue
		}
		switch {
		case trimmed == "" || strings.HasPrefix(trimmed, "#"):
			continue
		case !seenCode && openTripleQuote(trimmed) != "":
			inDocstring = openTripleQuote(trimmed)
			seenCode = true
			continue
		case !seenCode && (strings.HasPrefix(trimmed, `"""`) || strings.HasPrefix(trimmed, `'''`)):
			insertAt = i + 1
			seenCode = true
			continue
		case importPattern.MatchString(raw) || fromPattern.MatchString(raw):
			insertAt = i + 1
			seenCode = true
			continue
		}
		return insertAt
	}
	return insertAt
}
