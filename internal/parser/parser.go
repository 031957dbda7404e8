// Package parser turns FM source text into a structural syntax tree.
// It recognizes section headers and object definitions, joins multi-line
// definitions and classifies argument tokens; symbol resolution is left to
// the linker.
package parser

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapfm/internal/ast"
)

// SyntaxError reports a malformed FM line.
type SyntaxError struct {
	Line int
	Text string
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at line %d: %s: %q", e.Line, e.Msg, e.Text)
}

var (
	// Revenue:
	sectionPattern = regexp.MustCompile(`^([A-Za-z_][\w\- ]*?)\s*:$`)
	// Name = Type(
	objectStartPattern = regexp.MustCompile(`^[A-Za-z_]\w*\s*=\s*[A-Za-z_][\w.]*\s*\(`)
	// Name = Type(args) => a, b
	objectPattern = regexp.MustCompile(`^([A-Za-z_]\w*)\s*=\s*([A-Za-z_][\w.]*)\s*\((.*)\)\s*(?:=>\s*(.*))?$`)
	// Name.field
	refPattern   = regexp.MustCompile(`^([A-Za-z_]\w*)\.([A-Za-z_]\w*)$`)
	identPattern = regexp.MustCompile(`^[A-Za-z_]\w*$`)
)

// ParseFile reads and parses an FM file.
func ParseFile(path string) (*ast.File, error) {
	content, err := os.ReadFile(path) //nolint:gosec // G304: path is the user's model file
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}
	return Parse(string(content))
}

// pending is an object definition that may span several lines.
type pending struct {
	line     int
	parts    []string
	comments []string
}

// closed reports whether the definition has balanced parentheses and does
// not end in an operator that needs a following line.
func (p *pending) closed() bool {
	text := strings.Join(p.parts, " ")
	if parenDepth(text) != 0 {
		return false
	}
	return !strings.HasSuffix(text, "=>") && !strings.HasSuffix(text, ",")
}

// Parse parses FM source text.
func Parse(source string) (*ast.File, error) {
	file := &ast.File{}
	var section *ast.Section
	var cur *pending

	flush := func() error {
		if cur == nil {
			return nil
		}
		p := cur
		cur = nil
		if section == nil {
			return &SyntaxError{Line: p.line, Text: p.parts[0], Msg: "object defined before any section header"}
		}
		node, err := parseObject(p)
		if err != nil {
			return err
		}
		node.Section = section.Name
		section.Objects = append(section.Objects, node.Name)
		file.Objects = append(file.Objects, node)
		return nil
	}

	scanner := bufio.NewScanner(strings.NewReader(source))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		code, comment := splitComment(raw)
		code = strings.TrimSpace(code)

		if code == "" {
			continue
		}

		switch {
		case objectStartPattern.MatchString(code):
			if err := flush(); err != nil {
				return nil, err
			}
			cur = &pending{line: lineNo, parts: []string{code}}
			if comment != "" {
				cur.comments = append(cur.comments, comment)
			}

		case sectionPattern.MatchString(code):
			if err := flush(); err != nil {
				return nil, err
			}
			name := sectionPattern.FindStringSubmatch(code)[1]
			section = &ast.Section{Name: strings.TrimSpace(name), Line: lineNo}
			file.Sections = append(file.Sections, section)

		case cur != nil && cur.closed() && !strings.HasPrefix(code, "=>"):
			return nil, &SyntaxError{Line: lineNo, Text: code, Msg: "expected section header or object definition"}

		case cur != nil:
			cur.parts = append(cur.parts, code)
			if comment != "" {
				cur.comments = append(cur.comments, comment)
			}

		default:
			return nil, &SyntaxError{Line: lineNo, Text: strings.TrimSpace(raw), Msg: "expected section header or object definition"}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning source: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return file, nil
}

func parseObject(p *pending) (*ast.ObjectNode, error) {
	text := strings.Join(p.parts, " ")
	m := objectPattern.FindStringSubmatch(text)
	if m == nil {
		return nil, &SyntaxError{Line: p.line, Text: text, Msg: "malformed object definition"}
	}
	if depth := parenDepth(m[3]); depth != 0 {
		return nil, &SyntaxError{Line: p.line, Text: text, Msg: "unbalanced parentheses"}
	}

	node := &ast.ObjectNode{
		Name:    m[1],
		FnName:  m[2],
		Line:    p.line,
		Comment: strings.Join(p.comments, " "),
	}

	tokens, err := splitTopLevel(m[3])
	if err != nil {
		return nil, &SyntaxError{Line: p.line, Text: text, Msg: err.Error()}
	}
	for _, tok := range tokens {
		arg, err := classify(tok)
		if err != nil {
			return nil, &SyntaxError{Line: p.line, Text: text, Msg: err.Error()}
		}
		node.Args = append(node.Args, arg)
	}

	if outs := strings.TrimSpace(m[4]); outs != "" {
		for _, o := range strings.Split(outs, ",") {
			o = strings.TrimSpace(o)
			if !identPattern.MatchString(o) {
				return nil, &SyntaxError{Line: p.line, Text: text, Msg: fmt.Sprintf("invalid output alias %q", o)}
			}
			node.Outputs = append(node.Outputs, o)
		}
		node.DeclaredOutputs = true
	} else if tail := text[strings.LastIndex(text, ")")+1:]; strings.Contains(tail, "=>") {
		return nil, &SyntaxError{Line: p.line, Text: text, Msg: "empty output list after =>"}
	}

	return node, nil
}

// classify turns one argument token into an Arg.
func classify(tok string) (ast.Arg, error) {
	switch {
	case tok == "":
		return ast.Arg{}, fmt.Errorf("empty argument")

	case strings.HasPrefix(tok, "..."):
		m := refPattern.FindStringSubmatch(tok[3:])
		if m == nil {
			return ast.Arg{}, fmt.Errorf("invalid spread %q, expected ...Object.field", tok)
		}
		return ast.Arg{Kind: ast.ArgSpread, Raw: tok, Name: m[1], Field: m[2]}, nil

	case refPattern.MatchString(tok):
		m := refPattern.FindStringSubmatch(tok)
		return ast.Arg{Kind: ast.ArgRef, Raw: tok, Name: m[1], Field: m[2]}, nil
	}

	if v, ok := parseNumber(tok); ok {
		return ast.Arg{Kind: ast.ArgLiteral, Raw: tok, Number: v, IsNumber: true}, nil
	}
	if n := len(tok); n >= 2 && (tok[0] == '"' || tok[0] == '\'') && tok[n-1] == tok[0] {
		return ast.Arg{Kind: ast.ArgLiteral, Raw: tok, Text: tok[1 : n-1]}, nil
	}
	return ast.Arg{Kind: ast.ArgLiteral, Raw: tok, Text: tok}, nil
}

// parseNumber accepts 12, -0.5, 1e3, 1_000 and percentages like 10%.
func parseNumber(tok string) (float64, bool) {
	s := strings.ReplaceAll(tok, "_", "")
	if s == "" || !strings.ContainsRune("0123456789+-.", rune(s[0])) {
		return 0, false
	}
	scale := 1.0
	if strings.HasSuffix(s, "%") {
		s = strings.TrimSuffix(s, "%")
		scale = 0.01
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v * scale, true
}

// splitTopLevel splits s on commas that are not nested in brackets or quotes.
func splitTopLevel(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []string
	depth := 0
	var quote rune
	start := 0
	for i, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '(' || r == '[' || r == '{':
			depth++
		case r == ')' || r == ']' || r == '}':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced %q", r)
			}
		case r == ',' && depth == 0:
			out = append(out, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated string")
	}
	out = append(out, strings.TrimSpace(s[start:]))
	return out, nil
}

func parenDepth(s string) int {
	depth := 0
	var quote rune
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '(':
			depth++
		case r == ')':
			depth--
			if depth < 0 {
				return depth
			}
		}
	}
	return depth
}

// splitComment separates a trailing // comment from code, ignoring // inside
// quotes. Lines starting with # are treated as comments too.
func splitComment(line string) (code, comment string) {
	if isFullLineComment(line) {
		trimmed := strings.TrimSpace(line)
		return "", strings.TrimSpace(strings.TrimLeft(trimmed, "/#"))
	}
	var quote rune
	for i, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '/' && strings.HasPrefix(line[i:], "//"):
			return line[:i], strings.TrimSpace(line[i+2:])
		}
	}
	return line, ""
}

func isFullLineComment(line string) bool {
	t := strings.TrimSpace(line)
	return strings.HasPrefix(t, "//") || strings.HasPrefix(t, "#")
}
