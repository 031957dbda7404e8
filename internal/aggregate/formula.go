package aggregate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type formulaKind int

const (
	formulaExpr formulaKind = iota
	formulaSum
	formulaCumsum
)

var (
	sumPattern    = regexp.MustCompile(`^sum\(\s*([A-Za-z_][\w.]*)\.\*\s*\)$`)
	cumsumPattern = regexp.MustCompile(`^cumsum\(\s*([A-Za-z_][\w.]*)\s*\)$`)
	codePattern   = regexp.MustCompile(`^[A-Za-z_][\w.]*$`)
)

type term struct {
	sign   float64
	code   string
	number float64
}

type formula struct {
	kind   formulaKind
	target string
	terms  []term
}

func isCumsum(f string) bool {
	return cumsumPattern.MatchString(strings.TrimSpace(f))
}

// parseFormula recognizes sum(prefix.*), cumsum(code) and signed sums of
// codes and numbers. A bare code is a one-term sum.
func parseFormula(s string) (formula, error) {
	if m := sumPattern.FindStringSubmatch(s); m != nil {
		return formula{kind: formulaSum, target: m[1]}, nil
	}
	if m := cumsumPattern.FindStringSubmatch(s); m != nil {
		return formula{kind: formulaCumsum, target: m[1]}, nil
	}

	var terms []term
	sign := 1.0
	expectOperand := true
	for _, tok := range tokenize(s) {
		switch tok {
		case "+", "-":
			if !expectOperand {
				expectOperand = true
				sign = 1
			}
			if tok == "-" {
				sign = -sign
			}
		default:
			if !expectOperand {
				return formula{}, fmt.Errorf("missing operator before %q", tok)
			}
			t := term{sign: sign}
			if n, err := strconv.ParseFloat(tok, 64); err == nil {
				t.number = n
			} else if codePattern.MatchString(tok) {
				t.code = tok
			} else {
				return formula{}, fmt.Errorf("unexpected token %q", tok)
			}
			terms = append(terms, t)
			expectOperand = false
			sign = 1
		}
	}
	if len(terms) == 0 || expectOperand {
		return formula{}, fmt.Errorf("incomplete expression")
	}
	return formula{kind: formulaExpr, terms: terms}, nil
}

func tokenize(s string) []string {
	var toks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case r == '+' || r == '-':
			flush()
			toks = append(toks, string(r))
		case r == ' ' || r == '\t':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return toks
}
