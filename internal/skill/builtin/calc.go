// Package builtin holds the skills shipped with the assistant.
package builtin

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/fantasma-ai/fantasma/internal/skill"
)

var errDivisionByZero = errors.New("division by zero")

// Calc answers spoken arithmetic ("quanto é doze vezes três?"). Its triggers
// include everyday words ("mais", "menos"), so it declines aggressively: a
// phrase that does not reduce to a numeric expression falls through to the
// next handler.
type Calc struct{}

var (
	_ skill.Skill = Calc{}

	calcPrefixes = []string{"quanto é", "quantos são", "calcula", "diz-me", "sabes"}

	calcWordNumbers = map[string]string{
		"zero": "0", "um": "1", "uma": "1", "dois": "2", "duas": "2",
		"três": "3", "quatro": "4", "cinco": "5", "seis": "6",
		"sete": "7", "oito": "8", "nove": "9", "dez": "10",
	}

	// Longest first so "a dividir por" wins over "a dividir".
	calcOperatorWords = []struct{ word, op string }{
		{"multiplicado por", "*"},
		{"a dividir por", "/"},
		{"dividido por", "/"},
		{"a dividir", "/"},
		{"subtraído de", "-"},
		{"somado a", "+"},
		{"dividido", "/"},
		{"vezes", "*"},
		{"menos", "-"},
		{"mais", "+"},
		{"x", "*"},
	}
)

// Name implements [skill.Skill].
func (Calc) Name() string { return "calc" }

// TriggerType implements [skill.Skill].
func (Calc) TriggerType() skill.TriggerType { return skill.TriggerContains }

// Triggers implements [skill.Skill].
func (Calc) Triggers() []string {
	return []string{
		"quanto é", "quantos são", "calcula",
		"a dividir", "dividido", "vezes", "multiplicado",
		"mais", "somado", "menos", "subtraído",
		"+", "-", "*", "x", "/",
	}
}

// Handle implements [skill.Skill].
func (Calc) Handle(_ context.Context, lower, _ string) (string, error) {
	expr := normalizeExpression(lower)
	if !strings.ContainsAny(expr, "0123456789") {
		return "", nil
	}

	result, err := evalExpression(expr)
	switch {
	case errors.Is(err, errDivisionByZero):
		return "Não é possível dividir por zero.", nil
	case err != nil:
		// Not actually arithmetic ("gosto mais de ti"); decline.
		return "", nil
	}
	return fmt.Sprintf("O resultado é %s.", formatNumber(result)), nil
}

// normalizeExpression turns a spoken phrase into a candidate arithmetic
// expression: question prefixes stripped, number words and operator words
// replaced, everything that is not arithmetic dropped.
func normalizeExpression(lower string) string {
	expr := strings.TrimSpace(lower)
	for _, p := range calcPrefixes {
		if strings.HasPrefix(expr, p) {
			expr = strings.TrimSpace(expr[len(p):])
			break
		}
	}
	expr = strings.NewReplacer("?", "", "!", "", ",", ".").Replace(expr)

	words := strings.Fields(expr)
	for i, w := range words {
		if n, ok := calcWordNumbers[w]; ok {
			words[i] = n
		}
	}
	expr = strings.Join(words, " ")

	for _, ow := range calcOperatorWords {
		expr = replaceWord(expr, ow.word, ow.op)
	}

	var b strings.Builder
	for _, r := range expr {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '+', r == '-', r == '*', r == '/', r == '(', r == ')', r == ' ':
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// replaceWord replaces whole-word occurrences of word in s. Multi-word
// operators are matched as phrases.
func replaceWord(s, word, repl string) string {
	if !strings.Contains(s, word) {
		return s
	}
	padded := " " + s + " "
	padded = strings.ReplaceAll(padded, " "+word+" ", " "+repl+" ")
	return strings.TrimSpace(padded)
}

// formatNumber renders whole results as integers and everything else with
// two decimals, decimal comma.
func formatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strings.ReplaceAll(strconv.FormatFloat(v, 'f', 2, 64), ".", ",")
}

// ─── Expression evaluation ──────────────────────────────────────────────────

type exprParser struct {
	tokens []string
	pos    int
}

// evalExpression evaluates a cleaned arithmetic expression with the usual
// precedence rules.
func evalExpression(expr string) (float64, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return 0, err
	}
	p := &exprParser{tokens: tokens}
	v, err := p.parseSum()
	if err != nil {
		return 0, err
	}
	if p.pos != len(p.tokens) {
		return 0, fmt.Errorf("trailing tokens in %q", expr)
	}
	return v, nil
}

func tokenize(expr string) ([]string, error) {
	var tokens []string
	i := 0
	for i < len(expr) {
		c := expr[i]
		switch {
		case c == ' ':
			i++
		case c == '+' || c == '-' || c == '*' || c == '/' || c == '(' || c == ')':
			tokens = append(tokens, string(c))
			i++
		case c >= '0' && c <= '9' || c == '.':
			j := i
			for j < len(expr) && (expr[j] >= '0' && expr[j] <= '9' || expr[j] == '.') {
				j++
			}
			tokens = append(tokens, expr[i:j])
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q", c)
		}
	}
	if len(tokens) == 0 {
		return nil, errors.New("empty expression")
	}
	return tokens, nil
}

func (p *exprParser) peek() string {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return ""
}

func (p *exprParser) parseSum() (float64, error) {
	v, err := p.parseProduct()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case "+":
			p.pos++
			rhs, err := p.parseProduct()
			if err != nil {
				return 0, err
			}
			v += rhs
		case "-":
			p.pos++
			rhs, err := p.parseProduct()
			if err != nil {
				return 0, err
			}
			v -= rhs
		default:
			return v, nil
		}
	}
}

func (p *exprParser) parseProduct() (float64, error) {
	v, err := p.parseValue()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case "*":
			p.pos++
			rhs, err := p.parseValue()
			if err != nil {
				return 0, err
			}
			v *= rhs
		case "/":
			p.pos++
			rhs, err := p.parseValue()
			if err != nil {
				return 0, err
			}
			if rhs == 0 {
				return 0, errDivisionByZero
			}
			v /= rhs
		default:
			return v, nil
		}
	}
}

func (p *exprParser) parseValue() (float64, error) {
	tok := p.peek()
	switch tok {
	case "":
		return 0, errors.New("unexpected end of expression")
	case "(":
		p.pos++
		v, err := p.parseSum()
		if err != nil {
			return 0, err
		}
		if p.peek() != ")" {
			return 0, errors.New("missing closing parenthesis")
		}
		p.pos++
		return v, nil
	case "-":
		p.pos++
		v, err := p.parseValue()
		return -v, err
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, fmt.Errorf("bad number %q", tok)
	}
	p.pos++
	return v, nil
}
