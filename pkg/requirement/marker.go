package requirement

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/matzehuels/pypackages/pkg/errors"
	"github.com/matzehuels/pypackages/pkg/version"
)

// Marker is a parsed environment marker expression such as
// `python_version < "3.8" and extra == "socks"`.
type Marker struct {
	root     markerNode
	hasExtra bool
}

type markerNode interface {
	eval(env Environment, extras map[string]bool) bool
	write(b *strings.Builder, parent string)
}

type boolNode struct {
	op          string // "and" or "or"
	left, right markerNode
}

type compareNode struct {
	left, op, right string
	leftVar         bool
	rightVar        bool
}

// ParseMarker parses a marker expression. Malformed input fails with
// INVALID_REQUIREMENT.
func ParseMarker(s string) (*Marker, error) {
	toks, err := tokenizeMarker(s)
	if err != nil {
		return nil, err
	}
	p := &markerParser{toks: toks, src: s}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, p.errorf("unexpected %q", p.toks[p.pos].text)
	}
	return &Marker{root: node, hasExtra: p.sawExtra}, nil
}

// Evaluate reports whether the marker holds in env with the given active
// extras. A nil marker always holds.
func (m *Marker) Evaluate(env Environment, extras ...string) bool {
	if m == nil {
		return true
	}
	active := make(map[string]bool, len(extras))
	for _, e := range extras {
		active[NormalizeName(e)] = true
	}
	return m.root.eval(env, active)
}

// String renders the marker in normalized form.
func (m *Marker) String() string {
	if m == nil {
		return ""
	}
	var b strings.Builder
	m.root.write(&b, "")
	return b.String()
}

// ReferencesExtra reports whether the marker mentions the extra variable.
func (m *Marker) ReferencesExtra() bool {
	return m != nil && m.hasExtra
}

func (n *boolNode) eval(env Environment, extras map[string]bool) bool {
	if n.op == "and" {
		return n.left.eval(env, extras) && n.right.eval(env, extras)
	}
	return n.left.eval(env, extras) || n.right.eval(env, extras)
}

func (n *boolNode) write(b *strings.Builder, parent string) {
	paren := parent == "and" && n.op == "or"
	if paren {
		b.WriteByte('(')
	}
	n.left.write(b, n.op)
	b.WriteString(" " + n.op + " ")
	n.right.write(b, n.op)
	if paren {
		b.WriteByte(')')
	}
}

func (n *compareNode) write(b *strings.Builder, _ string) {
	side := func(s string, isVar bool) string {
		if isVar {
			return s
		}
		return fmt.Sprintf("%q", s)
	}
	b.WriteString(side(n.left, n.leftVar) + " " + n.op + " " + side(n.right, n.rightVar))
}

func (n *compareNode) eval(env Environment, extras map[string]bool) bool {
	if n.leftVar && n.left == "extra" || n.rightVar && n.right == "extra" {
		return n.evalExtra(extras)
	}

	lhs, rhs := n.left, n.right
	if n.leftVar {
		lhs, _ = env.Lookup(n.left)
	}
	if n.rightVar {
		rhs, _ = env.Lookup(n.right)
	}

	switch n.op {
	case "in":
		return strings.Contains(rhs, lhs)
	case "not in":
		return !strings.Contains(rhs, lhs)
	}

	if n.leftVar && versionVariables[n.left] || n.rightVar && versionVariables[n.right] {
		if ok, handled := compareVersions(lhs, n.op, rhs); handled {
			return ok
		}
	}

	switch n.op {
	case "==", "===":
		return lhs == rhs
	case "!=":
		return lhs != rhs
	case "<":
		return lhs < rhs
	case "<=":
		return lhs <= rhs
	case ">":
		return lhs > rhs
	case ">=":
		return lhs >= rhs
	}
	return false
}

// evalExtra checks `extra == "name"` against the active extras set.
func (n *compareNode) evalExtra(extras map[string]bool) bool {
	want := n.right
	if n.rightVar {
		want = n.left
	}
	has := extras[NormalizeName(want)]
	switch n.op {
	case "==", "===":
		return has
	case "!=":
		return !has
	}
	return false
}

// compareVersions evaluates lhs op rhs with version semantics. handled is
// false when either side is not a version, in which case the caller falls
// back to string comparison.
func compareVersions(lhs, op, rhs string) (ok, handled bool) {
	v, err := version.Parse(lhs)
	if err != nil {
		return false, false
	}
	c, err := version.ParseConstraint(op + rhs)
	if err != nil {
		return false, false
	}
	return c.Satisfies(v), true
}

// markerToken is a lexical token of a marker expression.
type markerToken struct {
	kind string // "var", "str", "op", "(", ")", "and", "or"
	text string
}

func tokenizeMarker(s string) ([]markerToken, error) {
	var toks []markerToken
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '(' || c == ')':
			toks = append(toks, markerToken{kind: string(c), text: string(c)})
			i++
		case c == '"' || c == '\'':
			end := strings.IndexByte(s[i+1:], c)
			if end < 0 {
				return nil, errors.New(errors.ErrCodeInvalidRequirement, "unterminated string in marker %q", s)
			}
			toks = append(toks, markerToken{kind: "str", text: s[i+1 : i+1+end]})
			i += end + 2
		case strings.ContainsRune("<>=!~", rune(c)):
			j := i
			for j < len(s) && strings.ContainsRune("<>=!~", rune(s[j])) {
				j++
			}
			op := s[i:j]
			switch op {
			case "<", "<=", ">", ">=", "==", "!=", "~=", "===":
			default:
				return nil, errors.New(errors.ErrCodeInvalidRequirement, "invalid operator %q in marker %q", op, s)
			}
			toks = append(toks, markerToken{kind: "op", text: op})
			i = j
		case unicode.IsLetter(rune(c)) || c == '_':
			j := i
			for j < len(s) && (unicode.IsLetter(rune(s[j])) || unicode.IsDigit(rune(s[j])) || s[j] == '_' || s[j] == '.') {
				j++
			}
			word := s[i:j]
			switch word {
			case "and", "or":
				toks = append(toks, markerToken{kind: word, text: word})
			case "in":
				toks = append(toks, markerToken{kind: "op", text: "in"})
			case "not":
				toks = append(toks, markerToken{kind: "not", text: word})
			default:
				toks = append(toks, markerToken{kind: "var", text: word})
			}
			i = j
		default:
			return nil, errors.New(errors.ErrCodeInvalidRequirement, "unexpected character %q in marker %q", c, s)
		}
	}

	// fold "not" "in" into a single operator
	folded := toks[:0]
	for k := 0; k < len(toks); k++ {
		if toks[k].kind == "not" {
			if k+1 < len(toks) && toks[k+1].text == "in" {
				folded = append(folded, markerToken{kind: "op", text: "not in"})
				k++
				continue
			}
			return nil, errors.New(errors.ErrCodeInvalidRequirement, "'not' must be followed by 'in' in marker %q", s)
		}
		folded = append(folded, toks[k])
	}
	return folded, nil
}

type markerParser struct {
	toks     []markerToken
	pos      int
	src      string
	sawExtra bool
}

func (p *markerParser) errorf(format string, args ...any) error {
	return errors.New(errors.ErrCodeInvalidRequirement, "invalid marker %q: %s", p.src, fmt.Sprintf(format, args...))
}

func (p *markerParser) peek() *markerToken {
	if p.pos < len(p.toks) {
		return &p.toks[p.pos]
	}
	return nil
}

func (p *markerParser) parseOr() (markerNode, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for t := p.peek(); t != nil && t.kind == "or"; t = p.peek() {
		p.pos++
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &boolNode{op: "or", left: left, right: right}
	}
	return left, nil
}

func (p *markerParser) parseAnd() (markerNode, error) {
	left, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for t := p.peek(); t != nil && t.kind == "and"; t = p.peek() {
		p.pos++
		right, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		left = &boolNode{op: "and", left: left, right: right}
	}
	return left, nil
}

func (p *markerParser) parseAtom() (markerNode, error) {
	t := p.peek()
	if t == nil {
		return nil, p.errorf("unexpected end of expression")
	}
	if t.kind == "(" {
		p.pos++
		node, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if t := p.peek(); t == nil || t.kind != ")" {
			return nil, p.errorf("missing closing parenthesis")
		}
		p.pos++
		return node, nil
	}

	left, leftVar, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	op := p.peek()
	if op == nil || op.kind != "op" {
		return nil, p.errorf("expected operator after %q", left)
	}
	p.pos++
	right, rightVar, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	return &compareNode{left: left, op: op.text, right: right, leftVar: leftVar, rightVar: rightVar}, nil
}

func (p *markerParser) parseValue() (string, bool, error) {
	t := p.peek()
	if t == nil {
		return "", false, p.errorf("unexpected end of expression")
	}
	switch t.kind {
	case "str":
		p.pos++
		return t.text, false, nil
	case "var":
		if _, ok := (Environment{}).Lookup(t.text); !ok && t.text != "extra" {
			return "", false, p.errorf("unknown marker variable %q", t.text)
		}
		p.sawExtra = p.sawExtra || t.text == "extra"
		p.pos++
		return t.text, true, nil
	}
	return "", false, p.errorf("unexpected %q", t.text)
}
