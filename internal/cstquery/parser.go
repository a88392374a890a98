package cstquery

import (
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	cerr "github.com/maverikod/vvz-code-analyzis-sub010/internal/errors"
)

// The selector grammar is small enough for an LALR-style generated parser;
// participle keeps the stable contract readable and gives decent error
// positions. Whitespace is elided by the lexer, so step adjacency acts as
// the descendant combinator.
//
// Predicate operators and values are lexed inside a bracket state so that
// unquoted barewords (dotted names, numbers) stay one token.
var selectorLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{Name: "Child", Pattern: `>`},
		{Name: "Star", Pattern: `\*`},
		{Name: "LBracket", Pattern: `\[`, Action: lexer.Push("Pred")},
		{Name: "Colon", Pattern: `:`},
		{Name: "LParen", Pattern: `\(`},
		{Name: "RParen", Pattern: `\)`},
		{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
		{Name: "Int", Pattern: `[0-9]+`},
		{Name: "whitespace", Pattern: `\s+`},
	},
	"Pred": {
		{Name: "PredName", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
		{Name: "OpValue", Pattern: `(!=|~=|\^=|\$=|=)\s*('(\\.|[^'\\])*'|"(\\.|[^"\\])*"|[^\]\s]+)`},
		{Name: "RBracket", Pattern: `\]`, Action: lexer.Pop()},
		{Name: "predws", Pattern: `\s+`},
	},
})

type selectorGrammar struct {
	Elements []*elementGrammar `parser:"@@+"`
}

// elementGrammar is either a child combinator or a step. Steps mirror the
// grammar's three alternatives: typed, predicate-led, pseudo-led.
type elementGrammar struct {
	Child bool `parser:"@Child"`

	Type     string           `parser:"| ( @(Star | Ident)"`
	Preds    []*predGrammar   `parser:"    @@*"`
	Pseudos  []*pseudoGrammar `parser:"    @@* )"`
	Preds2   []*predGrammar   `parser:"| ( @@+"`
	Pseudos2 []*pseudoGrammar `parser:"    @@* )"`
	Pseudos3 []*pseudoGrammar `parser:"| @@+"`
}

type predGrammar struct {
	Name    string `parser:"LBracket @PredName"`
	OpValue string `parser:"@OpValue RBracket"`
}

type pseudoGrammar struct {
	Name string  `parser:"Colon @Ident"`
	Arg  *string `parser:"( LParen @Int RParen )?"`
}

var selectorParser = participle.MustBuild[selectorGrammar](
	participle.Lexer(selectorLexer),
	participle.UseLookahead(2),
)

// ParseSelector parses a selector string into a Query.
// Returns a CST_QUERY_PARSE_ERROR CodeError on invalid input.
func ParseSelector(selector string) (*Query, error) {
	if strings.TrimSpace(selector) == "" {
		return nil, cerr.New(cerr.CodeCSTQueryParseError, "empty selector")
	}

	parsed, err := selectorParser.ParseString("", selector)
	if err != nil {
		return nil, cerr.Newf(cerr.CodeCSTQueryParseError, "invalid selector: %v", err)
	}

	var steps []Step
	var combinators []Combinator
	pendingChild := false

	for _, el := range parsed.Elements {
		if el.Child {
			if pendingChild || len(steps) == 0 {
				return nil, cerr.New(cerr.CodeCSTQueryParseError, "misplaced '>' combinator")
			}
			pendingChild = true
			continue
		}
		step, err := el.toStep()
		if err != nil {
			return nil, err
		}
		if len(steps) > 0 {
			if pendingChild {
				combinators = append(combinators, CombinatorChild)
			} else {
				combinators = append(combinators, CombinatorDescendant)
			}
		}
		pendingChild = false
		steps = append(steps, step)
	}

	if pendingChild {
		return nil, cerr.New(cerr.CodeCSTQueryParseError, "selector ends with '>'")
	}
	if len(steps) == 0 {
		return nil, cerr.New(cerr.CodeCSTQueryParseError, "empty selector")
	}

	q := &Query{First: steps[0]}
	for i := 1; i < len(steps); i++ {
		q.Rest = append(q.Rest, QueryPart{Combinator: combinators[i-1], Step: steps[i]})
	}
	return q, nil
}

func (el *elementGrammar) toStep() (Step, error) {
	nodeType := el.Type
	if nodeType == "" {
		nodeType = "*"
	}
	preds := el.Preds
	if len(preds) == 0 {
		preds = el.Preds2
	}
	pseudos := el.Pseudos
	if len(pseudos) == 0 {
		pseudos = el.Pseudos2
	}
	if len(pseudos) == 0 {
		pseudos = el.Pseudos3
	}

	step := Step{Type: nodeType}
	for _, p := range preds {
		pred, err := p.toPredicate()
		if err != nil {
			return Step{}, err
		}
		step.Predicates = append(step.Predicates, pred)
	}
	for _, p := range pseudos {
		pseudo, err := p.toPseudo()
		if err != nil {
			return Step{}, err
		}
		step.Pseudos = append(step.Pseudos, pseudo)
	}
	return step, nil
}

func (p *predGrammar) toPredicate() (Predicate, error) {
	var op PredicateOp
	value := p.OpValue
	switch {
	case strings.HasPrefix(value, "!="):
		op, value = OpNe, value[2:]
	case strings.HasPrefix(value, "~="):
		op, value = OpContains, value[2:]
	case strings.HasPrefix(value, "^="):
		op, value = OpPrefix, value[2:]
	case strings.HasPrefix(value, "$="):
		op, value = OpSuffix, value[2:]
	case strings.HasPrefix(value, "="):
		op, value = OpEq, value[1:]
	default:
	}
	if op == "" {
		return Predicate{}, cerr.Newf(cerr.CodeCSTQueryParseError, "invalid predicate operator in [%s%s]", p.Name, p.OpValue)
	}
	value = strings.TrimLeft(value, " \t")
	if len(value) > 0 && (value[0] == '\'' || value[0] == '"') {
		if len(value) < 2 || value[len(value)-1] != value[0] {
			return Predicate{}, cerr.Newf(cerr.CodeCSTQueryParseError, "unclosed quote in [%s%s]", p.Name, p.OpValue)
		}
	}
	return Predicate{Attr: p.Name, Op: op, Value: unquoteValue(value)}, nil
}

func (p *pseudoGrammar) toPseudo() (Pseudo, error) {
	name := strings.ToLower(p.Name)
	switch name {
	case string(PseudoFirst), string(PseudoLast):
		if p.Arg != nil {
			return Pseudo{}, cerr.Newf(cerr.CodeCSTQueryParseError, ":%s does not accept arguments", name)
		}
		return Pseudo{Kind: PseudoKind(name)}, nil
	case string(PseudoNth):
		if p.Arg == nil {
			return Pseudo{}, cerr.New(cerr.CodeCSTQueryParseError, ":nth requires an integer argument, e.g. :nth(0)")
		}
		idx, err := strconv.Atoi(*p.Arg)
		if err != nil {
			return Pseudo{}, cerr.Newf(cerr.CodeCSTQueryParseError, ":nth argument must be an integer, got %q", *p.Arg)
		}
		return Pseudo{Kind: PseudoNth, Index: idx}, nil
	default:
		return Pseudo{}, cerr.Newf(cerr.CodeCSTQueryParseError, "unsupported pseudo: %s", p.Name)
	}
}

// unquoteValue strips matching quotes and resolves standard escapes.
func unquoteValue(value string) string {
	if len(value) >= 2 && (value[0] == '\'' || value[0] == '"') && value[len(value)-1] == value[0] {
		inner := value[1 : len(value)-1]
		var b strings.Builder
		for i := 0; i < len(inner); i++ {
			if inner[i] == '\\' && i+1 < len(inner) {
				i++
				switch inner[i] {
				case 'n':
					b.WriteByte('\n')
				case 't':
					b.WriteByte('\t')
				case 'r':
					b.WriteByte('\r')
				default:
					b.WriteByte(inner[i])
				}
				continue
			}
			b.WriteByte(inner[i])
		}
		return b.String()
	}
	return value
}
