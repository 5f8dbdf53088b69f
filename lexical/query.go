package lexical

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Operator joins adjacent query clauses that have no explicit operator.
type Operator int

const (
	// OpAnd requires every clause (the default).
	OpAnd Operator = iota
	// OpOr requires any clause.
	OpOr
)

func (o Operator) String() string {
	if o == OpOr {
		return "OR"
	}
	return "AND"
}

// Query is a parsed query. Use Parser to build one.
type Query interface {
	String() string
	isQuery()
}

// TermQuery matches documents containing Term in Field.
type TermQuery struct {
	Field string
	Term  string
}

// PhraseQuery matches documents containing Terms in Field at the recorded
// relative positions.
type PhraseQuery struct {
	Field string
	Terms []Token
}

// PrefixQuery matches documents with any term in Field starting with Prefix.
type PrefixQuery struct {
	Field  string
	Prefix string
}

// BoolQuery combines clauses. With Must set, a document has to match every
// Must clause and Should clauses only add score; otherwise it has to match at
// least one Should clause. MustNot clauses exclude documents. A query with
// only MustNot clauses starts from every document.
type BoolQuery struct {
	Must    []Query
	Should  []Query
	MustNot []Query
}

// MatchNone matches nothing. It is the result of a query whose every term was
// removed by analysis (stop words, punctuation).
type MatchNone struct{}

func (TermQuery) isQuery()   {}
func (PhraseQuery) isQuery() {}
func (PrefixQuery) isQuery() {}
func (BoolQuery) isQuery()   {}
func (MatchNone) isQuery()   {}

func (q TermQuery) String() string { return q.Field + ":" + q.Term }

func (q PhraseQuery) String() string {
	terms := make([]string, len(q.Terms))
	for i, t := range q.Terms {
		terms[i] = t.Term
	}
	return fmt.Sprintf("%s:%q", q.Field, strings.Join(terms, " "))
}

func (q PrefixQuery) String() string { return q.Field + ":" + q.Prefix + "*" }

func (q BoolQuery) String() string {
	var parts []string
	for _, c := range q.Must {
		parts = append(parts, "+"+c.String())
	}
	for _, c := range q.Should {
		parts = append(parts, c.String())
	}
	for _, c := range q.MustNot {
		parts = append(parts, "-"+c.String())
	}
	return "(" + strings.Join(parts, " ") + ")"
}

func (MatchNone) String() string { return "<none>" }

// Parser parses free-text queries against a schema.
// A Parser is immutable and safe for concurrent use.
type Parser struct {
	schema   Schema
	fields   []string
	operator Operator
}

// NewParser returns a parser whose bare words search defaultFields.
func NewParser(schema Schema, defaultFields []string, op Operator) (*Parser, error) {
	if len(defaultFields) == 0 {
		return nil, fmt.Errorf("%w: no default fields", ErrInvalidSchema)
	}
	for _, f := range defaultFields {
		if _, ok := schema.Fields[f]; !ok {
			return nil, fmt.Errorf("%w: unknown default field %q", ErrInvalidSchema, f)
		}
	}
	return &Parser{schema: schema, fields: append([]string(nil), defaultFields...), operator: op}, nil
}

// Operator returns the default operator.
func (p *Parser) Operator() Operator { return p.operator }

// Parse parses text into a Query. Malformed text yields a *QueryParseError.
func (p *Parser) Parse(text string) (Query, error) {
	items, err := lex(text)
	if err != nil {
		return nil, err
	}
	if len(items) == 1 { // only EOF
		return nil, &QueryParseError{Query: text, Pos: 0, Msg: "empty query"}
	}

	st := &parseState{p: p, text: text, items: items}
	c, err := st.parseOr(p.fields)
	if err != nil {
		return nil, err
	}
	if it := st.peek(); it.kind != itemEOF {
		return nil, st.errorf(it, "unexpected %s", it)
	}

	switch {
	case c.q == nil:
		return MatchNone{}, nil
	case c.occur == occurMustNot:
		return BoolQuery{MustNot: []Query{c.q}}, nil
	default:
		return c.q, nil
	}
}

// Lexer

type itemKind int

const (
	itemEOF itemKind = iota
	itemWord
	itemPhrase
	itemField
	itemLParen
	itemRParen
	itemAnd
	itemOr
	itemNot
	itemPlus
	itemMinus
)

type item struct {
	kind itemKind
	text string
	pos  int
}

func (i item) String() string {
	switch i.kind {
	case itemEOF:
		return "end of query"
	case itemPhrase:
		return fmt.Sprintf("phrase %q", i.text)
	case itemField:
		return fmt.Sprintf("field %q", i.text)
	case itemLParen:
		return `"("`
	case itemRParen:
		return `")"`
	case itemAnd, itemOr, itemNot:
		return "operator " + i.text
	case itemPlus, itemMinus:
		return fmt.Sprintf("%q", i.text)
	default:
		return fmt.Sprintf("%q", i.text)
	}
}

func isDelim(r rune) bool {
	return unicode.IsSpace(r) || r == '(' || r == ')' || r == '"'
}

func lex(text string) ([]item, error) {
	var items []item
	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		switch {
		case unicode.IsSpace(r):
			i += size
		case r == '(':
			items = append(items, item{kind: itemLParen, text: "(", pos: i})
			i++
		case r == ')':
			items = append(items, item{kind: itemRParen, text: ")", pos: i})
			i++
		case r == '"':
			end := strings.IndexByte(text[i+1:], '"')
			if end < 0 {
				return nil, &QueryParseError{Query: text, Pos: i, Msg: "unterminated phrase"}
			}
			items = append(items, item{kind: itemPhrase, text: text[i+1 : i+1+end], pos: i})
			i += end + 2
		case (r == '+' || r == '-') && i+1 < len(text) && !unicode.IsSpace(rune(text[i+1])):
			kind := itemPlus
			if r == '-' {
				kind = itemMinus
			}
			items = append(items, item{kind: kind, text: string(r), pos: i})
			i++
		default:
			start := i
			for i < len(text) {
				r, size := utf8.DecodeRuneInString(text[i:])
				if isDelim(r) {
					break
				}
				if r == ':' && i > start {
					next, _ := utf8.DecodeRuneInString(text[i+1:])
					if i+1 >= len(text) || unicode.IsSpace(next) {
						return nil, &QueryParseError{Query: text, Pos: i, Msg: fmt.Sprintf("missing value for field %q", text[start:i])}
					}
					items = append(items, item{kind: itemField, text: text[start:i], pos: start})
					i++
					start = i
					if next == '(' || next == '"' {
						break
					}
					continue
				}
				i += size
			}
			if i == start {
				continue
			}
			word := text[start:i]
			kind := itemWord
			switch word {
			case "AND":
				kind = itemAnd
			case "OR":
				kind = itemOr
			case "NOT":
				kind = itemNot
			}
			items = append(items, item{kind: kind, text: word, pos: start})
		}
	}
	return append(items, item{kind: itemEOF, pos: len(text)}), nil
}

// Parser

type occur int

const (
	occurShould occur = iota
	occurMust
	occurMustNot
)

type clause struct {
	q     Query // nil when analysis removed everything
	occur occur
}

type parseState struct {
	p     *Parser
	text  string
	items []item
	i     int
}

func (st *parseState) peek() item { return st.items[st.i] }

func (st *parseState) next() item {
	it := st.items[st.i]
	if it.kind != itemEOF {
		st.i++
	}
	return it
}

func (st *parseState) errorf(it item, format string, args ...any) error {
	return &QueryParseError{Query: st.text, Pos: it.pos, Msg: fmt.Sprintf(format, args...)}
}

func startsClause(k itemKind) bool {
	switch k {
	case itemWord, itemPhrase, itemField, itemLParen, itemNot, itemPlus, itemMinus:
		return true
	}
	return false
}

func (st *parseState) parseOr(fields []string) (clause, error) {
	first, err := st.parseAnd(fields)
	if err != nil {
		return clause{}, err
	}
	clauses := []clause{first}
	for {
		it := st.peek()
		if it.kind == itemOr {
			st.next()
		} else if st.p.operator != OpOr || !startsClause(it.kind) {
			break
		}
		c, err := st.parseAnd(fields)
		if err != nil {
			return clause{}, err
		}
		clauses = append(clauses, c)
	}
	return combine(clauses, occurShould), nil
}

func (st *parseState) parseAnd(fields []string) (clause, error) {
	first, err := st.parseUnary(fields)
	if err != nil {
		return clause{}, err
	}
	clauses := []clause{first}
	for {
		it := st.peek()
		if it.kind == itemAnd {
			st.next()
		} else if st.p.operator != OpAnd || !startsClause(it.kind) {
			break
		}
		c, err := st.parseUnary(fields)
		if err != nil {
			return clause{}, err
		}
		clauses = append(clauses, c)
	}
	return combine(clauses, occurMust), nil
}

// combine joins clauses; plain clauses take the occur given by the joining
// operator.
func combine(clauses []clause, plain occur) clause {
	if len(clauses) == 1 {
		return clauses[0]
	}
	var b BoolQuery
	for _, c := range clauses {
		if c.q == nil {
			continue
		}
		o := c.occur
		if o == occurShould {
			o = plain
		}
		switch o {
		case occurMust:
			b.Must = append(b.Must, c.q)
		case occurMustNot:
			b.MustNot = append(b.MustNot, c.q)
		default:
			b.Should = append(b.Should, c.q)
		}
	}
	if len(b.Must)+len(b.Should)+len(b.MustNot) == 0 {
		return clause{}
	}
	if len(b.MustNot) == 0 && len(b.Must)+len(b.Should) == 1 {
		if len(b.Must) == 1 {
			return clause{q: b.Must[0]}
		}
		return clause{q: b.Should[0]}
	}
	return clause{q: b}
}

func (st *parseState) parseUnary(fields []string) (clause, error) {
	it := st.peek()
	switch it.kind {
	case itemNot, itemMinus:
		st.next()
		c, err := st.parseUnary(fields)
		if err != nil {
			return clause{}, err
		}
		if c.occur == occurMustNot {
			return clause{q: c.q}, nil
		}
		return clause{q: c.q, occur: occurMustNot}, nil
	case itemPlus:
		st.next()
		c, err := st.parseUnary(fields)
		if err != nil {
			return clause{}, err
		}
		if c.occur == occurMustNot {
			return c, nil
		}
		return clause{q: c.q, occur: occurMust}, nil
	}
	q, err := st.parsePrimary(fields)
	if err != nil {
		return clause{}, err
	}
	return clause{q: q}, nil
}

func (st *parseState) parsePrimary(fields []string) (Query, error) {
	it := st.next()
	switch it.kind {
	case itemLParen:
		if st.peek().kind == itemRParen {
			return nil, st.errorf(it, "empty group")
		}
		c, err := st.parseOr(fields)
		if err != nil {
			return nil, err
		}
		if closing := st.next(); closing.kind != itemRParen {
			return nil, st.errorf(it, "missing closing parenthesis")
		}
		if c.q != nil && c.occur == occurMustNot {
			return BoolQuery{MustNot: []Query{c.q}}, nil
		}
		return c.q, nil
	case itemField:
		if _, ok := st.p.schema.Fields[it.text]; !ok {
			return nil, st.errorf(it, "unknown field %q", it.text)
		}
		switch st.peek().kind {
		case itemWord, itemPhrase, itemLParen, itemField:
		default:
			return nil, st.errorf(st.peek(), "missing value for field %q", it.text)
		}
		return st.parsePrimary([]string{it.text})
	case itemPhrase:
		return st.leaf(fields, it.text), nil
	case itemWord:
		if strings.HasSuffix(it.text, "*") {
			prefix := strings.TrimRight(it.text, "*")
			if prefix == "" {
				return nil, st.errorf(it, "bare wildcard")
			}
			return st.prefix(fields, prefix), nil
		}
		return st.leaf(fields, it.text), nil
	case itemEOF:
		return nil, st.errorf(it, "unexpected end of query")
	default:
		return nil, st.errorf(it, "unexpected %s", it)
	}
}

// leaf analyzes text once per field and ORs the per-field queries.
func (st *parseState) leaf(fields []string, text string) Query {
	var qs []Query
	for _, name := range fields {
		a, _ := AnalyzerByName(st.p.schema.Fields[name].Analyzer)
		tokens := a.Analyze(text)
		switch len(tokens) {
		case 0:
		case 1:
			qs = append(qs, TermQuery{Field: name, Term: tokens[0].Term})
		default:
			qs = append(qs, PhraseQuery{Field: name, Terms: tokens})
		}
	}
	return anyOf(qs)
}

func (st *parseState) prefix(fields []string, text string) Query {
	var qs []Query
	for _, name := range fields {
		a, _ := AnalyzerByName(st.p.schema.Fields[name].Analyzer)
		if p := a.Fold(text); p != "" {
			qs = append(qs, PrefixQuery{Field: name, Prefix: p})
		}
	}
	return anyOf(qs)
}

func anyOf(qs []Query) Query {
	switch len(qs) {
	case 0:
		return nil
	case 1:
		return qs[0]
	default:
		return BoolQuery{Should: qs}
	}
}

// Fields returns the default fields.
func (p *Parser) Fields() []string { return append([]string(nil), p.fields...) }
