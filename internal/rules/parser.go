package rules

import (
	"strconv"
	"strings"

	"github.com/gzhole/guardcore/internal/value"
)

// parser is the recursive-descent driver over a token stream produced by
// lexer. parseClause and parseIdentClause choose each alternative from
// the current token (parseIdentClause also looks one token past a NOT)
// and never backtrack. The first error any production hits is returned
// to the caller at once; errors are not split into recoverable and fatal
// ones, and no other alternative is tried.
type parser struct {
	lx   *lexer
	cur  Token
	file string
}

func newParser(text, file string) (*parser, error) {
	p := &parser{lx: newLexer(text, file), file: file}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *parser) advance() error {
	tok, err := p.lx.next()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

type stopFn func(Token) bool

func stopAtRBrace(t Token) bool   { return t.Kind == TokRBrace || t.Kind == TokEOF }
func stopAtRBracket(t Token) bool { return t.Kind == TokRBracket || t.Kind == TokEOF }

func litPath(pos Pos) value.Path {
	return value.Root().WithLocation(value.Location{Line: pos.Line, Column: pos.Column})
}

// ParseRules parses rule-file text into a RulesFile. name tags every
// position and error with the file's identity for diagnostics.
func ParseRules(text, name string) (*RulesFile, error) {
	p, err := newParser(text, name)
	if err != nil {
		return nil, err
	}
	return p.parseFile()
}

func (p *parser) parseFile() (*RulesFile, error) {
	file := &RulesFile{Name: p.file}
	for p.cur.Kind != TokEOF {
		switch {
		case p.cur.Kind == TokIdent && p.cur.Text == "let":
			let, err := p.parseLet()
			if err != nil {
				return nil, err
			}
			file.Lets = append(file.Lets, let)
		case p.cur.Kind == TokIdent && p.cur.Text == "rule":
			rule, paramRule, err := p.parseRuleOrParameterized()
			if err != nil {
				return nil, err
			}
			if paramRule != nil {
				file.ParameterizedRules = append(file.ParameterizedRules, paramRule)
			} else {
				file.Rules = append(file.Rules, rule)
			}
		default:
			return nil, newParseError(p.cur.Pos, "file", "expected 'let' or 'rule'", p.lx.remaining())
		}
	}
	return file, nil
}

// parseLet implements `let ident ("=" | ":=") (value | query)`. Once the
// "=" or ":=" has been consumed, a missing right-hand side is fatal.
func (p *parser) parseLet() (*LetExpr, error) {
	pos := p.cur.Pos
	if err := p.advance(); err != nil { // consume 'let'
		return nil, err
	}
	if p.cur.Kind != TokIdent {
		return nil, newParseError(p.cur.Pos, "let binding", "expected variable name", p.lx.remaining())
	}
	name := p.cur.Text
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.cur.Kind != TokAssign && p.cur.Kind != TokWalrus {
		return nil, newParseError(p.cur.Pos, "let binding", "expected '=' or ':='", p.lx.remaining())
	}
	if err := p.advance(); err != nil { // commit point
		return nil, err
	}
	lit, q, err := p.parseValueOrQuery()
	if err != nil {
		return nil, err
	}
	return &LetExpr{Name: name, Literal: lit, Query: q, Pos: pos}, nil
}

func (p *parser) parseValueOrQuery() (*value.Value, *Query, error) {
	switch p.cur.Kind {
	case TokString, TokInt, TokFloat, TokChar, TokRegex, TokVersionString,
		TokLBracket, TokLBrace, TokRangeOpenParen, TokRangeOpenBracket:
		v, err := p.parseLiteralValue()
		if err != nil {
			return nil, nil, err
		}
		return v, nil, nil
	case TokIdent:
		switch p.cur.Text {
		case "true", "false", "null":
			v, err := p.parseLiteralValue()
			if err != nil {
				return nil, nil, err
			}
			return v, nil, nil
		default:
			q, err := p.parseQuery()
			if err != nil {
				return nil, nil, err
			}
			return nil, &q, nil
		}
	case TokVariable, TokStar:
		q, err := p.parseQuery()
		if err != nil {
			return nil, nil, err
		}
		return nil, &q, nil
	default:
		return nil, nil, newParseError(p.cur.Pos, "value or query", "expected value or query", p.lx.remaining())
	}
}

// parseRuleOrParameterized implements `rule ident ("(" params ")")?
// when_clause? "{" block_body "}"`.
func (p *parser) parseRuleOrParameterized() (*Rule, *ParameterizedRule, error) {
	pos := p.cur.Pos
	if err := p.advance(); err != nil { // consume 'rule'
		return nil, nil, err
	}
	if p.cur.Kind != TokIdent {
		return nil, nil, newParseError(p.cur.Pos, "rule", "expected rule name", p.lx.remaining())
	}
	name := p.cur.Text
	if err := p.advance(); err != nil {
		return nil, nil, err
	}

	var params []string
	if p.cur.Kind == TokLParen {
		if err := p.advance(); err != nil {
			return nil, nil, err
		}
		for p.cur.Kind != TokRParen {
			if p.cur.Kind != TokIdent {
				return nil, nil, newParseError(p.cur.Pos, "rule parameters", "expected parameter name", p.lx.remaining())
			}
			params = append(params, p.cur.Text)
			if err := p.advance(); err != nil {
				return nil, nil, err
			}
			if p.cur.Kind == TokComma {
				if err := p.advance(); err != nil {
					return nil, nil, err
				}
				continue
			}
			break
		}
		if p.cur.Kind != TokRParen {
			return nil, nil, newParseError(p.cur.Pos, "rule parameters", "expected ')'", p.lx.remaining())
		}
		if err := p.advance(); err != nil {
			return nil, nil, err
		}
	}

	var when *Conjunctions[GuardClause]
	if p.cur.Kind == TokIdent && p.cur.Text == "when" {
		w, err := p.parseWhenConditions()
		if err != nil {
			return nil, nil, err
		}
		when = &w
	}

	if p.cur.Kind != TokLBrace {
		return nil, nil, newParseError(p.cur.Pos, "rule", "expected '{'", p.lx.remaining())
	}
	if err := p.advance(); err != nil { // commit point: rule body is now fatal
		return nil, nil, err
	}
	body, err := p.parseBlockBody(stopAtRBrace)
	if err != nil {
		return nil, nil, err
	}
	if p.cur.Kind != TokRBrace {
		return nil, nil, newParseError(p.cur.Pos, "rule body", "expected '}'", p.lx.remaining())
	}
	if err := p.advance(); err != nil {
		return nil, nil, err
	}

	rule := &Rule{Name: name, When: when, Body: body, Pos: pos}
	if params != nil {
		return nil, &ParameterizedRule{Params: params, Rule: rule}, nil
	}
	return rule, nil, nil
}

// parseWhenConditions implements the "when conjunctions" prefix shared by
// when_clause (followed by the guarded rule/type-block's own body) and
// when_block (followed by its own body). The caller consumes the "{" that
// follows.
func (p *parser) parseWhenConditions() (Conjunctions[GuardClause], error) {
	if err := p.advance(); err != nil { // consume 'when'
		return Conjunctions[GuardClause]{}, err
	}
	return p.parseConjunctions(func(t Token) bool { return t.Kind == TokLBrace || t.Kind == TokEOF })
}

func (p *parser) parseConjunctions(stop stopFn) (Conjunctions[GuardClause], error) {
	var conj Conjunctions[GuardClause]
	for !stop(p.cur) {
		disj, err := p.parseDisjunction(stop)
		if err != nil {
			return conj, err
		}
		conj.Disjunctions = append(conj.Disjunctions, disj)
	}
	return conj, nil
}

func (p *parser) parseDisjunction(stop stopFn) (Disjunctions[GuardClause], error) {
	var d Disjunctions[GuardClause]
	for {
		clause, err := p.parseClause()
		if err != nil {
			return d, err
		}
		d.Members = append(d.Members, clause)
		if p.cur.Kind == TokOr {
			if err := p.advance(); err != nil {
				return d, err
			}
			continue
		}
		break
	}
	return d, nil
}

// parseBlockBody implements `( let | clause | type_block | when_block )*`.
// type_block and when_block are modeled as GuardClause variants (see
// ast.go), so only `let` needs to be special-cased out of the
// disjunction/conjunction machinery shared with filters and when-clauses.
func (p *parser) parseBlockBody(stop stopFn) (Block, error) {
	var block Block
	for !stop(p.cur) {
		if p.cur.Kind == TokIdent && p.cur.Text == "let" {
			let, err := p.parseLet()
			if err != nil {
				return block, err
			}
			block.Lets = append(block.Lets, let)
			continue
		}
		disj, err := p.parseDisjunction(stop)
		if err != nil {
			return block, err
		}
		block.Clauses.Disjunctions = append(block.Clauses.Disjunctions, disj)
	}
	return block, nil
}

// parseClause implements the `clause` production plus type_block and
// when_block, dispatching on the lookahead token.
func (p *parser) parseClause() (GuardClause, error) {
	switch {
	case p.cur.Kind == TokIdent && p.cur.Text == "when":
		return p.parseWhenBlock()
	case p.cur.Kind == TokIdent && strings.Contains(p.cur.Text, "::") && p.cur.Text != "NOT":
		return p.parseTypeBlock()
	case p.cur.Kind == TokIdent:
		return p.parseIdentClause()
	case p.cur.Kind == TokVariable || p.cur.Kind == TokStar:
		return p.parseQueryLeadClause()
	default:
		return nil, newParseError(p.cur.Pos, "clause", "expected clause", p.lx.remaining())
	}
}

func (p *parser) parseWhenBlock() (GuardClause, error) {
	pos := p.cur.Pos
	conds, err := p.parseWhenConditions()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind != TokLBrace {
		return nil, newParseError(p.cur.Pos, "when block", "expected '{'", p.lx.remaining())
	}
	if err := p.advance(); err != nil { // commit point
		return nil, err
	}
	body, err := p.parseBlockBody(stopAtRBrace)
	if err != nil {
		return nil, err
	}
	if p.cur.Kind != TokRBrace {
		return nil, newParseError(p.cur.Pos, "when block body", "expected '}'", p.lx.remaining())
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return &WhenBlock{Conditions: conds, Body: body, Pos: pos}, nil
}

func (p *parser) parseTypeBlock() (GuardClause, error) {
	pos := p.cur.Pos
	typeName := p.cur.Text
	if err := p.advance(); err != nil {
		return nil, err
	}
	var when *Conjunctions[GuardClause]
	if p.cur.Kind == TokIdent && p.cur.Text == "when" {
		w, err := p.parseWhenConditions()
		if err != nil {
			return nil, err
		}
		when = &w
	}
	if p.cur.Kind != TokLBrace {
		return nil, newParseError(p.cur.Pos, "type block", "expected '{'", p.lx.remaining())
	}
	if err := p.advance(); err != nil { // commit point
		return nil, err
	}
	body, err := p.parseBlockBody(stopAtRBrace)
	if err != nil {
		return nil, err
	}
	if p.cur.Kind != TokRBrace {
		return nil, newParseError(p.cur.Pos, "type block body", "expected '}'", p.lx.remaining())
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return &TypeBlock{TypeName: typeName, When: when, Body: body, Pos: pos}, nil
}

// parseIdentClause handles every clause form that begins with a bare
// identifier: "NOT rule_name", a parameterized call "name(args)", a named
// rule reference "name" on its own, an access clause "query cmp rhs", or
// a block guard clause "query { ... }".
func (p *parser) parseIdentClause() (GuardClause, error) {
	if p.cur.Text == "NOT" {
		return p.parseNegatedNamedRule()
	}

	pos := p.cur.Pos
	name := p.cur.Text
	if err := p.advance(); err != nil {
		return nil, err
	}

	if p.cur.Kind == TokLParen {
		args, err := p.parseArgList()
		if err != nil {
			return nil, err
		}
		return &ParameterizedNamedRuleClause{Name: name, Args: args, Pos: pos}, nil
	}

	var parts []QueryPart
	if name == "_" {
		parts = []QueryPart{ThisPart{}}
	} else {
		parts = []QueryPart{KeyPart{Name: name}}
	}
	parts, err := p.continueQueryParts(parts)
	if err != nil {
		return nil, err
	}
	query := Query{Parts: parts, Pos: pos}

	if len(parts) == 1 && p.cur.Kind == TokIdent && p.cur.Text == "NOT" {
		// "name NOT other" is a named-rule reference followed by a negated
		// one, unless the token after NOT starts a comparator.
		ahead := *p.lx
		if next, err := ahead.next(); err == nil && !isComparatorStart(next) {
			return &NamedRuleClause{Name: name, Pos: pos}, nil
		}
	}
	if isComparatorStart(p.cur) {
		return p.parseAccessClauseTail(query)
	}
	if p.cur.Kind == TokLBrace {
		return p.parseBlockClauseTail(query, pos)
	}
	if len(parts) == 1 {
		return &NamedRuleClause{Name: name, Pos: pos}, nil
	}
	return nil, newParseError(p.cur.Pos, "clause", "expected comparator or '{' after query", p.lx.remaining())
}

func (p *parser) parseNegatedNamedRule() (GuardClause, error) {
	if err := p.advance(); err != nil { // consume 'NOT'
		return nil, err
	}
	if p.cur.Kind != TokIdent {
		return nil, newParseError(p.cur.Pos, "named-rule reference", "expected rule name after NOT", p.lx.remaining())
	}
	name := p.cur.Text
	pos := p.cur.Pos
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.cur.Kind == TokLParen {
		args, err := p.parseArgList()
		if err != nil {
			return nil, err
		}
		return &ParameterizedNamedRuleClause{Name: name, Args: args, Pos: pos}, nil
	}
	return &NamedRuleClause{Name: name, Negated: true, Pos: pos}, nil
}

// parseQueryLeadClause handles a clause whose query begins with a
// variable reference or "*" (rather than a bare identifier).
func (p *parser) parseQueryLeadClause() (GuardClause, error) {
	query, err := p.parseQuery()
	if err != nil {
		return nil, err
	}
	if isComparatorStart(p.cur) {
		return p.parseAccessClauseTail(query)
	}
	if p.cur.Kind == TokLBrace {
		return p.parseBlockClauseTail(query, query.Pos)
	}
	return nil, newParseError(p.cur.Pos, "clause", "expected comparator or '{' after query", p.lx.remaining())
}

func (p *parser) parseAccessClauseTail(query Query) (GuardClause, error) {
	pos := query.Pos
	cmp, err := p.parseComparator()
	if err != nil {
		return nil, err
	}
	clause := &AccessClause{Query: query, Cmp: cmp, Pos: pos}
	if !cmp.IsUnary() {
		rhs, err := p.parseRHS()
		if err != nil {
			return nil, err
		}
		clause.Rhs = &rhs
	}
	if p.cur.Kind == TokCustomMessage {
		clause.Message = p.cur.Text
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	return clause, nil
}

func (p *parser) parseBlockClauseTail(query Query, pos Pos) (GuardClause, error) {
	if err := p.advance(); err != nil { // consume '{': commit point
		return nil, err
	}
	body, err := p.parseBlockBody(stopAtRBrace)
	if err != nil {
		return nil, err
	}
	if p.cur.Kind != TokRBrace {
		return nil, newParseError(p.cur.Pos, "block guard clause body", "expected '}'", p.lx.remaining())
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return &BlockClause{Query: query, Body: body, Pos: pos}, nil
}

func isComparatorStart(t Token) bool {
	switch t.Kind {
	case TokEqEq, TokNotEq, TokLe, TokLt, TokGe, TokGt:
		return true
	case TokIdent:
		switch t.Text {
		case "IN", "EXISTS", "EMPTY", "IS_LIST", "IS_MAP", "IS_STRING",
			"IS_INT", "IS_FLOAT", "IS_BOOL", "IS_NULL", "NOT", "KEYS":
			return true
		}
	}
	return false
}

var isUnaryKeyword = map[string]CompareOp{
	"EXISTS":    OpExists,
	"EMPTY":     OpEmpty,
	"IS_LIST":   OpIsList,
	"IS_MAP":    OpIsMap,
	"IS_STRING": OpIsString,
	"IS_INT":    OpIsInt,
	"IS_FLOAT":  OpIsFloat,
	"IS_BOOL":   OpIsBool,
	"IS_NULL":   OpIsNull,
}

func (p *parser) parseComparator() (Comparator, error) {
	var cmp Comparator
	if p.cur.Kind == TokIdent && p.cur.Text == "KEYS" {
		cmp.Keyed = true
		if err := p.advance(); err != nil {
			return cmp, err
		}
	}
	if p.cur.Kind == TokIdent && p.cur.Text == "NOT" {
		cmp.Negated = true
		if err := p.advance(); err != nil {
			return cmp, err
		}
	}
	// Ordering comparators take no NOT prefix (see Comparator.Negatable).
	switch {
	case p.cur.Kind == TokEqEq:
		cmp.Op = OpEq
		return cmp, p.advance()
	case p.cur.Kind == TokNotEq:
		cmp.Op = OpEq
		cmp.Negated = true
		return cmp, p.advance()
	case !cmp.Negated && p.cur.Kind == TokLe:
		cmp.Op = OpLe
		return cmp, p.advance()
	case !cmp.Negated && p.cur.Kind == TokLt:
		cmp.Op = OpLt
		return cmp, p.advance()
	case !cmp.Negated && p.cur.Kind == TokGe:
		cmp.Op = OpGe
		return cmp, p.advance()
	case !cmp.Negated && p.cur.Kind == TokGt:
		cmp.Op = OpGt
		return cmp, p.advance()
	case p.cur.Kind == TokIdent && p.cur.Text == "IN":
		cmp.Op = OpIn
		return cmp, p.advance()
	case p.cur.Kind == TokIdent:
		if op, ok := isUnaryKeyword[p.cur.Text]; ok {
			cmp.Op = op
			return cmp, p.advance()
		}
	}
	return cmp, newParseError(p.cur.Pos, "comparator", "expected comparator", p.lx.remaining())
}

func (p *parser) parseRHS() (RHS, error) {
	v, q, err := p.parseValueOrQuery()
	if err != nil {
		return RHS{}, err
	}
	return RHS{Literal: v, Query: q}, nil
}

func (p *parser) parseArgList() ([]RHS, error) {
	if err := p.advance(); err != nil { // consume '('
		return nil, err
	}
	var args []RHS
	for p.cur.Kind != TokRParen {
		rhs, err := p.parseRHS()
		if err != nil {
			return nil, err
		}
		args = append(args, rhs)
		if p.cur.Kind == TokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if p.cur.Kind != TokRParen {
		return nil, newParseError(p.cur.Pos, "argument list", "expected ')'", p.lx.remaining())
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return args, nil
}

// --- Query parsing ---

func (p *parser) parseQuery() (Query, error) {
	pos := p.cur.Pos
	first, err := p.parseQueryPart()
	if err != nil {
		return Query{}, err
	}
	parts, err := p.continueQueryParts([]QueryPart{first})
	if err != nil {
		return Query{}, err
	}
	return Query{Parts: parts, Pos: pos}, nil
}

func (p *parser) continueQueryParts(parts []QueryPart) ([]QueryPart, error) {
	for {
		for p.cur.Kind == TokLBracket {
			bp, err := p.parseBracket()
			if err != nil {
				return nil, err
			}
			parts = append(parts, bp)
		}
		if p.cur.Kind == TokDot {
			if err := p.advance(); err != nil {
				return nil, err
			}
			part, err := p.parseQueryPart()
			if err != nil {
				return nil, err
			}
			parts = append(parts, part)
			continue
		}
		break
	}
	return parts, nil
}

func (p *parser) parseQueryPart() (QueryPart, error) {
	switch p.cur.Kind {
	case TokVariable:
		name := p.cur.Text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return VariablePart{Name: name}, nil
	case TokStar:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return AllValuesPart{}, nil
	case TokIdent:
		text := p.cur.Text
		if text == "_" {
			if err := p.advance(); err != nil {
				return nil, err
			}
			return ThisPart{}, nil
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.Kind == TokLParen {
			return p.parseFunctionCallPart(text)
		}
		return KeyPart{Name: text}, nil
	default:
		return nil, newParseError(p.cur.Pos, "query", "expected query part", p.lx.remaining())
	}
}

func (p *parser) parseFunctionCallPart(name string) (QueryPart, error) {
	if err := p.advance(); err != nil { // consume '('
		return nil, err
	}
	var args []Query
	for p.cur.Kind != TokRParen {
		q, err := p.parseQuery()
		if err != nil {
			return nil, err
		}
		args = append(args, q)
		if p.cur.Kind == TokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if p.cur.Kind != TokRParen {
		return nil, newParseError(p.cur.Pos, "function call", "expected ')'", p.lx.remaining())
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return FunctionCallPart{Name: name, Args: args}, nil
}

func (p *parser) parseBracket() (QueryPart, error) {
	if err := p.advance(); err != nil { // consume '['
		return nil, err
	}
	if p.cur.Kind == TokStar {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.Kind != TokRBracket {
			return nil, newParseError(p.cur.Pos, "wildcard index", "expected ']'", p.lx.remaining())
		}
		return AllIndicesPart{}, p.advance()
	}
	if p.cur.Kind == TokInt {
		n, err := strconv.Atoi(p.cur.Text)
		if err != nil {
			return nil, newParseError(p.cur.Pos, "index", "invalid integer index", p.lx.remaining())
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.Kind != TokRBracket {
			return nil, newParseError(p.cur.Pos, "index", "expected ']'", p.lx.remaining())
		}
		return IndexPart{Index: n}, p.advance()
	}
	if p.cur.Kind == TokIdent && p.cur.Text == "keys" {
		if err := p.advance(); err != nil {
			return nil, err
		}
		cmp, err := p.parseComparator()
		if err != nil {
			return nil, err
		}
		cmp.Keyed = true
		rhs, err := p.parseLiteralValue()
		if err != nil {
			return nil, err
		}
		if p.cur.Kind != TokRBracket {
			return nil, newParseError(p.cur.Pos, "key filter", "expected ']'", p.lx.remaining())
		}
		return MapKeyFilterPart{Cmp: cmp, Rhs: rhs}, p.advance()
	}
	conj, err := p.parseConjunctions(stopAtRBracket)
	if err != nil {
		return nil, err
	}
	if p.cur.Kind != TokRBracket {
		return nil, newParseError(p.cur.Pos, "filter", "expected ']'", p.lx.remaining())
	}
	return FilterPart{Predicate: conj}, p.advance()
}

// --- Literal value parsing ---

func (p *parser) parseLiteralValue() (*value.Value, error) {
	pos := p.cur.Pos
	switch p.cur.Kind {
	case TokString, TokVersionString:
		s := p.cur.Text
		return value.NewString(s, litPath(pos)), p.advance()
	case TokChar:
		r := []rune(p.cur.Text)[0]
		return value.NewChar(r, litPath(pos)), p.advance()
	case TokInt:
		n, err := strconv.ParseInt(p.cur.Text, 10, 64)
		if err != nil {
			return nil, newParseError(pos, "int literal", "invalid integer", p.lx.remaining())
		}
		return value.NewInt(n, litPath(pos)), p.advance()
	case TokFloat:
		f, err := strconv.ParseFloat(p.cur.Text, 64)
		if err != nil {
			return nil, newParseError(pos, "float literal", "invalid float", p.lx.remaining())
		}
		return value.NewFloat(f, litPath(pos)), p.advance()
	case TokRegex:
		pat := p.cur.Text
		return value.NewRegex(pat, litPath(pos)), p.advance()
	case TokLBracket:
		return p.parseLiteralList(pos)
	case TokLBrace:
		return p.parseLiteralMap(pos)
	case TokRangeOpenParen, TokRangeOpenBracket:
		return p.parseLiteralRange(pos)
	case TokIdent:
		switch p.cur.Text {
		case "true", "false":
			b := p.cur.Text == "true"
			return value.NewBool(b, litPath(pos)), p.advance()
		case "null":
			return value.NewNull(litPath(pos)), p.advance()
		}
	}
	return nil, newParseError(p.cur.Pos, "literal value", "expected literal value", p.lx.remaining())
}

func (p *parser) parseLiteralList(pos Pos) (*value.Value, error) {
	if err := p.advance(); err != nil { // consume '['
		return nil, err
	}
	var items []*value.Value
	for p.cur.Kind != TokRBracket {
		item, err := p.parseLiteralValue()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.cur.Kind == TokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if p.cur.Kind != TokRBracket {
		return nil, newParseError(p.cur.Pos, "list literal", "expected ']'", p.lx.remaining())
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return value.NewList(items, litPath(pos)), nil
}

func (p *parser) parseLiteralMap(pos Pos) (*value.Value, error) {
	if err := p.advance(); err != nil { // consume '{'
		return nil, err
	}
	var keys []string
	vals := map[string]*value.Value{}
	for p.cur.Kind != TokRBrace {
		if p.cur.Kind != TokString {
			return nil, newParseError(p.cur.Pos, "map literal", "expected quoted key", p.lx.remaining())
		}
		key := p.cur.Text
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.Kind != TokColon {
			return nil, newParseError(p.cur.Pos, "map literal", "expected ':'", p.lx.remaining())
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		val, err := p.parseLiteralValue()
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
		vals[key] = val
		if p.cur.Kind == TokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if p.cur.Kind != TokRBrace {
		return nil, newParseError(p.cur.Pos, "map literal", "expected '}'", p.lx.remaining())
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return value.NewMap(keys, vals, litPath(pos)), nil
}

func (p *parser) parseLiteralRange(pos Pos) (*value.Value, error) {
	lowerInclusive := p.cur.Kind == TokRangeOpenBracket
	if err := p.advance(); err != nil { // consume 'r(' or 'r['
		return nil, err
	}
	lo, err := p.parseLiteralValue()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind != TokComma {
		return nil, newParseError(p.cur.Pos, "range literal", "expected ','", p.lx.remaining())
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	hi, err := p.parseLiteralValue()
	if err != nil {
		return nil, err
	}
	var upperInclusive bool
	switch p.cur.Kind {
	case TokRParen:
		upperInclusive = false
	case TokRBracket:
		upperInclusive = true
	default:
		return nil, newParseError(p.cur.Pos, "range literal", "expected ')' or ']'", p.lx.remaining())
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	bounds := value.RangeBounds{LowerInclusive: lowerInclusive, UpperInclusive: upperInclusive}
	switch {
	case lo.Kind() == value.KindInt && hi.Kind() == value.KindInt:
		return value.NewIntRange(lo.Int(), hi.Int(), bounds, litPath(pos)), nil
	case lo.Kind() == value.KindChar && hi.Kind() == value.KindChar:
		return value.NewCharRange(lo.Char(), hi.Char(), bounds, litPath(pos)), nil
	default:
		return value.NewFloatRange(numericLiteralAsFloat(lo), numericLiteralAsFloat(hi), bounds, litPath(pos)), nil
	}
}

func numericLiteralAsFloat(v *value.Value) float64 {
	if v.Kind() == value.KindInt {
		return float64(v.Int())
	}
	return v.Float()
}
