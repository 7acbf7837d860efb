// Package parser reads ASN.1 module text into the definition registry.
//
// Parsing is single pass. Type assignments are declared and defined in the
// registry as they are read; references to names not seen yet become
// placeholders that later definitions fill in. Constructs outside the
// supported subset (value assignments, macros, constraints, named-number
// lists) are skipped. Any syntax error is fatal for the compilation and is
// returned as a *types.Error.
package parser

import (
	"log/slog"
	"strconv"

	"github.com/golangsnmp/goodr/internal/lexer"
	"github.com/golangsnmp/goodr/internal/module"
	"github.com/golangsnmp/goodr/internal/types"
	"github.com/golangsnmp/goodr/odr"
)

// Parser reads the modules of one source file.
type Parser struct {
	lex  *lexer.Lexer
	buf  [2]lexer.Token // buf[0]=current, buf[1]=peek(1)
	file string
	reg  *module.Registry

	mod      *module.Module
	implicit bool         // tag default of mod
	def      module.DefID // assignment being parsed
	skipping bool         // parsing a type that is discarded

	diagnostics []types.Diagnostic
	types.Logger
}

// New returns a Parser over source. Pass nil for logger to disable logging.
func New(source []byte, file string, reg *module.Registry, logger *slog.Logger) *Parser {
	lex := lexer.New(source, file, logger)
	p := &Parser{
		lex:    lex,
		file:   file,
		reg:    reg,
		Logger: types.Component(logger, "parser"),
	}
	p.buf[0] = lex.Next()
	p.buf[1] = lex.Next()
	return p
}

// Diagnostics returns the non-fatal diagnostics of the lexer and parser.
func (p *Parser) Diagnostics() []types.Diagnostic {
	out := append([]types.Diagnostic(nil), p.lex.Diagnostics()...)
	return append(out, p.diagnostics...)
}

// Parse reads every module in the file. If start is set, the first module
// is marked as the one whose root type is the decode entry point.
func (p *Parser) Parse(start bool) ([]*module.Module, error) {
	var mods []*module.Module
	for !p.check(lexer.TokEOF) {
		m, err := p.parseModule()
		if err != nil {
			return mods, err
		}
		if start && len(mods) == 0 && !m.Global {
			m.Start = true
		}
		mods = append(mods, m)
	}
	if len(mods) == 0 {
		p.warn(types.DiagParseError, 0, "no modules in file")
	}
	return mods, nil
}

func (p *Parser) peek() lexer.Token { return p.buf[0] }

func (p *Parser) advance() lexer.Token {
	tok := p.buf[0]
	if tok.Kind == lexer.TokEOF {
		return tok
	}
	p.buf[0] = p.buf[1]
	p.buf[1] = p.lex.Next()
	return tok
}

func (p *Parser) check(kind lexer.TokenKind) bool {
	return p.buf[0].Kind == kind
}

// checkName reports whether the current token is the given word.
func (p *Parser) checkName(text string) bool {
	return p.buf[0].Is(text)
}

// accept consumes the current token if it is the given word.
func (p *Parser) accept(text string) bool {
	if p.buf[0].Is(text) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) acceptKind(kind lexer.TokenKind) bool {
	if p.buf[0].Kind == kind {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(kind lexer.TokenKind) (lexer.Token, error) {
	if !p.check(kind) {
		return p.peek(), p.errorf("expected %s, found %s", kind, p.peek().Describe())
	}
	return p.advance(), nil
}

func (p *Parser) expectName(text string) error {
	if !p.accept(text) {
		return p.errorf("expected %q, found %s", text, p.peek().Describe())
	}
	return nil
}

func (p *Parser) moduleName() string {
	if p.mod == nil {
		return ""
	}
	return p.mod.Name
}

func (p *Parser) errorf(format string, args ...any) error {
	return p.fail(types.DiagParseError, format, args...)
}

func (p *Parser) fail(code, format string, args ...any) error {
	return types.Errorf(code, p.file, p.moduleName(), p.peek().Line, format, args...)
}

func (p *Parser) warn(code string, line int, msg string) {
	p.diagnostics = append(p.diagnostics, types.Diagnostic{
		Severity: types.SeverityWarning,
		Code:     code,
		Message:  msg,
		File:     p.file,
		Module:   p.moduleName(),
		Line:     line,
	})
}

func isUpper(s string) bool {
	return s != "" && s[0] >= 'A' && s[0] <= 'Z'
}

func isLower(s string) bool {
	return s != "" && s[0] >= 'a' && s[0] <= 'z'
}

// parseModule reads "Name [{oid}] DEFINITIONS [tags] ::= BEGIN ... END".
func (p *Parser) parseModule() (*module.Module, error) {
	p.mod = nil
	nameTok := p.peek()
	if nameTok.Kind != lexer.TokName || !(isUpper(nameTok.Text) || nameTok.Text == module.GlobalModule) ||
		lexer.IsKeyword(nameTok.Text) {
		return nil, p.errorf("expected module name, found %s", nameTok.Describe())
	}
	p.advance()
	m, err := p.reg.DeclareModule(nameTok.Text, p.file, nameTok.Line)
	if err != nil {
		return nil, err
	}
	p.mod = m
	p.Log(slog.LevelDebug, "parsing module", slog.String("module", m.Name))

	if p.check(lexer.TokLBrace) {
		oid, err := p.parseModuleOID()
		if err != nil {
			return nil, err
		}
		m.OID, m.HasOID = oid, true
	}

	if err := p.expectName("DEFINITIONS"); err != nil {
		return nil, err
	}
	p.implicit = false
	switch {
	case p.accept("IMPLICIT"):
		p.implicit = true
		if err := p.expectName("TAGS"); err != nil {
			return nil, err
		}
	case p.accept("EXPLICIT"):
		if err := p.expectName("TAGS"); err != nil {
			return nil, err
		}
	case p.check(lexer.TokName) && !p.checkName("EXTENSIBILITY"):
		return nil, p.fail(types.DiagBadTagDefault,
			"unsupported tag default %s", p.peek().Describe())
	}
	if p.accept("EXTENSIBILITY") {
		if err := p.expectName("IMPLIED"); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(lexer.TokAssign); err != nil {
		return nil, err
	}
	if err := p.expectName("BEGIN"); err != nil {
		return nil, err
	}

	if err := p.parseExports(); err != nil {
		return nil, err
	}
	if err := p.parseImports(); err != nil {
		return nil, err
	}
	for !p.checkName("END") {
		if p.check(lexer.TokEOF) {
			return nil, p.errorf("missing END of module")
		}
		if err := p.parseAssignment(); err != nil {
			return nil, err
		}
	}
	p.advance()
	p.reg.FinishModule(m)
	p.Log(slog.LevelDebug, "parsed module",
		slog.String("module", m.Name),
		slog.Int("definitions", len(m.Order)),
		slog.Int("imports", len(m.Imports)))
	return m, nil
}

// Well-known first arcs of module identifiers.
var oidRoots = map[string][]uint64{
	"itu-t":                   {0},
	"ccitt":                   {0},
	"iso":                     {1},
	"joint-iso-itu-t":         {2},
	"joint-iso-ccitt":         {2},
	"Z39-50-attributeSet":     {1, 2, 840, 10003, 3},
	"Z39-50-diagnosticFormat": {1, 2, 840, 10003, 4},
	"Z39-50-recordSyntax":     {1, 2, 840, 10003, 5},
	"Z39-50-resourceReport":   {1, 2, 840, 10003, 7},
	"Z39-50-accessControl":    {1, 2, 840, 10003, 8},
	"Z39-50-extendedService":  {1, 2, 840, 10003, 9},
	"Z39-50-userInfoFormat":   {1, 2, 840, 10003, 10},
	"Z39-50-elementSpec":      {1, 2, 840, 10003, 11},
	"Z39-50-variantSet":       {1, 2, 840, 10003, 12},
	"Z39-50-schema":           {1, 2, 840, 10003, 13},
	"Z39-50-tagSet":           {1, 2, 840, 10003, 14},
	"Z39-50-negotiation":      {1, 2, 840, 10003, 15},
	"Z39-50-query":            {1, 2, 840, 10003, 16},
}

// parseModuleOID reads a module identifier and returns its content octets.
// Arcs are numbers, "name(n)", or a well-known name in first position.
func (p *Parser) parseModuleOID() ([]byte, error) {
	open, _ := p.expect(lexer.TokLBrace)
	var arcs []uint64
	for !p.check(lexer.TokRBrace) {
		tok, err := p.expect(lexer.TokName)
		if err != nil {
			return nil, err
		}
		if n, err := strconv.ParseUint(tok.Text, 10, 64); err == nil {
			arcs = append(arcs, n)
			continue
		}
		if p.acceptKind(lexer.TokLParen) {
			num, err := p.expect(lexer.TokName)
			if err != nil {
				return nil, err
			}
			n, err := strconv.ParseUint(num.Text, 10, 64)
			if err != nil {
				return nil, p.fail(types.DiagBadModuleID, "bad arc %s in module identifier", num.Describe())
			}
			if _, err := p.expect(lexer.TokRParen); err != nil {
				return nil, err
			}
			arcs = append(arcs, n)
			continue
		}
		prefix, ok := oidRoots[tok.Text]
		if !ok || len(arcs) > 0 {
			return nil, p.fail(types.DiagBadModuleID, "unknown arc %s in module identifier", tok.Describe())
		}
		arcs = append(arcs, prefix...)
	}
	p.advance()
	oid, err := odr.EncodeArcs(arcs)
	if err != nil {
		return nil, types.Errorf(types.DiagBadModuleID, p.file, p.moduleName(), open.Line,
			"bad module identifier: %v", err)
	}
	if len(oid) > odr.OIDSize-1 {
		return nil, types.Errorf(types.DiagBadModuleID, p.file, p.moduleName(), open.Line,
			"module identifier is %d bytes, at most %d allowed", len(oid), odr.OIDSize-1)
	}
	return oid, nil
}

func (p *Parser) parseExports() error {
	if !p.accept("EXPORTS") {
		return nil
	}
	if p.accept("ALL") {
		p.mod.Exports = module.ExportAll
		_, err := p.expect(lexer.TokSemicolon)
		return err
	}
	p.mod.Exports = module.ExportList
	for !p.check(lexer.TokSemicolon) {
		tok, err := p.expect(lexer.TokName)
		if err != nil {
			return err
		}
		p.reg.Export(p.mod, tok.Text, p.file, tok.Line)
		if p.check(lexer.TokLBrace) {
			if err := p.skipBalanced(lexer.TokLBrace, lexer.TokRBrace); err != nil {
				return err
			}
		}
		if !p.acceptKind(lexer.TokComma) {
			break
		}
	}
	_, err := p.expect(lexer.TokSemicolon)
	return err
}

// parseImports reads "IMPORTS a, b FROM M1 [{oid}] c FROM M2 ;".
func (p *Parser) parseImports() error {
	if !p.accept("IMPORTS") {
		return nil
	}
	for !p.check(lexer.TokSemicolon) {
		var names []lexer.Token
		for !p.checkName("FROM") {
			tok, err := p.expect(lexer.TokName)
			if err != nil {
				return err
			}
			names = append(names, tok)
			if p.check(lexer.TokLBrace) {
				if err := p.skipBalanced(lexer.TokLBrace, lexer.TokRBrace); err != nil {
					return err
				}
			}
			p.acceptKind(lexer.TokComma)
		}
		p.advance()
		modTok, err := p.expect(lexer.TokName)
		if err != nil {
			return err
		}
		if p.check(lexer.TokLBrace) {
			if err := p.skipBalanced(lexer.TokLBrace, lexer.TokRBrace); err != nil {
				return err
			}
		}
		if modTok.Text == p.mod.Name {
			return types.Errorf(types.DiagImportClash, p.file, p.mod.Name, modTok.Line,
				"module imports from itself")
		}
		from := p.reg.ForwardModule(modTok.Text)
		for _, tok := range names {
			if _, err := p.reg.Import(p.mod, tok.Text, from, p.file, tok.Line); err != nil {
				return err
			}
		}
		p.Trace("import clause",
			slog.String("from", modTok.Text),
			slog.Int("names", len(names)))
	}
	p.advance()
	return nil
}

// parseAssignment reads one body item. Only type assignments are kept.
func (p *Parser) parseAssignment() error {
	tok := p.peek()
	next := p.buf[1]
	if tok.Kind != lexer.TokName {
		p.advance()
		return nil
	}
	switch {
	case isUpper(tok.Text) && next.Kind == lexer.TokAssign:
		return p.parseTypeAssignment()
	case isUpper(tok.Text) && next.Is("MACRO"):
		return p.skipMacro()
	case isUpper(tok.Text) && next.Kind == lexer.TokLBrace:
		return p.skipParameterized()
	case isLower(tok.Text):
		return p.skipValueAssignment()
	}
	p.Trace("skipped token", slog.String("text", tok.Text), slog.Int("line", tok.Line))
	p.advance()
	return nil
}

func (p *Parser) parseTypeAssignment() error {
	nameTok := p.advance()
	p.advance() // ::=
	if lexer.IsKeyword(nameTok.Text) {
		return types.Errorf(types.DiagParseError, p.file, p.mod.Name, nameTok.Line,
			"keyword %q used as a type name", nameTok.Text)
	}
	id, err := p.reg.Declare(p.mod, nameTok.Text, p.file, nameTok.Line)
	if err != nil {
		return err
	}
	p.def = id
	t, err := p.parseTaggedType()
	p.def = 0
	if err != nil {
		return err
	}
	p.reg.Define(id, t)
	return nil
}

// parseTaggedType reads a type with any number of leading tags.
func (p *Parser) parseTaggedType() (*module.Type, error) {
	if !p.check(lexer.TokLBracket) {
		return p.parseType()
	}
	line := p.peek().Line
	tag, err := p.parseTag()
	if err != nil {
		return nil, err
	}
	implicit := p.implicit
	if p.accept("IMPLICIT") {
		implicit = true
	} else if p.accept("EXPLICIT") {
		implicit = false
	}
	mt := &module.Tag{Tag: tag, Implicit: implicit}
	if p.check(lexer.TokLBracket) {
		inner, err := p.parseTaggedType()
		if err != nil {
			return nil, err
		}
		return &module.Type{Kind: module.KindTagged, Tag: mt, Elem: inner, Line: line}, nil
	}
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	t.Tag = mt
	return t, nil
}

// parseTag reads "[ [UNIVERSAL|APPLICATION|PRIVATE] n ]".
func (p *Parser) parseTag() (odr.Tag, error) {
	p.advance()
	class := odr.ClassContext
	switch {
	case p.accept("UNIVERSAL"):
		class = odr.ClassUniversal
	case p.accept("APPLICATION"):
		class = odr.ClassApplication
	case p.accept("PRIVATE"):
		class = odr.ClassPrivate
	}
	numTok, err := p.expect(lexer.TokName)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(numTok.Text, 10, 32)
	if err != nil {
		if _, err := strconv.ParseUint(numTok.Text, 10, 64); err == nil {
			return 0, p.fail(types.DiagTagTooLarge, "tag number %s too large", numTok.Text)
		}
		return 0, p.errorf("bad tag number %s", numTok.Describe())
	}
	tag, err := odr.MakeTag(class, uint32(n))
	if err != nil {
		return 0, p.fail(types.DiagTagTooLarge, "tag number %d too large", n)
	}
	if _, err := p.expect(lexer.TokRBracket); err != nil {
		return 0, err
	}
	return tag, nil
}

func (p *Parser) builtin(b module.Builtin, line int) (*module.Type, error) {
	t := &module.Type{Kind: module.KindBuiltin, Builtin: b, Line: line}
	return t, p.skipSubtype()
}

// parseType reads an untagged type.
func (p *Parser) parseType() (*module.Type, error) {
	tok := p.peek()
	if tok.Kind != lexer.TokName {
		return nil, p.errorf("expected type, found %s", tok.Describe())
	}
	line := tok.Line
	switch tok.Text {
	case "BOOLEAN":
		p.advance()
		return p.builtin(module.BuiltinBoolean, line)
	case "INTEGER":
		p.advance()
		return p.builtin(module.BuiltinInteger, line)
	case "NULL":
		p.advance()
		return p.builtin(module.BuiltinNull, line)
	case "REAL":
		p.advance()
		return p.builtin(module.BuiltinReal, line)
	case "EXT_DREF":
		p.advance()
		return p.builtin(module.BuiltinExtDRef, line)
	case "EXT_ASN":
		p.advance()
		return p.builtin(module.BuiltinExtASN, line)
	case "BIT", "OCTET":
		p.advance()
		if err := p.expectName("STRING"); err != nil {
			return nil, err
		}
		if tok.Text == "BIT" {
			return p.builtin(module.BuiltinBitString, line)
		}
		return p.builtin(module.BuiltinOctetString, line)
	case "OBJECT":
		p.advance()
		if err := p.expectName("IDENTIFIER"); err != nil {
			return nil, err
		}
		return p.builtin(module.BuiltinOID, line)
	case "ANY":
		p.advance()
		if p.accept("DEFINED") {
			if err := p.expectName("BY"); err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.TokName); err != nil {
				return nil, err
			}
		}
		return p.builtin(module.BuiltinAny, line)
	case "SEQUENCE", "SET":
		p.advance()
		return p.parseStructured(tok.Text == "SET", line)
	case "CHOICE":
		p.advance()
		comps, err := p.parseComponents(true)
		if err != nil {
			return nil, err
		}
		return &module.Type{Kind: module.KindChoice, Components: comps, Line: line}, nil
	case "COMPONENTS":
		return nil, p.fail(types.DiagUnsupported, "COMPONENTS OF is not supported")
	}
	if lexer.IsKeyword(tok.Text) {
		return nil, p.errorf("unexpected keyword %s, expected type", tok.Describe())
	}
	if !isUpper(tok.Text) {
		return nil, p.errorf("expected type, found %s", tok.Describe())
	}
	p.advance()
	var ref module.DefID
	if !p.skipping {
		ref = p.reg.Reference(p.mod, tok.Text, p.def, p.file, line)
	}
	t := &module.Type{Kind: module.KindRef, Ref: ref, Line: line}
	return t, p.skipSubtype()
}

// parseStructured reads what follows SEQUENCE or SET.
func (p *Parser) parseStructured(set bool, line int) (*module.Type, error) {
	if p.check(lexer.TokLBrace) {
		comps, err := p.parseComponents(false)
		if err != nil {
			return nil, err
		}
		kind := module.KindSequence
		if set {
			kind = module.KindSet
		}
		return &module.Type{Kind: kind, Components: comps, Line: line}, nil
	}

	if p.accept("SIZE") && !p.check(lexer.TokLParen) {
		return nil, p.errorf("expected size constraint, found %s", p.peek().Describe())
	}
	if p.check(lexer.TokLParen) {
		if err := p.skipBalanced(lexer.TokLParen, lexer.TokRParen); err != nil {
			return nil, err
		}
	}
	if err := p.expectName("OF"); err != nil {
		return nil, err
	}
	// "SEQUENCE OF name Type" carries an element name that is not kept.
	if isLower(p.peek().Text) && p.peek().Kind == lexer.TokName &&
		(p.buf[1].Kind == lexer.TokName || p.buf[1].Kind == lexer.TokLBracket) {
		p.advance()
	}
	elem, err := p.parseTaggedType()
	if err != nil {
		return nil, err
	}
	kind := module.KindSequenceOf
	if set {
		kind = module.KindSetOf
	}
	return &module.Type{Kind: kind, Elem: elem, Line: line}, nil
}

// parseComponents reads "{ name Type [OPTIONAL|DEFAULT v], ... }".
// Component names may be omitted.
func (p *Parser) parseComponents(choice bool) ([]module.Component, error) {
	if _, err := p.expect(lexer.TokLBrace); err != nil {
		return nil, err
	}
	var comps []module.Component
	for !p.check(lexer.TokRBrace) {
		tok := p.peek()
		if tok.Is("...") {
			p.advance()
			if p.check(lexer.TokName) && p.peek().Text[0] == '!' {
				p.advance()
			}
			if !p.acceptKind(lexer.TokComma) {
				break
			}
			continue
		}
		if tok.Is("COMPONENTS") {
			return nil, p.fail(types.DiagUnsupported, "COMPONENTS OF is not supported")
		}
		var name string
		if tok.Kind == lexer.TokName && isLower(tok.Text) {
			name = tok.Text
			p.advance()
		}
		t, err := p.parseTaggedType()
		if err != nil {
			return nil, err
		}
		c := module.Component{Name: name, Type: t, Line: tok.Line}
		if !choice {
			switch {
			case p.accept("OPTIONAL"):
				c.Optional = true
			case p.accept("DEFAULT"):
				if err := p.skipValue(); err != nil {
					return nil, err
				}
				c.Optional = true
			}
		}
		comps = append(comps, c)
		if !p.acceptKind(lexer.TokComma) {
			break
		}
	}
	if _, err := p.expect(lexer.TokRBrace); err != nil {
		return nil, err
	}
	return comps, nil
}

// skipSubtype skips named-number lists and constraints after a type.
func (p *Parser) skipSubtype() error {
	for {
		switch {
		case p.check(lexer.TokLBrace):
			if err := p.skipBalanced(lexer.TokLBrace, lexer.TokRBrace); err != nil {
				return err
			}
		case p.check(lexer.TokLParen):
			if err := p.skipBalanced(lexer.TokLParen, lexer.TokRParen); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// skipBalanced skips from the current open token to its matching close.
func (p *Parser) skipBalanced(open, close lexer.TokenKind) error {
	start := p.peek().Line
	depth := 0
	for {
		switch p.peek().Kind {
		case open:
			depth++
		case close:
			depth--
		case lexer.TokEOF:
			return types.Errorf(types.DiagUnbalanced, p.file, p.moduleName(), start,
				"unbalanced %s", open)
		}
		p.advance()
		if depth == 0 {
			return nil
		}
	}
}

// skipValue skips a value: a braced group or a single token.
func (p *Parser) skipValue() error {
	switch p.peek().Kind {
	case lexer.TokLBrace:
		return p.skipBalanced(lexer.TokLBrace, lexer.TokRBrace)
	case lexer.TokName:
		p.advance()
		return nil
	}
	return p.errorf("expected value, found %s", p.peek().Describe())
}

// skipValueAssignment skips "name Type ::= value".
func (p *Parser) skipValueAssignment() error {
	name := p.advance()
	for !p.check(lexer.TokAssign) {
		switch {
		case p.check(lexer.TokEOF), p.checkName("END"):
			return types.Errorf(types.DiagParseError, p.file, p.moduleName(), name.Line,
				"incomplete value assignment %q", name.Text)
		case p.check(lexer.TokLBrace):
			if err := p.skipBalanced(lexer.TokLBrace, lexer.TokRBrace); err != nil {
				return err
			}
		case p.check(lexer.TokLParen):
			if err := p.skipBalanced(lexer.TokLParen, lexer.TokRParen); err != nil {
				return err
			}
		default:
			p.advance()
		}
	}
	p.advance()
	p.Trace("skipped value assignment", slog.String("name", name.Text))
	return p.skipValue()
}

// skipMacro skips "Name MACRO ::= BEGIN ... END".
func (p *Parser) skipMacro() error {
	name := p.advance()
	p.advance()
	if _, err := p.expect(lexer.TokAssign); err != nil {
		return err
	}
	if err := p.expectName("BEGIN"); err != nil {
		return err
	}
	for !p.accept("END") {
		if p.check(lexer.TokEOF) {
			return types.Errorf(types.DiagUnbalanced, p.file, p.moduleName(), name.Line,
				"macro %s has no END", name.Text)
		}
		p.advance()
	}
	p.Log(slog.LevelDebug, "skipped macro", slog.String("name", name.Text))
	return nil
}

// skipParameterized skips "Name {Params} ::= Type". The type is parsed
// without touching the registry so that parameter names stay unbound.
func (p *Parser) skipParameterized() error {
	name := p.advance()
	if err := p.skipBalanced(lexer.TokLBrace, lexer.TokRBrace); err != nil {
		return err
	}
	if _, err := p.expect(lexer.TokAssign); err != nil {
		return err
	}
	p.skipping = true
	_, err := p.parseTaggedType()
	p.skipping = false
	if err != nil {
		return err
	}
	p.warn(types.DiagSkippedAssignment, name.Line,
		"parameterized type "+name.Text+" is not supported and was skipped")
	return nil
}
