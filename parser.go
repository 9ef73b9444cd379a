// Copyright 2011 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package nin

import "strconv"

// ManifestParser drives the Lexer, filling in a State one statement at a
// time. It is grounded on the teacher's manifestParserSerial, trimmed to
// this core's scope: no dyndep bindings, no concurrent subninja
// prefetch (subninja/include are both read and parsed inline, since
// SPEC_FULL treats parse-time I/O latency as out of scope), and duplicate
// outputs are always a hard SemanticError rather than the teacher's
// warn-and-continue option.
type ManifestParser struct {
	fr    FileReader
	state *State
	lexer *Lexer
	env   *BindingEnv
}

// NewManifestParser creates a parser that will fill in state, reading
// included/subninja'd files through fr.
func NewManifestParser(state *State, fr FileReader) *ManifestParser {
	return &ManifestParser{state: state, fr: fr, env: state.Root}
}

// ParseFile parses filename's already-read contents into the parser's
// State.
func (m *ManifestParser) ParseFile(filename string, input []byte) error {
	return m.parse(filename, input)
}

func (m *ManifestParser) parse(filename string, input []byte) error {
	lexer := NewLexer(filename, input)
	prevLexer := m.lexer
	m.lexer = lexer
	defer func() { m.lexer = prevLexer }()

	for {
		tok := m.lexer.ReadToken()
		var err error
		switch tok.Kind {
		case tKeywordPool:
			err = m.parsePool()
		case tKeywordBuild:
			err = m.parseEdge()
		case tKeywordRule:
			err = m.parseRule()
		case tKeywordDefault:
			err = m.parseDefault()
		case tIdentifier:
			m.lexer.UnreadToken()
			err = m.parseBinding()
		case tKeywordInclude:
			err = m.parseInclude()
		case tKeywordSubninja:
			err = m.parseSubninja()
		case tError:
			err = m.lexer.errAt(m.lexer.lastToken, m.lexer.DescribeLastError())
		case tNewline:
			continue
		case tEOF:
			return nil
		default:
			err = m.lexer.Error("unexpected " + tok.Kind.String())
		}
		if err != nil {
			return err
		}
	}
}

func (m *ManifestParser) expect(kind TokenKind) error {
	if tok := m.lexer.ReadToken(); tok.Kind != kind {
		return m.lexer.Error("expected " + kind.String() + ", got " + tok.Kind.String() + kind.errorHint())
	}
	return nil
}

// parseLet parses one "name = value" line, used both for top-level
// bindings and for indented rule/pool/edge bindings.
func (m *ManifestParser) parseLet() (string, EvalString, error) {
	name := m.lexer.ReadIdent()
	if name == "" {
		return "", EvalString{}, m.lexer.Error("expected variable name")
	}
	if err := m.expect(tAssign); err != nil {
		return "", EvalString{}, err
	}
	value, err := m.lexer.ReadVarValue()
	if err != nil {
		return "", EvalString{}, err
	}
	return name, value, nil
}

func (m *ManifestParser) parsePool() error {
	name := m.lexer.ReadIdent()
	if name == "" {
		return m.lexer.Error("expected pool name")
	}
	if err := m.expect(tNewline); err != nil {
		return err
	}

	depth := -1
	for m.lexer.PeekToken(tIndent) {
		key, value, err := m.parseLet()
		if err != nil {
			return err
		}
		if key != "depth" {
			return m.lexer.Error("unexpected variable '" + key + "'")
		}
		d, convErr := strconv.Atoi(value.Evaluate(m.env))
		if convErr != nil || d < 0 {
			return m.lexer.Error("invalid pool depth")
		}
		depth = d
	}
	if depth < 0 {
		return m.lexer.Error("expected 'depth =' line")
	}
	if !m.state.AddPool(name, depth) {
		return m.lexer.Error("duplicate pool '" + name + "'")
	}
	return nil
}

func (m *ManifestParser) parseRule() error {
	name := m.lexer.ReadIdent()
	if name == "" {
		return m.lexer.Error("expected rule name")
	}
	namePos := m.lexer.position(m.lexer.lastToken)
	if err := m.expect(tNewline); err != nil {
		return err
	}
	if m.env.LookupRuleCurrentScope(name) != nil {
		return m.lexer.Error("duplicate rule '" + name + "'")
	}

	rule := NewRule(name)
	for m.lexer.PeekToken(tIndent) {
		key, value, err := m.parseLet()
		if err != nil {
			return err
		}
		if !IsReservedBinding(key) {
			return m.lexer.Error("unexpected variable '" + key + "'")
		}
		v := value
		rule.Bindings[key] = &v
	}

	rspfile, hasRspfile := rule.Bindings["rspfile"]
	content, hasContent := rule.Bindings["rspfile_content"]
	if hasRspfile != hasContent || (hasRspfile && rspfile.Empty() != content.Empty()) {
		return m.lexer.Error("rspfile and rspfile_content need to be both specified")
	}
	command, ok := rule.Bindings["command"]
	if !ok || command.Empty() {
		return &SemanticError{Pos: namePos, Message: "expected 'command =' line"}
	}
	m.env.AddRule(rule)
	return nil
}

func (m *ManifestParser) parseDefault() error {
	eval, err := m.lexer.ReadPath()
	if err != nil {
		return err
	}
	if eval.Empty() {
		return m.lexer.Error("expected target name")
	}
	for !eval.Empty() {
		pos := m.lexer.Pos()
		path := eval.Evaluate(m.env)
		if path == "" {
			return m.lexer.Error("empty path")
		}
		if err := m.state.AddDefault(path, pos); err != nil {
			return err
		}
		if eval, err = m.lexer.ReadPath(); err != nil {
			return err
		}
	}
	return m.expect(tNewline)
}

// parseBinding parses a generic top-level "name = value" statement,
// special-casing ninja_required_version so an incompatible manifest is
// rejected before any later syntax has a chance to confuse the parser.
func (m *ManifestParser) parseBinding() error {
	name, value, err := m.parseLet()
	if err != nil {
		return err
	}
	evaluated := value.Evaluate(m.env)
	if name == "ninja_required_version" {
		if err := checkRequiredVersion(evaluated); err != nil {
			return err
		}
	}
	m.env.AddBinding(name, evaluated)
	return nil
}

func (m *ManifestParser) readPaths() ([]EvalString, error) {
	var out []EvalString
	for {
		ev, err := m.lexer.ReadPath()
		if err != nil {
			return nil, err
		}
		if ev.Empty() {
			return out, nil
		}
		out = append(out, ev)
	}
}

func (m *ManifestParser) parseEdge() error {
	explicitOuts, err := m.readPaths()
	if err != nil {
		return err
	}
	var implicitOuts []EvalString
	if m.lexer.PeekToken(tPipe) {
		if implicitOuts, err = m.readPaths(); err != nil {
			return err
		}
	}
	if len(explicitOuts)+len(implicitOuts) == 0 {
		return m.lexer.Error("expected path")
	}

	if err := m.expect(tColon); err != nil {
		return err
	}
	ruleName := m.lexer.ReadIdent()
	if ruleName == "" {
		return m.lexer.Error("expected build command name")
	}
	rule := m.env.LookupRule(ruleName)
	if rule == nil {
		msg := "unknown build rule '" + ruleName + "'"
		if suggestion := spellcheck(ruleName, m.env.RuleNames()); suggestion != "" {
			msg += ", did you mean '" + suggestion + "'?"
		}
		return &SemanticError{Pos: m.lexer.position(m.lexer.lastToken), Message: msg}
	}

	explicitIns, err := m.readPaths()
	if err != nil {
		return err
	}
	var implicitIns []EvalString
	if m.lexer.PeekToken(tPipe) {
		if implicitIns, err = m.readPaths(); err != nil {
			return err
		}
	}
	var orderOnlyIns []EvalString
	if m.lexer.PeekToken(tPipePipe) {
		if orderOnlyIns, err = m.readPaths(); err != nil {
			return err
		}
	}
	// "|@ validations": parsed so files using them still load, but folded
	// into order-only inputs -- they must exist before the edge runs but
	// are never independently scheduled or compared for dirtiness.
	if m.lexer.PeekToken(tPipeAt) {
		validations, err := m.readPaths()
		if err != nil {
			return err
		}
		orderOnlyIns = append(orderOnlyIns, validations...)
	}

	if err := m.expect(tNewline); err != nil {
		return err
	}

	env := m.env
	hasIndent := m.lexer.PeekToken(tIndent)
	if hasIndent {
		env = NewBindingEnv(m.env)
	}
	local := map[string]string{}
	for hasIndent {
		key, value, err := m.parseLet()
		if err != nil {
			return err
		}
		evaluated := value.Evaluate(env)
		env.AddBinding(key, evaluated)
		local[key] = evaluated
		hasIndent = m.lexer.PeekToken(tIndent)
	}

	edge := m.state.AddEdge(rule, m.env)
	edge.Env = m.env
	for k, v := range local {
		edge.LocalBindings[k] = v
	}

	poolName := edge.GetBinding("pool")
	if poolName != "" {
		pool, ok := m.state.Pools[poolName]
		if !ok {
			return m.lexer.Error("unknown pool name '" + poolName + "'")
		}
		edge.Pool = pool
	}

	addOutputs := func(evs []EvalString, implicit bool) error {
		for _, o := range evs {
			pos := m.lexer.Pos()
			path := o.Evaluate(env)
			if path == "" {
				return m.lexer.Error("empty path")
			}
			if _, err := m.state.AddOutput(edge, path, implicit, pos); err != nil {
				return err
			}
		}
		return nil
	}
	if err := addOutputs(explicitOuts, false); err != nil {
		return err
	}
	if err := addOutputs(implicitOuts, true); err != nil {
		return err
	}
	if len(edge.ExplicitOuts)+len(edge.ImplicitOuts) == 0 {
		return m.lexer.Error("expected path")
	}

	for _, in := range explicitIns {
		path := in.Evaluate(env)
		if path == "" {
			return m.lexer.Error("empty path")
		}
		m.state.AddExplicitInput(edge, path)
	}
	for _, in := range implicitIns {
		path := in.Evaluate(env)
		if path == "" {
			return m.lexer.Error("empty path")
		}
		m.state.AddImplicitInput(edge, path)
	}
	for _, oo := range orderOnlyIns {
		path := oo.Evaluate(env)
		if path == "" {
			return m.lexer.Error("empty path")
		}
		m.state.AddOrderOnlyInput(edge, path)
	}
	return nil
}

func (m *ManifestParser) parseInclude() error {
	eval, err := m.lexer.ReadPath()
	if err != nil {
		return err
	}
	if err := m.expect(tNewline); err != nil {
		return err
	}
	path := eval.Evaluate(m.env)
	input, err := m.fr.ReadFile(path)
	if err != nil {
		return &IOError{Path: path, Err: err}
	}
	// include shares the current scope: bindings it adds are visible to
	// the rest of the including file.
	return m.parse(path, input)
}

func (m *ManifestParser) parseSubninja() error {
	eval, err := m.lexer.ReadPath()
	if err != nil {
		return err
	}
	if err := m.expect(tNewline); err != nil {
		return err
	}
	path := eval.Evaluate(m.env)
	input, err := m.fr.ReadFile(path)
	if err != nil {
		return &IOError{Path: path, Err: err}
	}
	// subninja gets its own child scope: it can read the parent's
	// bindings but never write back to them.
	prevEnv := m.env
	m.env = NewBindingEnv(prevEnv)
	defer func() { m.env = prevEnv }()
	return m.parse(path, input)
}
