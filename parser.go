package blade

import (
	"fmt"
	"strings"
)

// Node is one element of a parsed template tree.
type Node interface {
	nodeLine() int
}

// TextNode is literal output. Its content is emitted verbatim (with
// template braces escaped so generated code never reinterprets it).
type TextNode struct {
	Text string
	Line int
}

// EchoNode prints an expression. Raw echoes skip contextual encoding and
// must be spelled {!! ... !!} deliberately.
type EchoNode struct {
	Expr string
	Raw  bool
	Line int
}

// DirectiveNode is a leaf directive such as @yield or @include.
type DirectiveNode struct {
	Name string
	Arg  string
	Line int
}

// BlockNode is a paired directive with a body: @if, @foreach, @section...
// Conditionals chain through Branches; @forelse keeps its fallback in Else.
type BlockNode struct {
	Name     string
	Arg      string
	Children []Node
	Branches []Branch // @elseif chains
	Else     []Node   // @else body, or @empty body for @forelse
	Line     int
}

// Branch is one @elseif arm of a conditional block.
type Branch struct {
	Arg      string
	Children []Node
	Line     int
}

// ComponentNode is an <x-name> invocation with its attributes, default
// slot children and named slots.
type ComponentNode struct {
	Name  string
	Attrs []Attr
	Slots map[string][]Node // named slots; default slot under "default"
	Line  int
}

func (n *TextNode) nodeLine() int      { return n.Line }
func (n *EchoNode) nodeLine() int      { return n.Line }
func (n *DirectiveNode) nodeLine() int { return n.Line }
func (n *BlockNode) nodeLine() int     { return n.Line }
func (n *ComponentNode) nodeLine() int { return n.Line }

// blockEnd maps a block-opening directive to its terminator.
var blockEnd = map[string]string{
	"if":       "endif",
	"unless":   "endunless",
	"isset":    "endisset",
	"empty":    "endempty",
	"foreach":  "endforeach",
	"forelse":  "endforelse",
	"for":      "endfor",
	"section":  "endsection",
	"push":     "endpush",
	"prepend":  "endprepend",
	"once":     "endonce",
	"error":    "enderror",
	"fragment": "endfragment",
	"teleport": "endteleport",
	"cache":    "endcache",
	"slot":     "endslot",
}

var directiveNames = map[string]bool{
	"extends": true, "yield": true, "parent": true, "show": true,
	"include": true, "includeIf": true, "includeWhen": true,
	"stack": true, "break": true, "continue": true, "else": true,
	"elseif": true, "csrf": true, "method": true, "json": true,
	"props": true, "aware": true, "nonce": true, "verbatim": true,
	"endverbatim": true,
}

// terminatorNames are directives only valid as the closing half of an
// open block; reaching one outside a block is a structural error.
var terminatorNames = map[string]bool{"else": true, "elseif": true, "show": true}

func init() {
	for open, end := range blockEnd {
		directiveNames[open] = true
		directiveNames[end] = true
		terminatorNames[end] = true
	}
}

// parser assembles the token stream into a tree, pairing block
// directives on an explicit stack so unterminated and stray constructs
// are structural errors instead of silent misrenders.
type parser struct {
	tpl    string
	tokens []token
	pos    int
}

func parseSource(tpl, src string, isDirective func(string) bool) ([]Node, error) {
	tokens := newLexer(src, isDirective).run()
	p := &parser{tpl: tpl, tokens: tokens}
	nodes, term, err := p.parseNodes(nil)
	if err != nil {
		return nil, err
	}
	if term != nil {
		return nil, syntaxErr(tpl, term.line, "unexpected @%s outside any open block", term.name)
	}
	return nodes, nil
}

// parseNodes consumes tokens until one of the given terminator directives
// (or a closing tag / end of input). The terminating token, if any, is
// returned so callers can dispatch on it.
func (p *parser) parseNodes(stop []string) ([]Node, *token, error) {
	var nodes []Node
	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		switch tok.kind {
		case tokText:
			p.pos++
			nodes = append(nodes, &TextNode{Text: tok.text, Line: tok.line})

		case tokEcho:
			p.pos++
			nodes = append(nodes, &EchoNode{Expr: tok.text, Line: tok.line})

		case tokRawEcho:
			p.pos++
			nodes = append(nodes, &EchoNode{Expr: tok.text, Raw: true, Line: tok.line})

		case tokDirective:
			if contains(stop, tok.name) {
				p.pos++
				t := tok
				return nodes, &t, nil
			}
			node, err := p.parseDirective(tok, stop)
			if err != nil {
				return nil, nil, err
			}
			if node != nil {
				nodes = append(nodes, node)
			}

		case tokTagOpen:
			node, err := p.parseComponent(tok)
			if err != nil {
				return nil, nil, err
			}
			nodes = append(nodes, node)

		case tokTagClose:
			return nil, nil, syntaxErr(p.tpl, tok.line, "unexpected closing tag </x-%s>", tok.name)

		case tokSlotOpen, tokSlotClose:
			return nil, nil, syntaxErr(p.tpl, tok.line, "<x-slot> is only valid directly inside a component tag")
		}
	}
	if len(stop) > 0 {
		return nil, nil, syntaxErr(p.tpl, lastLine(p.tokens), "missing @%s", stop[0])
	}
	return nodes, nil, nil
}

func (p *parser) parseDirective(tok token, enclosingStop []string) (Node, error) {
	p.pos++
	if terminatorNames[tok.name] {
		return nil, syntaxErr(p.tpl, tok.line, "unexpected @%s outside any open block", tok.name)
	}
	end, isBlock := blockEnd[tok.name]
	if !isBlock {
		return &DirectiveNode{Name: tok.name, Arg: tok.text, Line: tok.line}, nil
	}

	switch tok.name {
	case "if", "unless", "isset":
		return p.parseConditional(tok, end)
	case "empty":
		// @empty doubles as the @forelse separator when bare.
		if tok.text == "" && contains(enclosingStop, "endforelse") {
			p.pos--
			t := p.tokens[p.pos]
			t.name = "__forelse_empty"
			p.tokens[p.pos] = t
			return nil, nil
		}
		return p.parseConditional(tok, end)
	case "foreach", "for":
		body, _, err := p.parseNodes([]string{end})
		if err != nil {
			return nil, err
		}
		return &BlockNode{Name: tok.name, Arg: tok.text, Children: body, Line: tok.line}, nil
	case "forelse":
		body, term, err := p.parseNodes([]string{"endforelse", "__forelse_empty"})
		if err != nil {
			return nil, err
		}
		node := &BlockNode{Name: "forelse", Arg: tok.text, Children: body, Line: tok.line}
		if term != nil && term.name == "__forelse_empty" {
			node.Else, _, err = p.parseNodes([]string{"endforelse"})
			if err != nil {
				return nil, err
			}
		}
		return node, nil
	case "section":
		// Inline form @section('name', value) has no body.
		if len(splitArgs(tok.text)) > 1 {
			return &DirectiveNode{Name: "section", Arg: tok.text, Line: tok.line}, nil
		}
		body, term, err := p.parseNodes([]string{"endsection", "show"})
		if err != nil {
			return nil, err
		}
		node := &BlockNode{Name: "section", Arg: tok.text, Children: body, Line: tok.line}
		if term != nil && term.name == "show" {
			// @section ... @show both captures and yields in place.
			node.Else = []Node{&DirectiveNode{Name: "yield", Arg: tok.text, Line: term.line}}
		}
		return node, nil
	default:
		body, _, err := p.parseNodes([]string{end})
		if err != nil {
			return nil, err
		}
		return &BlockNode{Name: tok.name, Arg: tok.text, Children: body, Line: tok.line}, nil
	}
}

func (p *parser) parseConditional(tok token, end string) (Node, error) {
	node := &BlockNode{Name: tok.name, Arg: tok.text, Line: tok.line}
	body, term, err := p.parseNodes([]string{end, "elseif", "else"})
	if err != nil {
		return nil, err
	}
	node.Children = body
	for term != nil && term.name == "elseif" {
		br := Branch{Arg: term.text, Line: term.line}
		br.Children, term, err = p.parseNodes([]string{end, "elseif", "else"})
		if err != nil {
			return nil, err
		}
		node.Branches = append(node.Branches, br)
	}
	if term != nil && term.name == "else" {
		node.Else, term, err = p.parseNodes([]string{end})
		if err != nil {
			return nil, err
		}
		_ = term
	}
	return node, nil
}

// parseComponent consumes an <x-name> invocation, splitting direct
// <x-slot:...> children from the default slot content.
func (p *parser) parseComponent(open token) (Node, error) {
	p.pos++
	node := &ComponentNode{
		Name:  open.name,
		Attrs: parseAttributes(open.text),
		Slots: map[string][]Node{},
		Line:  open.line,
	}
	if open.selfClosing {
		return node, nil
	}

	var def []Node
	for {
		if p.pos >= len(p.tokens) {
			return nil, syntaxErr(p.tpl, open.line, "unclosed component tag <x-%s>", open.name)
		}
		tok := p.tokens[p.pos]
		switch tok.kind {
		case tokTagClose:
			if tok.name != open.name {
				return nil, syntaxErr(p.tpl, tok.line, "mismatched closing tag </x-%s>, expected </x-%s>", tok.name, open.name)
			}
			p.pos++
			if len(def) > 0 {
				node.Slots["default"] = def
			}
			return node, nil
		case tokSlotOpen:
			p.pos++
			body, err := p.parseSlotBody(tok)
			if err != nil {
				return nil, err
			}
			node.Slots[tok.name] = body
		case tokSlotClose:
			return nil, syntaxErr(p.tpl, tok.line, "unexpected </x-slot> without an open slot")
		default:
			nodes, term, err := p.parseUntilTagEvent()
			if err != nil {
				return nil, err
			}
			def = append(def, nodes...)
			_ = term
		}
	}
}

func (p *parser) parseSlotBody(open token) ([]Node, error) {
	var body []Node
	for {
		if p.pos >= len(p.tokens) {
			return nil, syntaxErr(p.tpl, open.line, "unclosed <x-slot:%s>", open.name)
		}
		tok := p.tokens[p.pos]
		if tok.kind == tokSlotClose {
			if tok.name != "default" && tok.name != open.name {
				return nil, syntaxErr(p.tpl, tok.line, "mismatched </x-slot:%s>", tok.name)
			}
			p.pos++
			return body, nil
		}
		if tok.kind == tokTagClose {
			return nil, syntaxErr(p.tpl, open.line, "unclosed <x-slot:%s>", open.name)
		}
		nodes, _, err := p.parseUntilTagEvent()
		if err != nil {
			return nil, err
		}
		body = append(body, nodes...)
	}
}

// parseUntilTagEvent parses regular content, handing control back when a
// tag-level token (close, slot) appears at this nesting level.
func (p *parser) parseUntilTagEvent() ([]Node, *token, error) {
	var nodes []Node
	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		switch tok.kind {
		case tokTagClose, tokSlotOpen, tokSlotClose:
			return nodes, &tok, nil
		case tokText:
			p.pos++
			nodes = append(nodes, &TextNode{Text: tok.text, Line: tok.line})
		case tokEcho:
			p.pos++
			nodes = append(nodes, &EchoNode{Expr: tok.text, Line: tok.line})
		case tokRawEcho:
			p.pos++
			nodes = append(nodes, &EchoNode{Expr: tok.text, Raw: true, Line: tok.line})
		case tokDirective:
			node, err := p.parseDirective(tok, nil)
			if err != nil {
				return nil, nil, err
			}
			if node != nil {
				nodes = append(nodes, node)
			}
		case tokTagOpen:
			node, err := p.parseComponent(tok)
			if err != nil {
				return nil, nil, err
			}
			nodes = append(nodes, node)
		}
	}
	return nodes, nil, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func lastLine(tokens []token) int {
	if len(tokens) == 0 {
		return 1
	}
	return tokens[len(tokens)-1].line
}

// splitArgs splits a directive argument span on top-level commas,
// honoring nested parentheses, brackets and string literals.
func splitArgs(arg string) []string {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return nil
	}
	var parts []string
	depth := 0
	quote := byte(0)
	start := 0
	for i := 0; i < len(arg); i++ {
		c := arg[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"', '`':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(arg[start:i]))
				start = i + 1
			}
		}
	}
	parts = append(parts, strings.TrimSpace(arg[start:]))
	return parts
}

func syntaxErr(tpl string, line int, format string, args ...any) error {
	return &Error{Template: tpl, Line: line, Kind: KindSyntax, Detail: fmt.Sprintf(format, args...)}
}
