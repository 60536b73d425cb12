// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ast

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

const (
	// DefaultMaxFileSize is the maximum file size the parser will accept (10MB).
	DefaultMaxFileSize = 10 * 1024 * 1024

	// WarnFileSize is the threshold at which a warning is logged (1MB).
	WarnFileSize = 1 * 1024 * 1024
)

// PythonParserOption configures a PythonParser instance.
type PythonParserOption func(*PythonParser)

// WithMaxFileSize sets the maximum file size the parser will accept.
//
// Example:
//
//	parser := NewPythonParser(WithMaxFileSize(5 * 1024 * 1024)) // 5MB limit
func WithMaxFileSize(bytes int64) PythonParserOption {
	return func(p *PythonParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// PythonParser implements the Parser interface for pandas-style Python
// strategy code.
//
// Description:
//
//	PythonParser uses tree-sitter to parse the source and extract the
//	ordered assignment statements, column reads with shift annotations,
//	and call sites the flow analyzer and rule engine consume. Each
//	Parse call creates its own tree-sitter parser instance internally,
//	so instances are safe for concurrent use.
//
// Example:
//
//	parser := NewPythonParser()
//	unit, err := parser.Parse(ctx, []byte("pos = df['sig'].shift(1)"), "strategy.py")
//	if err != nil {
//	    return err
//	}
//	for _, a := range unit.Assignments {
//	    fmt.Printf("%s reads %d columns\n", a.Target, len(a.Reads))
//	}
type PythonParser struct {
	maxFileSize int64
}

// NewPythonParser creates a new PythonParser with the given options.
func NewPythonParser(opts ...PythonParserOption) *PythonParser {
	p := &PythonParser{
		maxFileSize: DefaultMaxFileSize,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Parse extracts assignments and call sites from Python source code.
//
// Description:
//
//	Parse runs tree-sitter over the content and walks the tree to build
//	a SourceUnit. Parsing is all-or-nothing: if the tree contains any
//	syntax error, Parse returns a located ParseError wrapping ErrSyntax
//	and no unit. Extraction descends into function bodies and control
//	blocks; statement order is source order.
//
// Inputs:
//   - ctx: Context for cancellation. Checked before and after the
//     tree-sitter pass (tree-sitter itself cannot be interrupted).
//   - content: Raw Python source bytes. Must be valid UTF-8.
//   - filePath: Path for error reporting and finding locations.
//
// Outputs:
//   - *SourceUnit: The parsed unit. Never nil on success.
//   - error: ErrFileTooLarge, ErrInvalidContent, a located ParseError,
//     or a context error.
//
// Thread Safety: safe for concurrent use.
func (p *PythonParser) Parse(ctx context.Context, content []byte, filePath string) (*SourceUnit, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}

	start := time.Now()
	ctx, span := startParseSpan(ctx, "python", filePath, len(content))
	defer span.End()

	if int64(len(content)) > p.maxFileSize {
		recordParseMetrics(ctx, "python", time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), p.maxFileSize)
	}

	if len(content) > WarnFileSize {
		slog.Warn("parsing large file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)))
	}

	if !utf8.Valid(content) {
		recordParseMetrics(ctx, "python", time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent)
	}

	// Compute hash before parsing (captures input)
	hash := sha256.Sum256(content)
	hashStr := hex.EncodeToString(hash[:])

	// New tree-sitter parser per call for thread safety
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordParseMetrics(ctx, "python", time.Since(start), 0, false)
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}

	root := tree.RootNode()
	if root == nil {
		recordParseMetrics(ctx, "python", time.Since(start), 0, false)
		return nil, NewParseError(filePath, 0, 0, "tree-sitter returned nil root node")
	}

	// All-or-nothing: any syntax error aborts with its location
	if root.HasError() {
		line, col, msg := locateFirstError(root)
		recordParseMetrics(ctx, "python", time.Since(start), 0, false)
		return nil, NewSyntaxError(filePath, line, col, msg)
	}

	ex := &extractor{content: content}
	ex.walkStatements(root)

	unit := &SourceUnit{
		Path:          filePath,
		Content:       content,
		Assignments:   ex.assignments,
		ExprCalls:     ex.exprCalls,
		Hash:          hashStr,
		ParsedAtMilli: time.Now().UnixMilli(),
	}

	if err := unit.Validate(); err != nil {
		recordParseMetrics(ctx, "python", time.Since(start), 0, false)
		return nil, WrapParseError(err, filePath)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled after extraction: %w", err)
	}

	setParseSpanResult(span, len(unit.Assignments), len(unit.ExprCalls))
	recordParseMetrics(ctx, "python", time.Since(start), len(unit.Assignments), true)

	return unit, nil
}

// Language returns the canonical language name for this parser.
func (p *PythonParser) Language() string {
	return "python"
}

// Extensions returns the file extensions this parser handles.
func (p *PythonParser) Extensions() []string {
	return []string{".py", ".pyi"}
}

// locateFirstError finds the first syntax error node in the tree.
//
// Returns the 1-indexed line, 0-indexed column, and a message for the
// earliest ERROR or missing node in byte order.
func locateFirstError(root *sitter.Node) (line, col int, msg string) {
	var found *sitter.Node

	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		if found != nil {
			return
		}
		if n.Type() == pyNodeError || n.IsMissing() {
			found = n
			return
		}
		if !n.HasError() {
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			visit(n.Child(i))
			if found != nil {
				return
			}
		}
	}
	visit(root)

	if found == nil {
		return 0, 0, "source contains syntax errors"
	}
	if found.IsMissing() {
		msg = fmt.Sprintf("missing %s", found.Type())
	} else {
		msg = "unexpected token"
	}
	return int(found.StartPoint().Row) + 1, int(found.StartPoint().Column), msg
}

// =============================================================================
// Statement Extraction
// =============================================================================

// extractor accumulates assignments and bare-expression call sites
// while walking the statement tree in source order.
type extractor struct {
	content     []byte
	assignments []Assignment
	exprCalls   []CallSite
}

// accessorAttrs are pandas accessors that select rows or views rather
// than naming a column; reads pass through to their object.
var accessorAttrs = map[string]bool{
	"iloc":   true,
	"loc":    true,
	"iat":    true,
	"at":     true,
	"values": true,
	"index":  true,
	"str":    true,
	"dt":     true,
	"T":      true,
}

// walkStatements visits every statement under node in source order.
//
// Control-flow statements contribute their condition/iterable call
// sites and recurse into their blocks; only assignments create
// statement entries.
func (ex *extractor) walkStatements(node *sitter.Node) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case pyNodeExpressionStatement:
			ex.processExpressionStatement(child)

		case pyNodeIfStatement, pyNodeWhileStatement:
			// Condition is visible to rules; blocks are walked
			if cond := child.ChildByFieldName("condition"); cond != nil {
				_, calls := ex.extractExpr(cond)
				ex.exprCalls = append(ex.exprCalls, calls...)
			}
			ex.walkBlocks(child)

		case pyNodeForStatement:
			if right := child.ChildByFieldName(pyFieldRight); right != nil {
				_, calls := ex.extractExpr(right)
				ex.exprCalls = append(ex.exprCalls, calls...)
			}
			ex.walkBlocks(child)

		case pyNodeWithStatement, pyNodeFunctionDefinition:
			ex.walkBlocks(child)

		case "return_statement":
			for j := 0; j < int(child.NamedChildCount()); j++ {
				_, calls := ex.extractExpr(child.NamedChild(j))
				ex.exprCalls = append(ex.exprCalls, calls...)
			}

		default:
			// Imports, pass, class definitions and the rest carry no
			// statement semantics for the analyzer; still descend into
			// any blocks they contain.
			ex.walkBlocks(child)
		}
	}
}

// walkBlocks recurses into every block child of a compound statement,
// including elif/else clauses.
func (ex *extractor) walkBlocks(node *sitter.Node) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case pyNodeBlock:
			ex.walkStatements(child)
		case "elif_clause", "else_clause", "finally_clause", "except_clause":
			ex.walkBlocks(child)
		}
	}
}

// processExpressionStatement handles one expression_statement node.
func (ex *extractor) processExpressionStatement(stmt *sitter.Node) {
	for i := 0; i < int(stmt.NamedChildCount()); i++ {
		child := stmt.NamedChild(i)
		switch child.Type() {
		case pyNodeAssignment:
			ex.processAssignment(child)
		case pyNodeAugmentedAssignment:
			ex.processAugmentedAssignment(child)
		default:
			// Bare expression: calls stay visible, reads do not
			// create nodes.
			_, calls := ex.extractExpr(child)
			ex.exprCalls = append(ex.exprCalls, calls...)
		}
	}
}

// processAssignment extracts one assignment statement.
func (ex *extractor) processAssignment(node *sitter.Node) {
	left := node.ChildByFieldName(pyFieldLeft)
	right := node.ChildByFieldName(pyFieldRight)
	if left == nil || right == nil {
		// Annotation-only statement (x: int) has no value
		return
	}

	var reads []Read
	var calls []CallSite

	if right.Type() == pyNodeAssignment {
		// Chained assignment a = b = expr: extract the inner
		// assignment first, then mirror its reads onto this target.
		ex.processAssignment(right)
		if n := len(ex.assignments); n > 0 {
			inner := ex.assignments[n-1]
			reads = append(reads, inner.Reads...)
		}
	} else {
		reads, calls = ex.extractExpr(right)
	}

	for _, tgt := range ex.targetRefs(left) {
		ex.assignments = append(ex.assignments, Assignment{
			Target:     tgt.ref,
			TargetSpan: tgt.span,
			Reads:      cloneReads(reads),
			Calls:      calls,
			Span:       newSpan(node),
		})
	}
}

// processAugmentedAssignment extracts target op= expr.
//
// The target is both written and read; the self-read carries no shift.
func (ex *extractor) processAugmentedAssignment(node *sitter.Node) {
	left := node.ChildByFieldName(pyFieldLeft)
	right := node.ChildByFieldName(pyFieldRight)
	if left == nil || right == nil {
		return
	}

	reads, calls := ex.extractExpr(right)

	for _, tgt := range ex.targetRefs(left) {
		selfRead := Read{Ref: tgt.ref, Span: tgt.span}
		ex.assignments = append(ex.assignments, Assignment{
			Target:     tgt.ref,
			TargetSpan: tgt.span,
			Reads:      append(cloneReads(reads), selfRead),
			Calls:      calls,
			Span:       newSpan(node),
		})
	}
}

// targetRef pairs a resolved assignment target with its span.
type targetRef struct {
	ref  ColumnRef
	span Span
}

// targetRefs resolves an assignment left-hand side into column refs.
//
// Supported shapes: bare identifier, df['col'] subscript, df.col
// attribute, and tuple targets (each element resolved independently).
// Unsupported shapes yield no targets and the assignment is skipped.
func (ex *extractor) targetRefs(left *sitter.Node) []targetRef {
	switch left.Type() {
	case pyNodeIdentifier:
		return []targetRef{{
			ref:  ColumnRef{Column: ex.text(left)},
			span: newSpan(left),
		}}

	case pyNodeSubscript:
		value := left.ChildByFieldName(pyFieldValue)
		index := left.ChildByFieldName(pyFieldSubscript)
		if value != nil && index != nil &&
			value.Type() == pyNodeIdentifier && index.Type() == pyNodeString {
			return []targetRef{{
				ref:  ColumnRef{Alias: ex.text(value), Column: ex.unquote(index)},
				span: newSpan(left),
			}}
		}
		return nil

	case pyNodeAttribute:
		obj := left.ChildByFieldName(pyFieldObject)
		attr := left.ChildByFieldName(pyFieldAttribute)
		if obj != nil && attr != nil && obj.Type() == pyNodeIdentifier {
			return []targetRef{{
				ref:  ColumnRef{Alias: ex.text(obj), Column: ex.text(attr)},
				span: newSpan(left),
			}}
		}
		return nil

	case pyNodePatternList, pyNodeExpressionList:
		var refs []targetRef
		for i := 0; i < int(left.NamedChildCount()); i++ {
			refs = append(refs, ex.targetRefs(left.NamedChild(i))...)
		}
		return refs
	}
	return nil
}

// =============================================================================
// Expression Extraction
// =============================================================================

// extractExpr walks an expression subtree collecting column reads and
// call sites.
//
// Shift annotations are applied here: a .shift(k) call with an integer
// argument adds k to every read in its receiver subtree. Non-integer
// shift arguments leave reads unannotated (unknown is never safe).
func (ex *extractor) extractExpr(node *sitter.Node) ([]Read, []CallSite) {
	if node == nil {
		return nil, nil
	}

	switch node.Type() {
	case pyNodeIdentifier:
		return []Read{{
			Ref:  ColumnRef{Column: ex.text(node)},
			Span: newSpan(node),
		}}, nil

	case pyNodeSubscript:
		return ex.subscriptRead(node)

	case pyNodeCall:
		return ex.callExpr(node)

	case pyNodeAttribute:
		// df.signal is an aliased column read; accessors like .iloc
		// and anything deeper (df['x'].values) carry their reads on
		// the object side.
		obj := node.ChildByFieldName(pyFieldObject)
		attr := node.ChildByFieldName(pyFieldAttribute)
		if obj != nil && attr != nil && obj.Type() == pyNodeIdentifier &&
			!accessorAttrs[ex.text(attr)] {
			return []Read{{
				Ref:  ColumnRef{Alias: ex.text(obj), Column: ex.text(attr)},
				Span: newSpan(node),
			}}, nil
		}
		return ex.extractExpr(obj)

	case pyNodeString, pyNodeInteger, pyNodeFloat, pyNodeComment,
		"true", "false", "none":
		return nil, nil

	default:
		// Operators, parenthesized and conditional expressions,
		// lists, tuples: collect from all named children.
		var reads []Read
		var calls []CallSite
		for i := 0; i < int(node.NamedChildCount()); i++ {
			r, c := ex.extractExpr(node.NamedChild(i))
			reads = append(reads, r...)
			calls = append(calls, c...)
		}
		return reads, calls
	}
}

// subscriptRead resolves a subscript expression into a read.
//
// df['col'] yields an aliased column read. series[i+k] yields a bare
// read whose shift comes from the index offset: reading row i+k is a
// k-step lead, so the annotation is -k (pandas sign convention).
func (ex *extractor) subscriptRead(node *sitter.Node) ([]Read, []CallSite) {
	value := node.ChildByFieldName(pyFieldValue)
	index := node.ChildByFieldName(pyFieldSubscript)
	if value == nil || index == nil {
		return nil, nil
	}

	switch value.Type() {
	case pyNodeIdentifier:
		if index.Type() == pyNodeString {
			return []Read{{
				Ref:  ColumnRef{Alias: ex.text(value), Column: ex.unquote(index)},
				Span: newSpan(node),
			}}, nil
		}
		return []Read{{
			Ref:       ColumnRef{Column: ex.text(value)},
			ShiftedBy: ex.indexShift(index),
			Span:      newSpan(node),
		}}, nil

	case pyNodeAttribute, pyNodeSubscript, pyNodeCall:
		// Chained access like df['close'].iloc[i+1]: reads come from
		// the value side; a positional index offset shifts them.
		reads, calls := ex.extractExpr(value)
		if shift := ex.indexShift(index); shift != nil {
			for i := range reads {
				reads[i].ShiftedBy = addShift(reads[i].ShiftedBy, *shift)
			}
		}
		return reads, calls

	default:
		return ex.extractExpr(value)
	}
}

// indexShift derives a temporal shift from a positional index
// expression, or nil when the index carries no offset.
//
//	s[i]     -> nil (aligned access)
//	s[i + k] -> -k  (k-step lead)
//	s[i - k] -> +k  (k-step lag)
func (ex *extractor) indexShift(index *sitter.Node) *int {
	if index.Type() != pyNodeBinaryOperator {
		return nil
	}

	left := index.ChildByFieldName(pyFieldLeft)
	right := index.ChildByFieldName(pyFieldRight)
	if left == nil || right == nil {
		return nil
	}
	if left.Type() != pyNodeIdentifier || right.Type() != pyNodeInteger {
		return nil
	}

	k, err := strconv.Atoi(ex.text(right))
	if err != nil {
		return nil
	}

	txt := ex.text(index)
	opOffset := int(left.EndByte() - index.StartByte())
	rest := strings.TrimSpace(txt[opOffset : int(right.StartByte()-index.StartByte())])
	switch rest {
	case "+":
		shift := -k
		return &shift
	case "-":
		shift := k
		return &shift
	}
	return nil
}

// callExpr extracts a call node: its argument reads, keyword spans,
// the call site itself, and shift application for .shift(k).
func (ex *extractor) callExpr(node *sitter.Node) ([]Read, []CallSite) {
	fn := node.ChildByFieldName(pyFieldFunction)
	args := node.ChildByFieldName(pyFieldArguments)
	if fn == nil {
		return nil, nil
	}

	argReads, argCalls, keywords := ex.processArgs(args)

	switch fn.Type() {
	case pyNodeAttribute:
		method := ""
		if attr := fn.ChildByFieldName(pyFieldAttribute); attr != nil {
			method = ex.text(attr)
		}
		obj := fn.ChildByFieldName(pyFieldObject)

		if method == methodShift {
			if k, ok := ex.shiftArg(args); ok {
				objReads, objCalls := ex.extractExpr(obj)
				for i := range objReads {
					objReads[i].ShiftedBy = addShift(objReads[i].ShiftedBy, k)
				}
				return append(objReads, argReads...), append(objCalls, argCalls...)
			}
			// Non-literal shift argument: fall through and treat as a
			// regular call, leaving reads unannotated.
		}

		objReads, objCalls := ex.extractExpr(obj)
		chain, receiver := ex.chainOf(node)
		site := CallSite{
			Method:   method,
			Chain:    chain,
			Receiver: receiver,
			Keywords: keywords,
			Args:     argReads,
			Span:     newSpan(node),
		}
		reads := append(objReads, argReads...)
		calls := append(append(objCalls, argCalls...), site)
		return reads, calls

	case pyNodeIdentifier:
		name := ex.text(fn)
		site := CallSite{
			Method:   name,
			Chain:    []string{name},
			Keywords: keywords,
			Args:     argReads,
			Span:     newSpan(node),
		}
		return argReads, append(argCalls, site)

	default:
		fnReads, fnCalls := ex.extractExpr(fn)
		return append(fnReads, argReads...), append(fnCalls, argCalls...)
	}
}

// processArgs collects reads, calls, and keyword arguments from an
// argument_list node.
func (ex *extractor) processArgs(args *sitter.Node) ([]Read, []CallSite, []KeywordArg) {
	if args == nil {
		return nil, nil, nil
	}

	var reads []Read
	var calls []CallSite
	var keywords []KeywordArg

	for i := 0; i < int(args.NamedChildCount()); i++ {
		child := args.NamedChild(i)
		if child.Type() == pyNodeKeywordArgument {
			name := child.ChildByFieldName(pyFieldName)
			value := child.ChildByFieldName(pyFieldValue)
			if name == nil || value == nil {
				continue
			}
			kw := KeywordArg{
				Name:      ex.text(name),
				ValueSpan: newSpan(value),
			}
			if value.Type() == pyNodeString {
				kw.Value = ex.unquote(value)
			} else {
				kw.Value = ex.text(value)
			}
			keywords = append(keywords, kw)

			r, c := ex.extractExpr(value)
			reads = append(reads, r...)
			calls = append(calls, c...)
			continue
		}

		r, c := ex.extractExpr(child)
		reads = append(reads, r...)
		calls = append(calls, c...)
	}
	return reads, calls, keywords
}

// shiftArg extracts the integer argument of a .shift(k) call.
//
// Handles positive literals and unary-minus literals. Returns false
// for missing or non-literal arguments.
func (ex *extractor) shiftArg(args *sitter.Node) (int, bool) {
	if args == nil {
		return 0, false
	}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		child := args.NamedChild(i)
		switch child.Type() {
		case pyNodeInteger:
			k, err := strconv.Atoi(ex.text(child))
			if err != nil {
				return 0, false
			}
			return k, true

		case pyNodeUnaryOperator:
			arg := child.ChildByFieldName(pyFieldArgument)
			if arg == nil || arg.Type() != pyNodeInteger {
				return 0, false
			}
			k, err := strconv.Atoi(ex.text(arg))
			if err != nil {
				return 0, false
			}
			if strings.HasPrefix(ex.text(child), "-") {
				return -k, true
			}
			return k, true

		case pyNodeKeywordArgument:
			// shift(periods=1)
			if name := child.ChildByFieldName(pyFieldName); name != nil && ex.text(name) == "periods" {
				if value := child.ChildByFieldName(pyFieldValue); value != nil {
					if value.Type() == pyNodeInteger {
						k, err := strconv.Atoi(ex.text(value))
						if err != nil {
							return 0, false
						}
						return k, true
					}
					if value.Type() == pyNodeUnaryOperator {
						arg := value.ChildByFieldName(pyFieldArgument)
						if arg != nil && arg.Type() == pyNodeInteger {
							k, err := strconv.Atoi(ex.text(arg))
							if err == nil && strings.HasPrefix(ex.text(value), "-") {
								return -k, true
							}
							if err == nil {
								return k, true
							}
						}
					}
				}
			}
			return 0, false

		default:
			return 0, false
		}
	}
	return 0, false
}

// chainOf climbs a call chain to its base receiver.
//
// For df.resample('1D').mean() called on the mean node, returns
// (["resample", "mean"], {Alias: "df"}). The chain passes through
// .shift calls so window checks can see every interposed method.
func (ex *extractor) chainOf(callNode *sitter.Node) ([]string, ColumnRef) {
	var methods []string
	cur := callNode

	for {
		fn := cur.ChildByFieldName(pyFieldFunction)
		if fn == nil {
			return methods, ColumnRef{}
		}

		switch fn.Type() {
		case pyNodeIdentifier:
			methods = prependMethod(methods, ex.text(fn))
			return methods, ColumnRef{}

		case pyNodeAttribute:
			if attr := fn.ChildByFieldName(pyFieldAttribute); attr != nil {
				methods = prependMethod(methods, ex.text(attr))
			}
			obj := fn.ChildByFieldName(pyFieldObject)
			if obj == nil {
				return methods, ColumnRef{}
			}

			switch obj.Type() {
			case pyNodeCall:
				cur = obj

			case pyNodeIdentifier:
				return methods, ColumnRef{Alias: ex.text(obj)}

			case pyNodeSubscript:
				value := obj.ChildByFieldName(pyFieldValue)
				index := obj.ChildByFieldName(pyFieldSubscript)
				if value != nil && index != nil &&
					value.Type() == pyNodeIdentifier && index.Type() == pyNodeString {
					return methods, ColumnRef{Alias: ex.text(value), Column: ex.unquote(index)}
				}
				return methods, ColumnRef{}

			case pyNodeAttribute:
				inner := obj.ChildByFieldName(pyFieldObject)
				innerAttr := obj.ChildByFieldName(pyFieldAttribute)
				if inner != nil && innerAttr != nil && inner.Type() == pyNodeIdentifier {
					return methods, ColumnRef{Alias: ex.text(inner), Column: ex.text(innerAttr)}
				}
				return methods, ColumnRef{}

			default:
				return methods, ColumnRef{}
			}

		default:
			return methods, ColumnRef{}
		}
	}
}

// =============================================================================
// Helpers
// =============================================================================

// text returns the source text of a node.
func (ex *extractor) text(node *sitter.Node) string {
	return string(ex.content[node.StartByte():node.EndByte()])
}

// unquote returns the content of a string node without its quotes.
func (ex *extractor) unquote(node *sitter.Node) string {
	raw := ex.text(node)
	if strings.HasPrefix(raw, `"""`) || strings.HasPrefix(raw, `'''`) {
		return strings.Trim(raw, `"'`)
	}
	return strings.Trim(raw, `"'`)
}

// newSpan converts tree-sitter node coordinates into a Span.
func newSpan(node *sitter.Node) Span {
	return Span{
		StartByte: int(node.StartByte()),
		EndByte:   int(node.EndByte()),
		StartLine: int(node.StartPoint().Row) + 1,
		EndLine:   int(node.EndPoint().Row) + 1,
		StartCol:  int(node.StartPoint().Column),
		EndCol:    int(node.EndPoint().Column),
	}
}

// addShift folds a site shift into an existing annotation.
//
// Shifting an unannotated read yields a known shift; shifting an
// annotated read sums.
func addShift(base *int, k int) *int {
	if base == nil {
		return &k
	}
	sum := *base + k
	return &sum
}

// cloneReads copies a read slice so assignments never share backing
// arrays.
func cloneReads(reads []Read) []Read {
	if len(reads) == 0 {
		return nil
	}
	out := make([]Read, len(reads))
	copy(out, reads)
	return out
}

// prependMethod inserts a method name at the front of a chain.
func prependMethod(chain []string, name string) []string {
	return append([]string{name}, chain...)
}

// Compile-time interface compliance check.
var _ Parser = (*PythonParser)(nil)
