// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ast

import (
	"context"
	"sync"
)

// Parser defines the contract for language-specific strategy parsing.
//
// Description:
//
//	Parser implementations extract the ordered assignment statements,
//	read annotations, and call sites that the flow analyzer consumes.
//	Each implementation handles one language but produces output in the
//	common SourceUnit format defined in types.go.
//
// Inputs:
//
//	ctx      - Context for cancellation. Implementations check ctx
//	           before and after the tree-sitter pass.
//	content  - Raw source bytes. Must be valid UTF-8.
//	filePath - Path for error reporting and finding locations.
//
// Outputs:
//
//	*SourceUnit - The parsed unit. Nil when error is non-nil: parsing
//	              is all-or-nothing, a unit with syntax errors yields a
//	              ParseError and no partial statements.
//	error       - ParseError (located) or a sentinel from errors.go.
//
// Thread Safety: implementations must be safe for concurrent use.
type Parser interface {
	// Parse extracts assignments and call sites from source code.
	Parse(ctx context.Context, content []byte, filePath string) (*SourceUnit, error)

	// Language returns the canonical lowercase name of the language
	// this parser handles (e.g. "python").
	Language() string

	// Extensions returns the file extensions this parser can handle,
	// including the leading dot (e.g. [".py"]). Lowercase.
	Extensions() []string
}

// ParserRegistry manages parser instances by language and file extension.
//
// Thread Safety: fully thread-safe. Registration uses write locks,
// lookups use read locks.
type ParserRegistry struct {
	mu sync.RWMutex

	// byLanguage maps language names to parser instances.
	byLanguage map[string]Parser

	// byExtension maps file extensions to parser instances.
	byExtension map[string]Parser
}

// NewParserRegistry creates a new empty ParserRegistry.
func NewParserRegistry() *ParserRegistry {
	return &ParserRegistry{
		byLanguage:  make(map[string]Parser),
		byExtension: make(map[string]Parser),
	}
}

// DefaultRegistry returns a registry with the built-in parsers
// registered. Currently that is the Python parser only.
func DefaultRegistry() *ParserRegistry {
	r := NewParserRegistry()
	r.Register(NewPythonParser())
	return r
}

// Register adds a parser to the registry.
//
// The parser is registered under its Language() name and all its
// Extensions(). Existing registrations for the same keys are
// overwritten. Nil parsers are ignored.
func (r *ParserRegistry) Register(parser Parser) {
	if parser == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.byLanguage[parser.Language()] = parser

	for _, ext := range parser.Extensions() {
		r.byExtension[ext] = parser
	}
}

// GetByLanguage returns the parser for the given language name.
func (r *ParserRegistry) GetByLanguage(language string) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	parser, ok := r.byLanguage[language]
	return parser, ok
}

// GetByExtension returns the parser for the given file extension.
//
// The extension includes the dot (e.g. ".py") and is case-sensitive.
func (r *ParserRegistry) GetByExtension(ext string) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	parser, ok := r.byExtension[ext]
	return parser, ok
}

// Languages returns a list of all registered language names.
func (r *ParserRegistry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	languages := make([]string, 0, len(r.byLanguage))
	for lang := range r.byLanguage {
		languages = append(languages, lang)
	}
	return languages
}
