// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ast

// Python Tree-sitter Node Types
//
// This file documents the tree-sitter node types used by PythonParser
// for assignment and call extraction. The parser uses direct node
// traversal rather than tree-sitter's query language for precise
// control over spans and shift annotations.
//
// Reference: https://github.com/tree-sitter/tree-sitter-python/blob/master/src/grammar.json

// Node type constants for Python AST traversal.
const (
	// Top-level nodes
	pyNodeModule = "module"

	// Statement nodes
	pyNodeExpressionStatement = "expression_statement"
	pyNodeAssignment          = "assignment"
	pyNodeAugmentedAssignment = "augmented_assignment"
	pyNodeIfStatement         = "if_statement"
	pyNodeForStatement        = "for_statement"
	pyNodeWhileStatement      = "while_statement"
	pyNodeWithStatement       = "with_statement"
	pyNodeFunctionDefinition  = "function_definition"
	pyNodeBlock               = "block"

	// Expression nodes
	pyNodeCall                  = "call"
	pyNodeAttribute             = "attribute"
	pyNodeSubscript             = "subscript"
	pyNodeIdentifier            = "identifier"
	pyNodeBinaryOperator        = "binary_operator"
	pyNodeUnaryOperator         = "unary_operator"
	pyNodeComparisonOperator    = "comparison_operator"
	pyNodeBooleanOperator       = "boolean_operator"
	pyNodeConditionalExpression = "conditional_expression"
	pyNodeParenthesized         = "parenthesized_expression"
	pyNodeArgumentList          = "argument_list"
	pyNodeKeywordArgument       = "keyword_argument"
	pyNodePatternList           = "pattern_list"
	pyNodeExpressionList        = "expression_list"

	// Literal nodes
	pyNodeString  = "string"
	pyNodeInteger = "integer"
	pyNodeFloat   = "float"
	pyNodeComment = "comment"

	// Error nodes produced by tree-sitter for invalid syntax
	pyNodeError = "ERROR"

	// Field names on assignment / call / subscript / attribute nodes
	pyFieldLeft      = "left"
	pyFieldRight     = "right"
	pyFieldFunction  = "function"
	pyFieldArguments = "arguments"
	pyFieldObject    = "object"
	pyFieldAttribute = "attribute"
	pyFieldValue     = "value"
	pyFieldSubscript = "subscript"
	pyFieldName      = "name"
	pyFieldOperator  = "operator"
	pyFieldArgument  = "argument"
)

// methodShift is the pandas method that applies a temporal shift to a
// series. A positive argument lags (past data), a negative argument
// leads (future data).
const methodShift = "shift"
