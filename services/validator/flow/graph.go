// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package flow builds the data-dependency graph the rule engine
// evaluates.
//
// Description:
//
//	A Graph is a forward pass over a SourceUnit's ordered assignments.
//	Each assignment becomes a node; each read edges to the most recent
//	producer of its column (last-write-wins), or to a synthetic
//	external node when nothing in the unit produced it. Every edge
//	carries the net temporal shift of the dependency, combining the
//	shift written at the read site with the producer's own chain shift,
//	so rules see provenance through arbitrarily long assignment chains.
//
//	Graphs are immutable once built and safe for concurrent reads.
package flow

import (
	"github.com/hindsightlabs/hindsight/services/validator/ast"
)

// =============================================================================
// Types
// =============================================================================

// Node is one producing assignment, or the synthetic external
// producer.
type Node struct {
	// Ref is the column this node produces. Zero for the external
	// node.
	Ref ast.ColumnRef

	// Assignment is the producing statement. Nil for the external
	// node.
	Assignment *ast.Assignment

	// Deps are the node's read edges in source order.
	Deps []Dep

	// ChainShift is the effective shift of the node's inputs folded
	// per the worst-input-wins algebra. Nil when any input reached
	// this node unshifted, or when the expression reads nothing.
	ChainShift *int

	// External marks the synthetic producer for unresolved reads.
	External bool
}

// Line returns the source line of the producing assignment, or 0 for
// the external node.
func (n *Node) Line() int {
	if n.Assignment == nil {
		return 0
	}
	return n.Assignment.Line()
}

// Dep is one read edge from a consuming node to its producer.
type Dep struct {
	// Read is the occurrence as written at the site.
	Read ast.Read

	// Producer is the node that most recently wrote the column, or
	// the external node.
	Producer *Node

	// Net is the dependency's net shift: the read-site annotation
	// combined with the producer's chain shift. Nil means the value
	// reaches the consumer without ever having been shifted.
	Net *int
}

// Graph is the data-dependency graph over one SourceUnit.
type Graph struct {
	// Unit is the analyzed source.
	Unit *ast.SourceUnit

	// Nodes holds one node per assignment in source order.
	Nodes []*Node

	// External is the synthetic producer for unresolved reads. Its
	// chain shift is nil: unknown provenance is never safe.
	External *Node

	producers map[string]*Node
}

// =============================================================================
// Build
// =============================================================================

// Build constructs the dependency graph for a parsed unit.
//
// Description:
//
//	Build walks assignments in source order. Reads resolve against the
//	producers registered so far, before the statement's own target is
//	registered, so self-references (x = x.shift(1)) correctly read the
//	previous definition. Reassignment replaces the producer entry:
//	later reads see only the latest write.
//
// Inputs:
//   - unit: A successfully parsed SourceUnit. Build performs no
//     validation of its own; a nil unit yields an empty graph.
//
// Outputs:
//   - *Graph: The completed graph. Never nil.
//
// Thread Safety: the returned graph is immutable; Build itself is
// safe to call concurrently on distinct units.
func Build(unit *ast.SourceUnit) *Graph {
	g := &Graph{
		Unit:      unit,
		External:  &Node{External: true},
		producers: make(map[string]*Node),
	}
	if unit == nil {
		return g
	}

	for i := range unit.Assignments {
		a := &unit.Assignments[i]
		node := &Node{Ref: a.Target, Assignment: a}

		nets := make([]*int, 0, len(a.Reads))
		for _, r := range a.Reads {
			producer := g.producers[r.Ref.Key()]
			if producer == nil {
				producer = g.External
			}

			net := Combine(r.ShiftedBy, producer.ChainShift)
			node.Deps = append(node.Deps, Dep{
				Read:     r,
				Producer: producer,
				Net:      net,
			})
			nets = append(nets, net)
		}
		node.ChainShift = Fold(nets)

		// Register after resolving reads: the target's previous
		// definition stays visible to its own expression.
		g.producers[a.Target.Key()] = node
		g.Nodes = append(g.Nodes, node)
	}

	return g
}

// Producer returns the final producer of a column after the full
// forward pass, or nil if the unit never assigns it.
func (g *Graph) Producer(ref ast.ColumnRef) *Node {
	return g.producers[ref.Key()]
}
