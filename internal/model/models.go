// Package model provides data models for the graph service.
package model

import (
	"encoding/json"
	"strconv"
	"time"
)

// Node represents a graph vertex.
type Node struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	X    int64  `json:"x"`
	Y    int64  `json:"y"`
	Year int64  `json:"year"`
	Sex  string `json:"sex"`
}

// Edge represents an undirected connection between two nodes.
// A is always lower than B.
type Edge struct {
	ID    int64 `json:"id"`
	A     int64 `json:"a"`
	B     int64 `json:"b"`
	Votes int64 `json:"votes"`
}

// Key returns the key under which the edge is published in a Graph.
func (e Edge) Key() string {
	return PairKey(e.A, e.B)
}

// PairKey joins two endpoint ids as "a_b".
func PairKey(a, b int64) string {
	return strconv.FormatInt(a, 10) + "_" + strconv.FormatInt(b, 10)
}

// Canonical orders an endpoint pair so that the lower id comes first.
func Canonical(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}

// Graph is the full node and edge set, keyed for client-side lookup.
type Graph struct {
	Nodes map[string]Node `json:"nodes"`
	Edges map[string]Edge `json:"edges"`
}

// NewGraph builds a Graph from node and edge lists.
func NewGraph(nodes []Node, edges []Edge) *Graph {
	g := &Graph{
		Nodes: make(map[string]Node, len(nodes)),
		Edges: make(map[string]Edge, len(edges)),
	}
	for _, n := range nodes {
		g.Nodes[strconv.FormatInt(n.ID, 10)] = n
	}
	for _, e := range edges {
		g.Edges[e.Key()] = e
	}
	return g
}

// Sex codes
const (
	SexMale      = "M"
	SexFemale    = "F"
	SexUndefined = "U"
)

// Sexes maps every accepted sex code to its label.
var Sexes = map[string]string{
	SexMale:      "Male",
	SexFemale:    "Female",
	SexUndefined: "Undefined",
}

// Audit target types
const (
	TargetNode = "node"
	TargetEdge = "edge"
)

// AuditEntry represents a committed mutation.
type AuditEntry struct {
	ID         string          `json:"id"`
	Action     string          `json:"action"`
	TargetType string          `json:"target_type"`
	TargetID   string          `json:"target_id"`
	Data       json.RawMessage `json:"data,omitempty"`
	Timestamp  time.Time       `json:"ts"`
}
