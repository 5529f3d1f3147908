// Package id generates time-ordered unique identifiers.
package id

import (
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// Generator issues prefixed snowflake identifiers. It is safe for concurrent use.
type Generator struct {
	node   *snowflake.Node
	prefix string
}

// NewGenerator creates a generator for the given node. Node IDs must be unique
// across running instances.
func NewGenerator(nodeID int64, prefix string) (*Generator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, err
	}
	prefix = strings.TrimSpace(prefix)
	if strings.ContainsAny(prefix, " \t\n") {
		return nil, errors.New("id: prefix must not contain whitespace")
	}
	return &Generator{node: node, prefix: prefix}, nil
}

// Next returns a new identifier.
func (g *Generator) Next() string {
	return g.prefix + g.node.Generate().String()
}
