package store

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// IDGenerator assigns ids to locally created invoices.
type IDGenerator interface {
	NextID() int64
}

// SnowflakeIDs generates timestamp-derived ids that increase strictly
// within a node, so two invoices added in the same millisecond still get
// distinct ids.
type SnowflakeIDs struct {
	node *snowflake.Node
}

// NewSnowflakeIDs creates a generator for the given node number (0-1023).
func NewSnowflakeIDs(node int64) (*SnowflakeIDs, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, fmt.Errorf("create snowflake node %d: %w", node, err)
	}
	return &SnowflakeIDs{node: n}, nil
}

// NextID returns the next id.
func (g *SnowflakeIDs) NextID() int64 {
	return g.node.Generate().Int64()
}

// IDFunc adapts a plain function to IDGenerator.
type IDFunc func() int64

// NextID calls f.
func (f IDFunc) NextID() int64 { return f() }
