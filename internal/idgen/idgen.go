// Package idgen supplies order ids. Snowflake ids (time + node + sequence)
// stay unique across horizontally scaled order-service replicas as long as
// each replica gets its own node number.
package idgen

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// Generator is injected wherever ids are minted, so tests can substitute a
// deterministic sequence.
type Generator interface {
	NextID() int64
}

type SnowflakeGenerator struct {
	node *snowflake.Node
}

func NewSnowflakeGenerator(nodeID int64) (*SnowflakeGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	return &SnowflakeGenerator{node: node}, nil
}

func (g *SnowflakeGenerator) NextID() int64 {
	return g.node.Generate().Int64()
}
