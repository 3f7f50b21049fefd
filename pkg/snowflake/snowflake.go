package snowflake

import (
	"os"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

// Module provides the snowflake ID node.
var Module = fx.Module("snowflake",
	fx.Provide(NewNode),
)

// Node wraps snowflake.Node to abstract the dependency.
type Node struct {
	*snowflake.Node
}

// NewNode creates a node. The node ID comes from SNOWFLAKE_NODE_ID so IDs
// stay unique when several controller replicas run against one database.
func NewNode() (*Node, error) {
	nodeID := int64(1)
	if v := os.Getenv("SNOWFLAKE_NODE_ID"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			nodeID = parsed
		}
	}
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, err
	}
	return &Node{node}, nil
}

// GenerateID returns a new snowflake ID as int64.
func (n *Node) GenerateID() int64 {
	return n.Generate().Int64()
}
