package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"broadwaybot/internal/logger"
)

// Node is one step of the turn graph. Execute mutates the turn state;
// a returned error aborts the walk outright, which is reserved for
// programming mistakes rather than model trouble.
type Node interface {
	Execute(ctx context.Context, state *TurnState) error
	GetName() string
}

// nodeFunc adapts a method to the Node interface.
type nodeFunc struct {
	name string
	fn   func(ctx context.Context, state *TurnState) error
}

func (n nodeFunc) Execute(ctx context.Context, state *TurnState) error { return n.fn(ctx, state) }
func (n nodeFunc) GetName() string                                     { return n.name }

// Edge routes from one node to the next. Condition nil means
// unconditional; lower priority wins among matching edges.
type Edge struct {
	To        string
	Condition func(state *TurnState) bool
	Priority  int
}

// Flow is a start node plus the edge table.
type Flow struct {
	StartNode string
	Edges     map[string][]Edge
}

const nodeComplete = "complete"

// maxSteps bounds the walk so a miswired edge table can't loop forever.
const maxSteps = 16

// Graph executes a Flow over registered nodes, tracking the execution
// path as it goes.
type Graph struct {
	nodes map[string]Node
	flow  Flow
}

// NewGraph creates an empty graph with the given flow.
func NewGraph(flow Flow) *Graph {
	return &Graph{
		nodes: make(map[string]Node),
		flow:  flow,
	}
}

// AddNode registers a node under its name.
func (g *Graph) AddNode(node Node) error {
	if node == nil {
		return fmt.Errorf("node cannot be nil")
	}
	name := node.GetName()
	if name == "" {
		return fmt.Errorf("node name cannot be empty")
	}
	g.nodes[name] = node
	return nil
}

// Execute walks the flow from the start node, or from startOverride
// when non-empty, until it reaches complete.
func (g *Graph) Execute(ctx context.Context, state *TurnState, startOverride string) error {
	startTime := time.Now()

	currentNode := g.flow.StartNode
	if startOverride != "" {
		currentNode = startOverride
	}

	steps := 0
	for currentNode != "" && currentNode != nodeComplete {
		if steps++; steps > maxSteps {
			return fmt.Errorf("graph execution exceeded %d steps at node %s", maxSteps, currentNode)
		}

		state.ExecutionPath = append(state.ExecutionPath, currentNode)
		logger.Debug().
			Str("session_id", state.SessionID).
			Str("node", currentNode).
			Msg("Executing node")

		node, exists := g.nodes[currentNode]
		if !exists {
			return fmt.Errorf("node not found: %s", currentNode)
		}

		if err := node.Execute(ctx, state); err != nil {
			return fmt.Errorf("error executing node %s: %v", currentNode, err)
		}

		currentNode = g.nextNode(currentNode, state)
	}

	logger.Debug().
		Str("session_id", state.SessionID).
		Strs("execution_path", state.ExecutionPath).
		Dur("elapsed", time.Since(startTime)).
		Msg("Graph execution completed")

	return nil
}

// nextNode picks the highest-priority edge whose condition holds.
func (g *Graph) nextNode(currentNode string, state *TurnState) string {
	edges, exists := g.flow.Edges[currentNode]
	if !exists || len(edges) == 0 {
		return nodeComplete
	}

	sorted := make([]Edge, len(edges))
	copy(sorted, edges)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})

	for _, edge := range sorted {
		if edge.Condition == nil || edge.Condition(state) {
			return edge.To
		}
	}
	return nodeComplete
}
