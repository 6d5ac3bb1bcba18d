package model

import "math"

// UnassignedID marks a node that has not been registered with a simulation yet.
const UnassignedID = -1

// Position is a point in the simulation area.
type Position struct {
	X float64
	Y float64
}

// DistanceTo returns the straight-line distance between two positions.
func (p Position) DistanceTo(other Position) float64 {
	return math.Hypot(p.X-other.X, p.Y-other.Y)
}

// Node represents a mobile entity taking part in a simulation run.
// The identity is assigned by the node registry on join and is never
// reused for another node during the lifetime of the run.
type Node struct {
	ID int

	JoinTime  float64
	LeaveTime float64

	// Position is the node's current location, maintained by the
	// mobility model that owns the node.
	Position Position

	joined bool
	left   bool
}

// NewNode returns a node that has not joined a simulation yet.
func NewNode(pos Position) *Node {
	return &Node{ID: UnassignedID, Position: pos}
}

// Joined reports whether the node has been registered.
func (n *Node) Joined() bool { return n.joined }

// Left reports whether the node has left the simulation. LeaveTime is
// only meaningful once Left returns true.
func (n *Node) Left() bool { return n.left }

// Active reports whether the node is currently participating.
func (n *Node) Active() bool { return n.joined && !n.left }

// MarkJoined records the node's identity and join time.
func (n *Node) MarkJoined(id int, t float64) {
	n.ID = id
	n.JoinTime = t
	n.joined = true
}

// MarkLeft records the node's leave time.
func (n *Node) MarkLeft(t float64) {
	n.LeaveTime = t
	n.left = true
}

// ParticipationTime returns LeaveTime-JoinTime for nodes that have left,
// and zero otherwise.
func (n *Node) ParticipationTime() float64 {
	if !n.left {
		return 0
	}
	return n.LeaveTime - n.JoinTime
}
