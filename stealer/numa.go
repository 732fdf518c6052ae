package stealer

// NumaTopology maps worker indices to NUMA node ids. It is supplied by the
// pool builder; when the host has a single node (or topology detection is
// unavailable) NewUniformTopology puts every worker on node 0.
type NumaTopology struct {
	nodeOf []int
}

// NewNumaTopology builds a topology from an explicit worker->node mapping.
func NewNumaTopology(nodeOf []int) *NumaTopology {
	cp := make([]int, len(nodeOf))
	copy(cp, nodeOf)
	return &NumaTopology{nodeOf: cp}
}

// NewUniformTopology places every one of n workers on node 0.
func NewUniformTopology(n int) *NumaTopology {
	nodeOf := make([]int, n)
	return &NumaTopology{nodeOf: nodeOf}
}

// NodeOf returns the NUMA node a worker is pinned to.
func (t *NumaTopology) NodeOf(workerID int) int {
	if workerID < 0 || workerID >= len(t.nodeOf) {
		return 0
	}
	return t.nodeOf[workerID]
}

// SameNode reports whether two workers share a NUMA node.
func (t *NumaTopology) SameNode(a, b int) bool {
	return t.NodeOf(a) == t.NodeOf(b)
}
