package plan

import (
	"github.com/antigravity-dev/lex-pr-runner/internal/canon"
	"github.com/antigravity-dev/lex-pr-runner/internal/depgraph"
)

// Levelize computes the plan's parallel execution levels. It delegates
// entirely to depgraph.Levelize; PlanItem already implements depgraph.Node.
func (p *Plan) Levelize() ([][]string, error) {
	nodes := make([]depgraph.Node, len(p.Items))
	for i, item := range p.Items {
		nodes[i] = item
	}
	return depgraph.Levelize(nodes)
}

// Hash returns the hex SHA-256 of the plan's canonical serialization.
func (p *Plan) Hash() (string, error) {
	return canon.Hash(p)
}

// Equal compares two plans by their canonical serialization, not by Go
// struct equality (field ordering, nil vs. empty slices, etc. must not
// affect the comparison).
func Equal(a, b *Plan) (bool, error) {
	ha, err := canon.Marshal(a)
	if err != nil {
		return false, err
	}
	hb, err := canon.Marshal(b)
	if err != nil {
		return false, err
	}
	return string(ha) == string(hb), nil
}
