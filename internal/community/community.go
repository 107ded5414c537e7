// Package community partitions weighted item graphs into communities.
package community

import (
	"context"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/graph/community"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/tensorplex-labs/novelty/internal/sparse"
)

// Edge is an undirected weighted edge between nodes U and V.
type Edge struct {
	U, V int
	W    float64
}

// Graph is an undirected graph over nodes 0..N-1.
type Graph struct {
	N     int
	Edges []Edge
}

// FromMatrix builds a graph from the off-diagonal cells of m.
func FromMatrix(m *sparse.Matrix) *Graph {
	g := &Graph{N: m.N, Edges: make([]Edge, 0, m.NNZ())}
	for k, c := range m.Coords {
		if c.I == c.J {
			continue
		}
		g.Edges = append(g.Edges, Edge{U: int(c.I), V: int(c.J), W: m.Values[k]})
	}
	return g
}

// Sample returns a subgraph keeping each edge independently with
// probability fraction. All nodes are kept.
func (g *Graph) Sample(rng *rand.Rand, fraction float64) *Graph {
	out := &Graph{N: g.N, Edges: make([]Edge, 0, int(float64(len(g.Edges))*fraction)+1)}
	for _, e := range g.Edges {
		if rng.Float64() < fraction {
			out.Edges = append(out.Edges, e)
		}
	}
	return out
}

// Oracle assigns every node of a graph to a community.
type Oracle interface {
	Partition(ctx context.Context, g *Graph) (map[int]int, error)
}

// LabelPropagation is a seeded, deterministic weighted label propagation.
type LabelPropagation struct {
	Seed    uint64
	MaxIter int
}

func (lp LabelPropagation) Partition(ctx context.Context, g *Graph) (map[int]int, error) {
	maxIter := lp.MaxIter
	if maxIter <= 0 {
		maxIter = 100
	}

	adj := make([][]Edge, g.N)
	for _, e := range g.Edges {
		if e.U == e.V {
			continue
		}
		adj[e.U] = append(adj[e.U], Edge{U: e.U, V: e.V, W: e.W})
		adj[e.V] = append(adj[e.V], Edge{U: e.V, V: e.U, W: e.W})
	}

	labels := make([]int, g.N)
	for i := range labels {
		labels[i] = i
	}
	order := make([]int, g.N)
	for i := range order {
		order[i] = i
	}
	rng := rand.New(rand.NewPCG(lp.Seed, uint64(g.N)))
	weights := make(map[int]float64)

	for range maxIter {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		changed := false
		for _, node := range order {
			if len(adj[node]) == 0 {
				continue
			}
			clear(weights)
			for _, e := range adj[node] {
				weights[labels[e.V]] += e.W
			}
			best, bestW := labels[node], weights[labels[node]]
			for label, w := range weights {
				if w > bestW || (w == bestW && label < best) {
					best, bestW = label, w
				}
			}
			if best != labels[node] {
				labels[node] = best
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return compact(labels), nil
}

// compact renumbers labels densely in order of first appearance.
func compact(labels []int) map[int]int {
	ids := make(map[int]int)
	out := make(map[int]int, len(labels))
	for node, l := range labels {
		id, ok := ids[l]
		if !ok {
			id = len(ids)
			ids[l] = id
		}
		out[node] = id
	}
	return out
}

// Louvain partitions by modularity optimisation.
type Louvain struct {
	Seed       uint64
	Resolution float64
}

func (l Louvain) Partition(ctx context.Context, g *Graph) (map[int]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resolution := l.Resolution
	if resolution == 0 {
		resolution = 1
	}

	wg := simple.NewWeightedUndirectedGraph(0, 0)
	for i := range g.N {
		wg.AddNode(simple.Node(i))
	}
	for _, e := range g.Edges {
		if e.U == e.V || e.W == 0 {
			continue
		}
		wg.SetWeightedEdge(wg.NewWeightedEdge(simple.Node(e.U), simple.Node(e.V), e.W))
	}

	reduced := community.Modularize(wg, resolution, rand.NewPCG(l.Seed, uint64(g.N)))
	communities := reduced.Communities()

	// order communities by their smallest member so labels are stable
	ids := make([][]int, len(communities))
	for c, members := range communities {
		for _, n := range members {
			ids[c] = append(ids[c], int(n.ID()))
		}
		slices.Sort(ids[c])
	}
	slices.SortFunc(ids, func(a, b []int) int { return a[0] - b[0] })

	out := make(map[int]int, g.N)
	for c, members := range ids {
		for _, n := range members {
			out[n] = c
		}
	}
	return out, nil
}
