package services

import (
	"math"
	"slices"
)

// insertionOrder returns visit nodes ordered by (latest, earliest, input index)
// so the most constrained visits are placed first.
func (p *problem) insertionOrder() []int {
	nodes := make([]int, 0, p.visits)
	for v := 1; v <= p.visits; v++ {
		nodes = append(nodes, v)
	}

	slices.SortStableFunc(nodes, func(a, b int) int {
		if p.latest[a] != p.latest[b] {
			return p.latest[a] - p.latest[b]
		}
		if p.earliest[a] != p.earliest[b] {
			return p.earliest[a] - p.earliest[b]
		}
		return a - b
	})
	return nodes
}

// cheapestInsertion builds a feasible tour by inserting each visit at the
// position that adds the least distance while keeping every arrival inside
// its window. It reports false when some visit has no feasible position.
func (p *problem) cheapestInsertion() ([]int, bool) {
	tour := make([]int, 0, p.visits)
	cand := make([]int, 0, p.visits)

	for _, v := range p.insertionOrder() {
		bestPos := -1
		bestCost := math.MaxInt

		for pos := 0; pos <= len(tour); pos++ {
			cand = append(cand[:0], tour[:pos]...)
			cand = append(cand, v)
			cand = append(cand, tour[pos:]...)

			cost, ok := p.evaluate(cand)
			// Strict comparison keeps the earliest position on ties.
			if ok && cost < bestCost {
				bestCost = cost
				bestPos = pos
			}
		}

		if bestPos < 0 {
			return nil, false
		}
		tour = slices.Insert(tour, bestPos, v)
	}

	return tour, true
}

// nearestFeasible builds a tour greedily: from the current node, move to the
// unvisited node with the shortest travel time that can still be reached
// before its window closes.
func (p *problem) nearestFeasible() ([]int, bool) {
	remaining := make(map[int]struct{}, p.visits)
	for v := 1; v <= p.visits; v++ {
		remaining[v] = struct{}{}
	}

	tour := make([]int, 0, p.visits)
	current := 0
	clock := p.start

	for len(remaining) > 0 {
		best := -1
		minTravel := math.MaxInt

		// Select next stop by minimum travel time (greedy step).
		for v := range remaining {
			travel := p.travel[current][v]
			if clock+travel > p.latest[v] {
				continue
			}
			// Tie-breaker keeps the choice deterministic across map iteration order.
			if travel < minTravel || (travel == minTravel && v < best) {
				minTravel = travel
				best = v
			}
		}

		if best < 0 {
			return nil, false
		}

		clock = max(clock+minTravel, p.earliest[best]) + p.service[best]
		tour = append(tour, best)
		delete(remaining, best)
		current = best
	}

	return tour, true
}
