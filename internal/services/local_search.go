package services

import (
	"context"
	"time"
)

// How often, in evaluations, the wall-clock deadline is checked.
const deadlineCheckEvery = 64

// searchBudget bounds local search by evaluation count and wall-clock time.
type searchBudget struct {
	remaining int
	deadline  time.Time
	now       func() time.Time
	ctx       context.Context
	spent     int
}

// spend consumes one candidate evaluation and reports whether it was allowed.
func (b *searchBudget) spend() bool {
	if b.remaining <= 0 {
		return false
	}
	b.remaining--
	b.spent++

	if b.spent%deadlineCheckEvery == 0 {
		if b.ctx != nil && b.ctx.Err() != nil {
			b.remaining = 0
		}
		if !b.deadline.IsZero() && !b.now().Before(b.deadline) {
			b.remaining = 0
		}
	}
	return true
}

// improve runs first-improvement local search over relocate, swap and 2-opt
// moves, scanned in that fixed order, until no move improves the tour or the
// budget runs out. The tour is modified in place and its cost returned.
func (p *problem) improve(tour []int, cost int, budget *searchBudget) int {
	n := len(tour)
	if n < 2 {
		return cost
	}

	cand := make([]int, n)
	accept := func() bool {
		c, ok := p.evaluate(cand)
		if ok && c < cost {
			copy(tour, cand)
			cost = c
			return true
		}
		return false
	}

	for {
		improved := false

	scan:
		// Relocate: move the visit at i to position j.
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if i == j {
					continue
				}
				if !budget.spend() {
					return cost
				}
				relocate(cand, tour, i, j)
				if accept() {
					improved = true
					break scan
				}
			}
		}

		if !improved {
		swap:
			// Swap the visits at i and j.
			for i := 0; i < n-1; i++ {
				for j := i + 1; j < n; j++ {
					if !budget.spend() {
						return cost
					}
					copy(cand, tour)
					cand[i], cand[j] = cand[j], cand[i]
					if accept() {
						improved = true
						break swap
					}
				}
			}
		}

		if !improved {
		twoOpt:
			// 2-opt: reverse the segment i..j.
			for i := 0; i < n-1; i++ {
				for j := i + 2; j < n; j++ {
					if !budget.spend() {
						return cost
					}
					copy(cand, tour)
					reverse(cand[i : j+1])
					if accept() {
						improved = true
						break twoOpt
					}
				}
			}
		}

		if !improved {
			return cost
		}
	}
}

// relocate writes into dst the tour with the element at from moved to index to.
func relocate(dst, tour []int, from, to int) {
	v := tour[from]
	k := 0
	for idx, node := range tour {
		if idx == from {
			continue
		}
		if k == to {
			dst[k] = v
			k++
		}
		dst[k] = node
		k++
	}
	if k == to {
		dst[k] = v
	}
}

func reverse(s []int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
