package optimization

import (
	"math"
	"slices"
	"sort"
)

// dominates reports whether a is at least as good as b in every objective and
// better in one. All objectives are maximised.
func dominates(a, b []float64) bool {
	better := false
	for idx := range a {
		if a[idx] < b[idx] {
			return false
		}
		if a[idx] > b[idx] {
			better = true
		}
	}
	return better
}

// sortNondominated splits individuals into successive non-dominated fronts,
// stopping once the fronts hold at least k individuals.
func sortNondominated(individuals []*individual, k int) [][]*individual {
	n := len(individuals)
	dominatedBy := make([]int, n)
	dominating := make([][]int, n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			switch {
			case dominates(individuals[i].fitness, individuals[j].fitness):
				dominating[i] = append(dominating[i], j)
				dominatedBy[j]++
			case dominates(individuals[j].fitness, individuals[i].fitness):
				dominating[j] = append(dominating[j], i)
				dominatedBy[i]++
			}
		}
	}

	var current []int
	for i := 0; i < n; i++ {
		if dominatedBy[i] == 0 {
			current = append(current, i)
		}
	}

	var fronts [][]*individual
	taken := 0
	for len(current) > 0 && taken < k {
		front := make([]*individual, len(current))
		for idx, i := range current {
			front[idx] = individuals[i]
		}
		fronts = append(fronts, front)
		taken += len(front)

		var next []int
		for _, i := range current {
			for _, j := range dominating[i] {
				dominatedBy[j]--
				if dominatedBy[j] == 0 {
					next = append(next, j)
				}
			}
		}
		slices.Sort(next)
		current = next
	}
	return fronts
}

// crowdingDistance measures how isolated each member of a front is in objective space.
func crowdingDistance(front []*individual) []float64 {
	distances := make([]float64, len(front))
	if len(front) == 0 {
		return distances
	}

	objectives := len(front[0].fitness)
	order := make([]int, len(front))
	for obj := 0; obj < objectives; obj++ {
		for idx := range order {
			order[idx] = idx
		}
		sort.SliceStable(order, func(i, j int) bool {
			return front[order[i]].fitness[obj] < front[order[j]].fitness[obj]
		})

		first, last := order[0], order[len(order)-1]
		distances[first] = math.Inf(1)
		distances[last] = math.Inf(1)

		norm := float64(objectives) * (front[last].fitness[obj] - front[first].fitness[obj])
		if norm == 0 || math.IsInf(norm, 0) || math.IsNaN(norm) {
			continue
		}
		for idx := 1; idx < len(order)-1; idx++ {
			prev := front[order[idx-1]].fitness[obj]
			next := front[order[idx+1]].fitness[obj]
			distances[order[idx]] += (next - prev) / norm
		}
	}
	return distances
}

// selectNSGA2 keeps the k best individuals by non-domination rank, breaking the
// last front by crowding distance.
func selectNSGA2(individuals []*individual, k int) []*individual {
	if k >= len(individuals) {
		return individuals
	}

	fronts := sortNondominated(individuals, k)
	chosen := make([]*individual, 0, k)
	for _, front := range fronts[:len(fronts)-1] {
		chosen = append(chosen, front...)
	}

	last := fronts[len(fronts)-1]
	distances := crowdingDistance(last)
	order := make([]int, len(last))
	for idx := range order {
		order[idx] = idx
	}
	sort.SliceStable(order, func(i, j int) bool {
		return distances[order[i]] > distances[order[j]]
	})
	for _, idx := range order[:k-len(chosen)] {
		chosen = append(chosen, last[idx])
	}
	return chosen
}

// paretoFront accumulates the non-dominated individuals of every generation.
type paretoFront struct {
	members []*individual
	keys    map[string]struct{}
}

func newParetoFront() *paretoFront {
	return &paretoFront{keys: make(map[string]struct{})}
}

func (p *paretoFront) update(individuals []*individual) {
	for _, ind := range individuals {
		if !finite(ind.fitness) {
			continue
		}
		key := genesKey(ind.genes)
		if _, ok := p.keys[key]; ok {
			continue
		}

		dominated := false
		kept := p.members[:0]
		for _, member := range p.members {
			if dominates(member.fitness, ind.fitness) {
				dominated = true
			}
			if !dominated && dominates(ind.fitness, member.fitness) {
				delete(p.keys, genesKey(member.genes))
				continue
			}
			kept = append(kept, member)
		}
		p.members = kept
		if dominated {
			continue
		}
		p.members = append(p.members, ind.clone())
		p.keys[key] = struct{}{}
	}
}

func finite(values []float64) bool {
	for _, v := range values {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return false
		}
	}
	return true
}

func genesKey(genes []int) string {
	key := make([]byte, 0, len(genes)*4)
	for _, gene := range genes {
		key = append(key, byte(gene>>24), byte(gene>>16), byte(gene>>8), byte(gene))
	}
	return string(key)
}
