package keymanager

// selectLocked applies the manager's configured SelectionPolicy to an
// already-eligible, already-sorted candidate list. Callers hold mu.
func (m *Manager) selectLocked(eligible []*managedKey) *managedKey {
	switch m.policy {
	case LeastUsed:
		return eligible[0] // pre-sorted by (errors, usageCount, totalBytes) asc
	case WeightedRandom:
		return m.weightedRandomLocked(eligible)
	case RoundRobin:
		fallthrough
	default:
		idx := m.rrIndex % len(eligible)
		m.rrIndex++
		return eligible[idx]
	}
}

// weightedRandomLocked assigns each eligible key weight
// (sum(usageCounts) - usageCount) + 1, so less-used keys draw more weight,
// then picks uniformly in [1, total weight].
func (m *Manager) weightedRandomLocked(eligible []*managedKey) *managedKey {
	var total int64
	for _, mk := range eligible {
		total += mk.usage.UsageCount
	}

	weights := make([]int64, len(eligible))
	var sumWeights int64
	for i, mk := range eligible {
		w := (total - mk.usage.UsageCount) + 1
		weights[i] = w
		sumWeights += w
	}

	pick := m.rand.Int63n(sumWeights) + 1
	var running int64
	for i, w := range weights {
		running += w
		if running >= pick {
			return eligible[i]
		}
	}
	return eligible[len(eligible)-1]
}
