package dispatch

import "sort"

// selector holds the round-robin cursor for a single Request call. Per
// spec §9 ("Cyclic rotation"), this state is local to one call so that
// concurrent Request calls on the same Dispatcher never interfere.
type selector struct {
	endpoints []Endpoint
	cursor    int
}

func newSelector(endpoints []Endpoint) *selector {
	return &selector{endpoints: endpoints}
}

// next returns the next endpoint in insertion order, wrapping around. The
// first call returns index 0.
func (s *selector) next() Endpoint {
	e := s.endpoints[s.cursor%len(s.endpoints)]
	s.cursor++
	return e
}

// others returns every endpoint except primary, preserving order.
func (s *selector) others(primary Endpoint) []Endpoint {
	out := make([]Endpoint, 0, len(s.endpoints)-1)
	for _, e := range s.endpoints {
		if e != primary {
			out = append(out, e)
		}
	}
	return out
}

// healthRanked orders endpoints by (is_open ascending, failure_rate
// ascending, time_until_recovery ascending) and returns the best one.
// Ties are broken by sort.SliceStable's stability; callers must not rely
// on a specific tie-break, per spec §4.4.
func healthRanked(endpoints []Endpoint, health map[Endpoint]*EndpointHealth) Endpoint {
	ranked := make([]Endpoint, len(endpoints))
	copy(ranked, endpoints)

	sort.SliceStable(ranked, func(i, j int) bool {
		hi, hj := health[ranked[i]], health[ranked[j]]
		oi, oj := hi.IsOpen(), hj.IsOpen()
		if oi != oj {
			return oj // i is "less" (better) when i is closed and j is open
		}
		ri, rj := hi.FailureRate(), hj.FailureRate()
		if ri != rj {
			return ri < rj
		}
		return hi.TimeUntilRecovery() < hj.TimeUntilRecovery()
	})

	return ranked[0]
}
