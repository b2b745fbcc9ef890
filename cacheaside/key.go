package cacheaside

import "tatkal-search/store"

// Key returns the cache key for an availability query: search:<origin>-<destination>:<date>.
// It is case-sensitive and has no other inputs.
func Key(q store.Query) string {
	return "search:" + q.Route() + ":" + q.TravelDate
}
