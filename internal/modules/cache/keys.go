package cache

import (
	"fmt"
	"sort"
	"strings"

	"fleetmatch/internal/types"
)

// Key namespaces. Everything under PrefixMatching is derived from the job and
// vehicle pools and is dropped on any invalidation.
const (
	PrefixJobs         = "jobs:"
	PrefixVehicles     = "vehicles:"
	PrefixPositions    = "positions:"
	KeyFleetStatus     = "fleet_status"
	PrefixRoutes       = "routes:"
	PrefixMatching     = "matching:"
	PrefixMatchResults = "matching:results:"
	PrefixScores       = "matching:score:"
	PrefixMetrics      = "metrics:"
)

// Key builds an order-independent key: namespace followed by the non-empty
// fields sorted by name, e.g. "jobs:limit=50|urgency=high".
func Key(namespace string, fields map[string]string) string {
	names := make([]string, 0, len(fields))
	for k, v := range fields {
		if v != "" {
			names = append(names, k)
		}
	}
	if len(names) == 0 {
		return namespace + "all"
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(namespace)
	for i, k := range names {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fields[k])
	}
	return b.String()
}

func ScoreKey(jobID, vehicleID types.ID) string {
	return fmt.Sprintf("%s%s:%s", PrefixScores, jobID, vehicleID)
}

// RouteKey rounds coordinates to ~100m so nearby lookups share an entry.
func RouteKey(from, to types.Point) string {
	return fmt.Sprintf("%s%.3f,%.3f:%.3f,%.3f", PrefixRoutes, from.Lat, from.Lng, to.Lat, to.Lng)
}

// SortedList joins values in sorted order for use as a Key field.
func SortedList[T ~string](vals []T) string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = string(v)
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}
