package grid

import "sort"

// Item is one interval on a single day, in minutes.
type Item struct {
	ID    string
	Start int
	End   int
}

// Placement is where an item goes: column Column of Columns. Columns is
// the column count of the item's overlap cluster, not of the whole day.
type Placement struct {
	Item
	Column  int
	Columns int
	Cluster int
}

// Layout assigns columns to items so that no two items in the same column
// overlap. Items are processed by start (stable for ties); a cluster ends
// when an item starts at or after the latest end seen in it. Within a
// cluster each item takes the lowest column that is free at its start, and
// every item of the cluster gets the cluster's final column count.
//
// The result is in processing order.
func Layout(items []Item) []Placement {
	if len(items) == 0 {
		return nil
	}
	sorted := make([]Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	out := make([]Placement, 0, len(sorted))
	var (
		columnEnds   []int
		clusterEnd   int
		clusterFirst int
		cluster      = -1
	)
	closeCluster := func() {
		for i := clusterFirst; i < len(out); i++ {
			out[i].Columns = len(columnEnds)
		}
	}

	for _, it := range sorted {
		if cluster < 0 || it.Start >= clusterEnd {
			if cluster >= 0 {
				closeCluster()
			}
			cluster++
			clusterFirst = len(out)
			columnEnds = columnEnds[:0]
			clusterEnd = it.End
		}
		if it.End > clusterEnd {
			clusterEnd = it.End
		}

		col := -1
		for c, end := range columnEnds {
			if end <= it.Start {
				col = c
				break
			}
		}
		if col < 0 {
			col = len(columnEnds)
			columnEnds = append(columnEnds, it.End)
		} else {
			columnEnds[col] = it.End
		}
		out = append(out, Placement{Item: it, Column: col, Cluster: cluster})
	}
	closeCluster()
	return out
}

// ByID indexes placements by item id.
func ByID(placements []Placement) map[string]Placement {
	m := make(map[string]Placement, len(placements))
	for _, p := range placements {
		m[p.ID] = p
	}
	return m
}
