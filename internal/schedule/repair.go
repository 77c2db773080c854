package schedule

import (
	"sort"

	"github.com/Spok95/timetable-substitutes/internal/models"
)

// MaxConsecutiveBusy is the longest allowed run of Busy sessions in a day.
const MaxConsecutiveBusy = 4

// Repair enforces the workload rules on a drafted template in place and
// returns it:
//   - no more than MaxConsecutiveBusy Busy sessions in a row: the session that
//     pushes the run over the limit becomes Free and the run restarts;
//   - at least one Free session per day: a fully Busy day gets one random
//     session freed.
//
// The first rule runs over every day before the second starts.
func Repair(entries []models.TimetableEntry, rnd Rand) []models.TimetableEntry {
	days := groupByDay(entries)

	for _, idx := range days {
		streak := 0
		for _, i := range idx {
			if entries[i].Status != models.Busy {
				streak = 0
				continue
			}
			streak++
			if streak > MaxConsecutiveBusy {
				entries[i].Status = models.Free
				streak = 0
			}
		}
	}

	for _, idx := range days {
		allBusy := true
		for _, i := range idx {
			if entries[i].Status != models.Busy {
				allBusy = false
				break
			}
		}
		if allBusy && len(idx) > 0 {
			entries[idx[rnd.IntN(len(idx))]].Status = models.Free
		}
	}
	return entries
}

// groupByDay returns positions of template entries per day, in canonical day
// order and ascending session order.
func groupByDay(entries []models.TimetableEntry) [][]int {
	byDay := make(map[models.Weekday][]int)
	var order []models.Weekday
	for i, e := range entries {
		if !e.IsTemplate() {
			continue
		}
		if _, ok := byDay[e.Day]; !ok {
			order = append(order, e.Day)
		}
		byDay[e.Day] = append(byDay[e.Day], i)
	}
	sort.SliceStable(order, func(a, b int) bool { return order[a].Index() < order[b].Index() })

	out := make([][]int, 0, len(order))
	for _, d := range order {
		idx := byDay[d]
		sort.SliceStable(idx, func(a, b int) bool { return entries[idx[a]].Session < entries[idx[b]].Session })
		out = append(out, idx)
	}
	return out
}
