// Copyright 2025 PlanOpt Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package optimizer

import (
	"math/rand"
	"time"

	"github.com/planopt-systems/seqopt-core/pkg/models"
)

// state is one point of the search space: the working sequence plus, per
// element, the day the order was originally planned for. The origin days
// anchor the reassignment window; they never change during a run.
type state struct {
	seq    []models.BuildOrder
	origin []int
}

func newState(orders []models.BuildOrder) state {
	s := state{
		seq:    make([]models.BuildOrder, len(orders)),
		origin: make([]int, len(orders)),
	}
	copy(s.seq, orders)
	for i, o := range orders {
		s.origin[i] = o.Day()
	}
	return s
}

func (s state) clone() state {
	c := state{
		seq:    make([]models.BuildOrder, len(s.seq)),
		origin: make([]int, len(s.origin)),
	}
	copy(c.seq, s.seq)
	copy(c.origin, s.origin)
	return c
}

// candidateDays returns the active days within ±window of the origin day,
// ascending.
func candidateDays(activeDays []int, originDay, window int) []int {
	cands := make([]int, 0, 2*window+1)
	for _, d := range activeDays {
		if d >= originDay-window && d <= originDay+window {
			cands = append(cands, d)
		}
	}
	return cands
}

// dayExistsIn reports whether the month of t has the given day-of-month.
// time.Date silently normalizes a missing day into the next month
// (Feb 29 becomes Mar 1), which would let an order leave its planned
// month, so every move checks this before touching a date.
func dayExistsIn(t time.Time, day int) bool {
	return time.Date(t.Year(), t.Month(), day, 0, 0, 0, 0, t.Location()).Day() == day
}

// dateForDay keeps the order's year/month and replaces the day-of-month.
// Callers must have checked dayExistsIn first.
func dateForDay(t time.Time, day int) time.Time {
	return time.Date(t.Year(), t.Month(), day, 0, 0, 0, 0, t.Location())
}

// Move kinds.
const (
	moveShiftDay = iota
	moveSwapDays
	moveSwapAdjacent
	moveKinds
)

// mutate produces a neighboring state, or an invalid zero state when the
// randomly chosen move has no legal application (the caller just skips
// that iteration).
func (o *Optimizer) mutate(rng *rand.Rand, cur state, activeDays []int) (state, bool) {
	n := len(cur.seq)
	if n == 0 {
		return state{}, false
	}

	switch rng.Intn(moveKinds) {
	case moveShiftDay:
		i := rng.Intn(n)
		cands := candidateDays(activeDays, cur.origin[i], o.opts.WindowDays)
		usable := cands[:0:0]
		for _, d := range cands {
			if d != cur.seq[i].Day() && dayExistsIn(cur.seq[i].ProductionDate, d) {
				usable = append(usable, d)
			}
		}
		if len(usable) == 0 {
			return state{}, false
		}
		target := usable[rng.Intn(len(usable))]

		next := cur.clone()
		next.seq[i].ProductionDate = dateForDay(next.seq[i].ProductionDate, target)
		return next, true

	case moveSwapDays:
		if n < 2 {
			return state{}, false
		}
		i := rng.Intn(n)
		j := rng.Intn(n)
		if i == j || cur.seq[i].Day() == cur.seq[j].Day() {
			return state{}, false
		}
		di, dj := cur.seq[i].Day(), cur.seq[j].Day()
		if !dayAllowed(activeDays, cur.origin[i], dj, o.opts.WindowDays) ||
			!dayAllowed(activeDays, cur.origin[j], di, o.opts.WindowDays) {
			return state{}, false
		}
		if !dayExistsIn(cur.seq[i].ProductionDate, dj) || !dayExistsIn(cur.seq[j].ProductionDate, di) {
			return state{}, false
		}

		next := cur.clone()
		next.seq[i].ProductionDate = dateForDay(next.seq[i].ProductionDate, dj)
		next.seq[j].ProductionDate = dateForDay(next.seq[j].ProductionDate, di)
		return next, true

	default: // moveSwapAdjacent
		if n < 2 {
			return state{}, false
		}
		i := rng.Intn(n - 1)
		if cur.seq[i].Day() != cur.seq[i+1].Day() || cur.seq[i].Model == cur.seq[i+1].Model {
			return state{}, false
		}

		next := cur.clone()
		next.seq[i], next.seq[i+1] = next.seq[i+1], next.seq[i]
		next.origin[i], next.origin[i+1] = next.origin[i+1], next.origin[i]
		return next, true
	}
}

// dayAllowed reports whether day is active and inside the window around
// origin.
func dayAllowed(activeDays []int, origin, day, window int) bool {
	if day < origin-window || day > origin+window {
		return false
	}
	for _, d := range activeDays {
		if d == day {
			return true
		}
	}
	return false
}
