// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package simkernel

import (
	"context"
	"errors"
	"reflect"
)

// ErrNoActivities is returned by ActivitySet.WaitAny when the set has no
// members left to wait on.
var ErrNoActivities = errors.New("simkernel: activity set is empty")

// ActivitySet is a collection of in-flight activities an actor can await
// "any one" completion of, used by retry loops that wake up when some
// exec/read/write/transfer finishes and may have freed resources for a
// pending job.
type ActivitySet struct {
	members map[*Activity]struct{}
}

// NewActivitySet builds a set from zero or more activities.
func NewActivitySet(acts ...*Activity) *ActivitySet {
	s := &ActivitySet{members: make(map[*Activity]struct{}, len(acts))}
	for _, a := range acts {
		s.members[a] = struct{}{}
	}
	return s
}

// Add inserts an activity into the set.
func (s *ActivitySet) Add(a *Activity) { s.members[a] = struct{}{} }

// Remove drops an activity from the set without waiting on it.
func (s *ActivitySet) Remove(a *Activity) { delete(s.members, a) }

// Empty reports whether the set has no members.
func (s *ActivitySet) Empty() bool { return len(s.members) == 0 }

// Len returns the number of in-flight activities currently tracked.
func (s *ActivitySet) Len() int { return len(s.members) }

// WaitAny blocks until any one member activity completes, removes it from
// the set, and returns it. A ctx cancellation unblocks WaitAny without
// consuming a member.
func (s *ActivitySet) WaitAny(ctx context.Context) (*Activity, error) {
	if len(s.members) == 0 {
		return nil, ErrNoActivities
	}

	order := make([]*Activity, 0, len(s.members))
	cases := make([]reflect.SelectCase, 0, len(s.members)+1)
	for a := range s.members {
		order = append(order, a)
		cases = append(cases, reflect.SelectCase{
			Dir:  reflect.SelectRecv,
			Chan: reflect.ValueOf(a.Done()),
		})
	}
	cases = append(cases, reflect.SelectCase{
		Dir:  reflect.SelectRecv,
		Chan: reflect.ValueOf(ctx.Done()),
	})

	chosen, _, _ := reflect.Select(cases)
	if chosen == len(order) {
		return nil, ctx.Err()
	}

	done := order[chosen]
	delete(s.members, done)
	return done, nil
}
