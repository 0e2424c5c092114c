/*
Copyright 2026 Jordi Gil.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package coordinator

import "sync"

// perBagLocks gives each bag_tag its own mutex so concurrent writers to
// the same bag serialize while unrelated bags proceed in parallel. Locks
// are created lazily and never removed: the number of distinct bag_tags
// the coordinator ever sees is bounded by total baggage volume, not by
// concurrent load, so the map does not grow unboundedly within a single
// process lifetime.
type perBagLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newPerBagLocks() *perBagLocks {
	return &perBagLocks{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the mutex for bagTag and returns a function to release it.
func (p *perBagLocks) lock(bagTag string) func() {
	p.mu.Lock()
	l, ok := p.locks[bagTag]
	if !ok {
		l = &sync.Mutex{}
		p.locks[bagTag] = l
	}
	p.mu.Unlock()

	l.Lock()
	return l.Unlock
}
