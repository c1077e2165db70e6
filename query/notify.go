package query

import (
	"slices"
	"sync"
)

type listener[S any] struct {
	id uint64
	fn func(S)
}

type delivery[S any] struct {
	state S
	to    uint64 // 0 broadcasts to every listener
}

// notifier delivers state snapshots to listeners in publish order.
//
// Methods ending in Locked require the owner's mutex. drain is called
// without it. Whoever finds no drain in progress delivers every pending
// snapshot, so listeners may call back into the owner without deadlocking.
type notifier[S any] struct {
	nextID     uint64
	listeners  []listener[S]
	pending    []delivery[S]
	delivering bool
}

func (n *notifier[S]) addLocked(fn func(S)) uint64 {
	n.nextID++
	n.listeners = append(n.listeners, listener[S]{id: n.nextID, fn: fn})
	return n.nextID
}

func (n *notifier[S]) removeLocked(id uint64) {
	n.listeners = slices.DeleteFunc(n.listeners, func(l listener[S]) bool {
		return l.id == id
	})
}

func (n *notifier[S]) clearLocked() {
	n.listeners = nil
	n.pending = nil
}

func (n *notifier[S]) publishLocked(state S) {
	if len(n.listeners) == 0 {
		return
	}
	n.pending = append(n.pending, delivery[S]{state: state})
}

func (n *notifier[S]) sendLocked(id uint64, state S) {
	n.pending = append(n.pending, delivery[S]{state: state, to: id})
}

func (n *notifier[S]) drain(mu *sync.Mutex) {
	mu.Lock()
	if n.delivering {
		mu.Unlock()
		return
	}
	n.delivering = true

	locked := true
	defer func() {
		if !locked {
			mu.Lock()
		}
		n.delivering = false
		mu.Unlock()
	}()

	for len(n.pending) > 0 {
		batch := n.pending
		n.pending = nil
		listeners := slices.Clone(n.listeners)

		mu.Unlock()
		locked = false
		for _, d := range batch {
			for _, l := range listeners {
				if d.to == 0 || d.to == l.id {
					l.fn(d.state)
				}
			}
		}
		mu.Lock()
		locked = true
	}
}
