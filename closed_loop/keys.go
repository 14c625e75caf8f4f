package main

import control "quad-stabilizer-core/closed_loop/attitude_control"

// keyQueue collects pilot key events between ticks. It is owned by the tick
// loop goroutine.
type keyQueue struct {
	pending []control.KeyEvent
}

func (q *keyQueue) Push(keys ...control.KeyEvent) {
	for _, k := range keys {
		if k != control.KeyNone {
			q.pending = append(q.pending, k)
		}
	}
}

// PollKeys drains the queue.
func (q *keyQueue) PollKeys() []control.KeyEvent {
	out := q.pending
	q.pending = nil
	return out
}
