package genie

// queueMargin is the number of slots of the event queue that are never filled
const queueMargin = 2

// eventQueue is a circular buffer of received frames. A frame for an object
// that is already queued only updates the data of the queued frame, so a fast
// changing slider does not flood the queue.
type eventQueue struct {
	frames []Frame
	rd, wr int
	n      int
}

func newEventQueue(capacity int) *eventQueue {
	return &eventQueue{frames: make([]Frame, capacity)}
}

func (q *eventQueue) flush() {
	q.rd, q.wr, q.n = 0, 0, 0
}

func (q *eventQueue) limit() int {
	return len(q.frames) - queueMargin
}

// enqueue reports whether the frame was coalesced into an already queued one
func (q *eventQueue) enqueue(f Frame) (coalesced bool, err error) {
	if q.n >= q.limit() {
		return false, ErrQueueOverflow
	}

	// Newest first, the latest report of an object is the most likely match
	j := q.wr
	for i := q.n; i > 0; i-- {
		j = (j - 1 + len(q.frames)) % len(q.frames)
		if q.frames[j].sameObject(f) {
			q.frames[j][3] = f[3]
			q.frames[j][4] = f[4]
			q.frames[j][5] = Checksum(q.frames[j][:5])
			return true, nil
		}
	}

	q.frames[q.wr] = f
	q.wr = (q.wr + 1) % len(q.frames)
	q.n++
	return false, nil
}

func (q *eventQueue) dequeue() (Frame, bool) {
	if q.n == 0 {
		return Frame{}, false
	}
	f := q.frames[q.rd]
	q.rd = (q.rd + 1) % len(q.frames)
	q.n--
	return f, true
}

func (q *eventQueue) len() int { return q.n }
