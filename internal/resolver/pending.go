package resolver

import "sort"

// pendingTable maps request ids to registered requests.
//
// Public ids are positive and strictly increasing (the first id is 1; 0
// always means unregistered) and are never reused, so a stale id can never
// alias a newer request. The generation counter backs the same guarantee
// for internal bookkeeping: it bumps on every removal, letting queued
// completion tasks detect table churn without trusting the id alone.
type pendingTable struct {
	nextID     uint64
	generation uint64
	byID       map[uint64]*Request
}

func newPendingTable() *pendingTable {
	return &pendingTable{nextID: 1, byID: make(map[uint64]*Request)}
}

// register assigns the next id to req and stores it.
func (t *pendingTable) register(req *Request) uint64 {
	id := t.nextID
	t.nextID++
	t.byID[id] = req
	return id
}

// remove deletes id, returning the request it held, or nil.
func (t *pendingTable) remove(id uint64) *Request {
	req, ok := t.byID[id]
	if !ok {
		return nil
	}
	delete(t.byID, id)
	t.generation++
	return req
}

// get returns the request registered under id, or nil.
func (t *pendingTable) get(id uint64) *Request { return t.byID[id] }

func (t *pendingTable) len() int { return len(t.byID) }

// ids returns all registered ids in increasing order, for deterministic
// iteration.
func (t *pendingTable) ids() []uint64 {
	out := make([]uint64, 0, len(t.byID))
	for id := range t.byID {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// lastID returns the highest registered id, or 0 when the table is empty.
func (t *pendingTable) lastID() uint64 {
	var max uint64
	for id := range t.byID {
		if id > max {
			max = id
		}
	}
	return max
}

// clear empties the table, returning the removed requests.
func (t *pendingTable) clear() []*Request {
	out := make([]*Request, 0, len(t.byID))
	for _, id := range t.ids() {
		out = append(out, t.byID[id])
	}
	t.byID = make(map[uint64]*Request)
	t.generation++
	return out
}
