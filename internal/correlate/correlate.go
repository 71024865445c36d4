// Package correlate pairs outstanding request identifiers with the requests
// that produced them.
//
// The table is the only mutable state shared between the interactive loop
// (which issues requests) and the response pump (which resolves them), so it
// owns both the identifier counter and the registry and exposes exactly two
// operations: Issue, which allocates the next identifier and registers the
// request atomically, and Resolve, which looks up and retires an entry when
// its response arrives. Neither the counter nor the map is reachable from
// outside.
package correlate

import (
	"sync"

	"github.com/dshills/lspwire/internal/rpc"
)

// BuildFunc constructs the request envelope and wire frame for an allocated
// identifier. It must be pure: it runs inside the table's critical section.
type BuildFunc func(id int64) (rpc.Request, []byte, error)

// Table is the outstanding-request registry. The zero value is not usable;
// call NewTable.
type Table struct {
	mu      sync.Mutex
	lastID  int64
	pending map[int64]rpc.Request
}

// NewTable creates an empty table. The first issued identifier is 1.
func NewTable() *Table {
	return &Table{pending: make(map[int64]rpc.Request)}
}

// Issue allocates the next identifier, builds the request for it, and
// registers the result, all under one critical section so no two concurrent
// calls can observe a duplicate identifier. If build fails the identifier is
// not consumed and nothing is registered.
func (t *Table) Issue(build BuildFunc) (rpc.Request, []byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.lastID + 1
	req, wire, err := build(id)
	if err != nil {
		return rpc.Request{}, nil, err
	}

	t.lastID = id
	t.pending[id] = req
	return req, wire, nil
}

// Resolve retires and returns the request registered under id. Absence is not
// an error: the response is either a notification or belongs to a request
// issued outside this table's bookkeeping.
func (t *Table) Resolve(id int64) (rpc.Request, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	req, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	return req, ok
}

// Outstanding returns the number of requests still awaiting a response.
func (t *Table) Outstanding() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
