package explorer

import (
	"sync"

	"github.com/psidex/graphmind/internal/lib"
)

// task is one idea waiting to be explored.
type task struct {
	idea  string
	query string
	level int
}

// frontier hands out each idea at most once, in the order they were found.
type frontier struct {
	queue *lib.Queue[task]
	// visitedMu makes the check-then-mark in pop a single step, otherwise an idea
	// queued twice could be handed out twice.
	visitedMu *sync.Mutex
	visited   lib.Set
}

func newFrontier() frontier {
	return frontier{
		queue:     lib.NewQueue[task](),
		visitedMu: &sync.Mutex{},
		visited:   lib.NewSet(),
	}
}

// add queues t, returns false if its idea has already been handed out.
func (f frontier) add(t task) bool {
	f.visitedMu.Lock()
	defer f.visitedMu.Unlock()
	if f.visited.Contains(t.idea) {
		return false
	}
	f.queue.Enqueue(t)
	return true
}

// pop returns the next unvisited task, ok is false once the frontier is exhausted.
func (f frontier) pop() (t task, ok bool) {
	f.visitedMu.Lock()
	defer f.visitedMu.Unlock()
	for {
		t, ok = f.queue.Dequeue()
		if !ok {
			return task{}, false
		}
		if f.visited.AddNew(t.idea) {
			return t, true
		}
	}
}

func (f frontier) size() int {
	return f.queue.Size()
}
