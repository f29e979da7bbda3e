package gsl

import (
	"log"
	"math"
	"sync"
	"sync/atomic"
)

//maxGridWorkers is the hardware-style ceiling on logical workers per launch.
//When the logical problem size exceeds it, workers wrap with a grid stride so
//that every cell is still visited exactly once.
const maxGridWorkers = 65536

//GroupSize is the number of workers in one worker-group. Workers of a group
//share one scratch arena, so the number of distinct class labels must not
//exceed it.
const GroupSize = 256

//Queue is a caller-owned serial execution stream. All data-parallel work of
//one split search is submitted onto one queue and runs in submission order;
//Sync blocks until everything submitted so far has finished. Independent
//searches may overlap by using distinct queues.
type Queue struct {
	tasks   chan func()
	pending sync.WaitGroup
	once    sync.Once
}

//NewQueue creates a queue and starts its dispatcher.
func NewQueue() *Queue {
	q := &Queue{tasks: make(chan func(), 64)}
	go func() {
		for task := range q.tasks {
			task()
			q.pending.Done()
		}
	}()
	return q
}

//Submit enqueues a task. Tasks run one at a time in FIFO order.
func (q *Queue) Submit(task func()) {
	q.pending.Add(1)
	q.tasks <- task
}

//Sync blocks until every submitted task has completed.
func (q *Queue) Sync() {
	q.pending.Wait()
}

//Close stops the dispatcher. The queue must be idle.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.tasks) })
}

//gridFor returns the grid size for n logical cells: n rounded up to a whole
//number of worker-groups and capped at maxGridWorkers.
func gridFor(n int) int {
	if n <= 0 {
		return GroupSize
	}
	workers := ((n + GroupSize - 1) / GroupSize) * GroupSize
	if workers > maxGridWorkers {
		workers = maxGridWorkers
	}
	return workers
}

//runGrid executes kernel once per worker-group of a grid of gridSize workers,
//one goroutine per group. The kernel receives the half-open worker-id range
//[first, limit) of its group and is responsible for letting each worker
//stride over the logical cells with step gridSize.
func runGrid(gridSize int, kernel func(first, limit int)) {
	if gridSize%GroupSize != 0 {
		log.Panicf("grid size %d is not a multiple of the group size %d", gridSize, GroupSize)
	}
	var wg sync.WaitGroup
	for first := 0; first < gridSize; first += GroupSize {
		limit := first + GroupSize
		if limit > gridSize {
			limit = gridSize
		}
		wg.Add(1)
		go func(first, limit int) {
			defer wg.Done()
			kernel(first, limit)
		}(first, limit)
	}
	wg.Wait()
}

//atomicMinFloat64 lowers the float64 stored as a bit pattern in *p to v.
//There is no native atomic float minimum, so it loops on compare-and-swap.
func atomicMinFloat64(p *uint64, v float64) {
	for {
		old := atomic.LoadUint64(p)
		if math.Float64frombits(old) <= v {
			return
		}
		if atomic.CompareAndSwapUint64(p, old, math.Float64bits(v)) {
			return
		}
	}
}

//atomicMaxFloat64 raises the float64 stored as a bit pattern in *p to v.
func atomicMaxFloat64(p *uint64, v float64) {
	for {
		old := atomic.LoadUint64(p)
		if math.Float64frombits(old) >= v {
			return
		}
		if atomic.CompareAndSwapUint64(p, old, math.Float64bits(v)) {
			return
		}
	}
}

//HandleError interrupts the execution in the case of an error.
func HandleError(err error) {
	if err != nil {
		log.Panic(err)
	}
}
