package gsl

import (
	"math"
	"sync"
	"testing"
)

func TestQueueRunsTasksInOrder(t *testing.T) {
	queue := NewQueue()
	defer queue.Close()

	var trace []int
	for i := 0; i < 16; i++ {
		i := i
		queue.Submit(func() { trace = append(trace, i) })
	}
	queue.Sync()

	if len(trace) != 16 {
		t.Fatalf("all 16 tasks should have run, got %d", len(trace))
	}
	for i, got := range trace {
		if got != i {
			t.Fatalf("tasks should run in submission order, position %d saw %d", i, got)
		}
	}
}

func TestQueueSyncReusable(t *testing.T) {
	queue := NewQueue()
	defer queue.Close()

	counter := 0
	queue.Submit(func() { counter++ })
	queue.Sync()
	queue.Submit(func() { counter++ })
	queue.Sync()

	if counter != 2 {
		t.Errorf("both submissions should have completed, got %d", counter)
	}
}

func TestGridFor(t *testing.T) {
	if g := gridFor(1); g != GroupSize {
		t.Errorf("one cell should still occupy a whole group, got %d", g)
	}
	if g := gridFor(GroupSize + 1); g != 2*GroupSize {
		t.Errorf("a partial group rounds up, got %d", g)
	}
	if g := gridFor(maxGridWorkers * 3); g != maxGridWorkers {
		t.Errorf("the grid is capped at the worker ceiling, got %d", g)
	}
}

func TestAtomicFloatExtrema(t *testing.T) {
	minBits := math.Float64bits(math.MaxFloat64)
	maxBits := math.Float64bits(-math.MaxFloat64)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				v := float64(g*1000+i) - 4000
				atomicMinFloat64(&minBits, v)
				atomicMaxFloat64(&maxBits, v)
			}
		}(g)
	}
	wg.Wait()

	if got := math.Float64frombits(minBits); got != -4000 {
		t.Errorf("the concurrent minimum should be -4000, got %v", got)
	}
	if got := math.Float64frombits(maxBits); got != 3999 {
		t.Errorf("the concurrent maximum should be 3999, got %v", got)
	}
}
