package model

import (
	"runtime"
	"sync"
)

type windowTask struct {
	fn  func(int)
	idx int
	wg  *sync.WaitGroup
}

// windowPool fans independent per-window attention computations out over
// a fixed set of workers. Windows carry no ordering constraints, so
// completion order is irrelevant.
type windowPool struct {
	size  int
	tasks chan windowTask
}

var (
	winPool     *windowPool
	winPoolOnce sync.Once
)

func getWindowPool() *windowPool {
	winPoolOnce.Do(func() {
		size := runtime.GOMAXPROCS(0)
		if size < 1 {
			size = 1
		}
		p := &windowPool{
			size:  size,
			tasks: make(chan windowTask, size*2),
		}
		for i := 0; i < size; i++ {
			go func() {
				for t := range p.tasks {
					t.fn(t.idx)
					t.wg.Done()
				}
			}()
		}
		winPool = p
	})
	return winPool
}

// forEach runs fn for every index in [0, n) across the pool and waits
// for all of them.
func (p *windowPool) forEach(n int, fn func(int)) {
	if n <= 0 {
		return
	}
	if n == 1 {
		fn(0)
		return
	}
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		p.tasks <- windowTask{fn: fn, idx: i, wg: &wg}
	}
	wg.Wait()
}
