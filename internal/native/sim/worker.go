package sim

import (
	"runtime"
	"sync"

	"ctpbridge/internal/native"
)

// worker is one engine-owned callback thread. Tasks run in the order they
// were posted. Posting never blocks, so a handler running on a worker may
// issue further requests.
type worker struct {
	id   int
	mu   sync.Mutex
	cond *sync.Cond
	jobs []func()
	done bool
	tid  int
}

func newWorker(id int) *worker {
	w := &worker{id: id}
	w.cond = sync.NewCond(&w.mu)
	return w
}

func (w *worker) post(job func()) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return false
	}
	w.jobs = append(w.jobs, job)
	w.cond.Signal()
	return true
}

// stop lets the worker finish its queue and exit.
func (w *worker) stop() {
	w.mu.Lock()
	w.done = true
	w.cond.Broadcast()
	w.mu.Unlock()
}

func (w *worker) run(wg *sync.WaitGroup, exit func()) {
	defer wg.Done()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if exit != nil {
		defer exit()
	}

	w.mu.Lock()
	w.tid = native.ThreadID()
	w.mu.Unlock()

	for {
		w.mu.Lock()
		for len(w.jobs) == 0 && !w.done {
			w.cond.Wait()
		}
		if len(w.jobs) == 0 {
			w.mu.Unlock()
			return
		}
		job := w.jobs[0]
		w.jobs[0] = nil
		w.jobs = w.jobs[1:]
		w.mu.Unlock()

		job()
	}
}
