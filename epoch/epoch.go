package epoch

import (
	"context"
	"time"
)

// Epoch runs f once for every true received on its channel. A false
// ends the routine.
type Epoch struct {
	f    func()
	c    chan bool
	done chan struct{}
}

func NewEpoch(f func()) *Epoch {
	return &Epoch{
		f:    f,
		c:    make(chan bool),
		done: make(chan struct{}),
	}
}

func (e *Epoch) C() chan<- bool {
	return e.c
}

func (e *Epoch) Done() <-chan struct{} {
	return e.done
}

func (e *Epoch) StartEpochRoutine() {
	defer close(e.done)
	for flg := range e.c {
		if !flg {
			return
		}
		e.f()
	}
}

// Drive triggers the routine right away and then every interval until
// ctx is done, at which point the routine is stopped. Ticks that arrive
// while f is still running are dropped.
func (e *Epoch) Drive(ctx context.Context, interval time.Duration) {
	go e.StartEpochRoutine()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.c <- false
			<-e.done
			return
		case e.c <- true:
		}

		select {
		case <-ctx.Done():
			e.c <- false
			<-e.done
			return
		case <-ticker.C:
		}
	}
}
