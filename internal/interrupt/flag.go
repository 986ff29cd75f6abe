// Package interrupt turns process signals into a cooperative cancellation
// flag that workers peek before starting new work.
package interrupt

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
)

// Notice is printed once when the first signal arrives.
const Notice = "Interrupt received, finishing in-flight conversions..."

// Flag is a set-once cancellation flag. The zero value is unset.
type Flag struct {
	set      atomic.Bool
	initOnce sync.Once
	done     chan struct{}
}

func (f *Flag) init() {
	f.initOnce.Do(func() { f.done = make(chan struct{}) })
}

// Set marks the flag. Calling it again has no effect.
func (f *Flag) Set() {
	f.init()
	if f.set.CompareAndSwap(false, true) {
		close(f.done)
	}
}

// Done returns a channel that is closed when the flag is set, for callers
// that wait rather than peek.
func (f *Flag) Done() <-chan struct{} {
	f.init()
	return f.done
}

// IsSet reports whether the flag has been set. It never blocks.
func (f *Flag) IsSet() bool {
	return f.set.Load()
}

// Watch sets flag and writes Notice to out when one of signals is delivered.
// With no signals it watches SIGINT and SIGTERM. Later signals are ignored
// until the returned stop function is called, which restores default
// handling.
func Watch(flag *Flag, out io.Writer, signals ...os.Signal) (stop func()) {
	if len(signals) == 0 {
		signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, signals...)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		var once sync.Once
		for {
			select {
			case <-sigChan:
				flag.Set()
				once.Do(func() {
					if out != nil {
						fmt.Fprintln(out, Notice)
					}
				})
			case <-done:
				return
			}
		}
	}()

	var stopOnce sync.Once
	return func() {
		stopOnce.Do(func() {
			signal.Stop(sigChan)
			close(done)
			wg.Wait()
		})
	}
}
