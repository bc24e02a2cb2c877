package blueprint

import (
	"context"
	"sync"

	"github.com/jkmaina/autogen-blueprint/internal/executor"
)

// Future resolves to the typed result of a conversation.
type Future[T any] interface {
	// can't type alias executor.Future (yet) because of the type parameter
	Get() (T, error)
}

// deferredPromise holds on to the raw completion until the run closes, then
// forwards the typed result (or error) to the hook. This keeps OnResult from
// firing while intermediate steps are still running.
type deferredPromise[T any] struct {
	promise executor.CompletableFuture[T]
	hook    Hook[T]
	mu      sync.Mutex
	value   string
	err     error
	once    sync.Once
}

func (d *deferredPromise[T]) Forward(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		// the run loop already reported this through OnError
		d.promise.Error(d.err)
		return
	}

	d.promise.Complete(d.value)
	res, err := d.promise.Get()
	if err != nil {
		d.hook.OnError(ctx, err)
		return
	}
	d.hook.OnResult(ctx, res)
}

func (d *deferredPromise[T]) Complete(result string) {
	d.once.Do(func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.value = result
	})
}

func (d *deferredPromise[T]) Error(err error) {
	d.once.Do(func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.err = err
	})
}

// noopPromise swallows completions from intermediate steps, only the final
// step of a conversation reports through the real promise.
type noopPromise struct{}

func (noopPromise) Complete(string) {}
func (noopPromise) Error(error)     {}
