package master

import "context"

// mergeInject fans real and a caller-writable inject channel into one
// merged channel, so node-failure handling can complete an in-flight
// fan-in counter (spec §4.5, point 3) without the gather goroutine ever
// needing to know replies can come from two sources. The merge worker
// exits when ctx is done — it is expected to live no longer than the
// phase round it backs, which shares that phase's context.
func mergeInject[T any](ctx context.Context, real <-chan T) (merged <-chan T, inject chan<- T) {
	out := make(chan T)
	in := make(chan T, 16)
	go func() {
		defer close(out)
		remaining := real
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-remaining:
				if !ok {
					remaining = nil
					continue
				}
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			case v := <-in:
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, in
}
