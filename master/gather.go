package master

import (
	"context"

	"github.com/joeycumines/go-longpoll"

	"github.com/ndbcluster/backupcoord/nodeloop"
)

// gather collects exactly want replies from ch — or fewer, if ch closes
// first (the channel mergeInject returns closes only once ctx is done;
// a dead node's slot is filled by a reply sent through currentInject
// instead) — on a dedicated goroutine, per spec
// §5's "the master does not progress to the next phase until every
// expected reply is in". Only this blocking collect runs off the node
// loop; onDone is submitted back onto loop so the rest of the phase
// transition stays confined to the coordinator's own block.
func gather[T any](loop *nodeloop.Loop, ctx context.Context, ch <-chan T, want int, onDone func([]T)) {
	go func() {
		replies := make([]T, 0, want)
		_ = longpoll.Channel(ctx, &longpoll.ChannelConfig{
			MinSize:        want,
			MaxSize:        want,
			PartialTimeout: -1, // no partial timeout: spec §5 disallows progressing early
		}, ch, func(v T) error {
			replies = append(replies, v)
			return nil
		})
		_ = loop.Submit(func() { onDone(replies) })
	}()
}
