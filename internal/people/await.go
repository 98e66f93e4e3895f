package people

import "github.com/roach88/profilesync/internal/model"

// Await returns a callback and a channel that receives the first Result
// passed to it. The channel is buffered, so the callback never blocks the
// transport's sender; later results are dropped.
//
//	cb, done := people.Await()
//	client.Set(ctx, "plan", "pro", cb)
//	res := <-done
func Await() (model.Callback, <-chan model.Result) {
	ch := make(chan model.Result, 1)
	return func(res model.Result) {
		select {
		case ch <- res:
		default:
		}
	}, ch
}
