// Package ticker provides a time-driven stream source.
//
// A Source emits one Tick per activation of a cron schedule, but only while
// its readable wants data. An activation that arrives while the readable is
// full is dropped rather than queued, so a slow consumer sees gaps instead
// of a growing backlog:
//
//	src, _ := ticker.NewSourceFromExpr(ectx, "*/5 * * * * *", ticker.DefaultConfig())
//	r, _ := stream.NewSliceReadable[ticker.Tick](ectx, src)
//	r.Events().Data.On(func(c *buffer.Slice[ticker.Tick]) {
//		for _, t := range c.Elements() {
//			fmt.Println(t)
//		}
//	})
//	r.Resume()
//
// Expressions take a leading seconds field; descriptors such as "@every 1m"
// are accepted too.
package ticker
