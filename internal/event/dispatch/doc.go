// Package dispatch runs message handlers with failure isolation.
//
// The aggregator passes every subscriber invocation through an Executor. The
// Result says whether the handler was delivered to, failed, panicked or was
// skipped because the context was already done; a recovered panic keeps its
// value and stack.
//
//	exec := dispatch.NewExecutor(dispatch.OnPanic(func(msg any, p *dispatch.Recovered) {
//	    logger.Error("subscriber panicked", "value", p.Value)
//	}))
//	if res := exec.Execute(ctx, msg, handler); !res.OK() {
//	    // report and move on to the next subscriber
//	}
package dispatch
