// Package event provides the Event Aggregator, a typed publish/subscribe bus
// that lets Presenters and Views talk without holding references to each other.
//
// Subscriptions are keyed by the runtime type of the message:
//
//	type OrderPlaced struct{ ID string }
//
//	agg := event.New()
//	tok, _ := event.Subscribe(agg, func(ctx context.Context, m OrderPlaced) error {
//		fmt.Println("placed", m.ID)
//		return nil
//	})
//	defer tok.Dispose()
//
//	_ = event.Publish(ctx, agg, OrderPlaced{ID: "42"})
//
// # Lifetimes
//
// Subscribe holds its handler strongly; the returned Token releases it.
// SubscribeWeak holds the owner through a weak pointer so the owner's lifetime,
// not the aggregator's, decides when delivery stops. A collected owner is never
// invoked and its subscription is dropped the next time its message type is
// published. Handlers passed to SubscribeWeak receive the owner as an argument
// and must not capture it, or the owner is never collected.
//
// A Scope groups fire-and-forget subscriptions. Closing the scope kills them
// all; Sweep and StartSweeper drop dead subscriptions across every type.
//
// # Execution contexts
//
// A subscription may require a schedule.Scheduler. Publish runs the handler
// inline when the publisher is already on that scheduler and posts it there
// otherwise. Posting never waits for the handler to run.
//
// # Failures
//
// A handler error or panic is reported to the error handler and logger as a
// *HandlerError or *PanicError, and delivery continues with the next
// subscriber. Publish returns the joined inline failures.
//
// # Concurrency
//
// Each message type keeps an immutable subscriber slice that writers replace.
// Publish iterates a snapshot, so Subscribe and Dispose never disturb an
// in-flight delivery. Disposing a token stops every delivery that has not
// started; an invocation already running finishes normally.
package event
