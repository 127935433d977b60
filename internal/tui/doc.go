// Package tui provides terminal triggers and a UI scheduler on tcell.
//
// Button is a binder.Trigger with a label and an optional shortcut key.
// Scheduler is a schedule.Scheduler that runs posted work on the goroutine
// polling a tcell screen: work travels as an EventInterrupt and the poll loop
// hands every event to Scheduler.Handle.
//
//	sched := tui.NewScheduler(screen)
//	for {
//		ev := screen.PollEvent()
//		if sched.Handle(ctx, ev) {
//			continue
//		}
//		...
//	}
package tui
