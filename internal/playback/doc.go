// Package playback drives timed, axis-aware playback of a volume viewer.
//
// A [Controller] repeatedly invokes a caller-supplied step function along one
// [Axis] at a fixed cadence. It suspends itself when the data needed for the
// next step is not resident and resumes on [Controller.DataLoaded]. User
// interaction such as dragging a slider takes a hold with
// [Controller.StartHold] and gives it back with [Controller.EndHold]; a hold
// on the playing axis pauses without signalling a stop.
//
// States:
//
//   - Stopped: nothing playing (initial, re-enterable)
//   - Playing: an axis is set and a step timer is armed
//   - WaitingForLoad: the oracle reported the next step's data missing
//   - Held: a hold is active and no timer is armed
//
// # Example
//
//	loop := clock.NewLoop(64)
//	ctrl := playback.New(loop, 0,
//		playback.WithStep(cursor.Advance),
//		playback.WithDataReady(loader.NextReady),
//	)
//	loop.Post(func() { ctrl.Play(playback.T) })
//	loop.Run(ctx)
//
// # Thread Safety
//
// Controller instances are NOT safe for concurrent use. Every method and
// every timer callback must run on one goroutine; [clock.Loop] and the
// terminal UI's event loop both provide that.
package playback
