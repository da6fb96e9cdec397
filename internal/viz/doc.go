// Package viz provides the terminal viewer for volumetric time series.
//
// The viewer is a Bubble Tea program. Playback timers and loader
// completions are delivered as messages, so the playback controller is only
// ever touched from Update:
//
//   - [Model]: slice preview, cursor and cache status
//   - [Scheduler]: a clock.Scheduler backed by program messages
//   - Theme selection with 4 built-in color schemes
//
// # Key Bindings
//
//	Space   - Play/Pause the focused axis
//	x y z t - Play along an axis
//	Tab     - Cycle the focused axis
//	[ ]     - Scrub the focused axis (holds playback until idle)
//	c       - Cycle channel
//	T       - Cycle color themes
//	?       - Show help overlay
package viz
