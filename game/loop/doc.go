// Package loop provides the single logical thread the room server runs on.
//
// Transport goroutines never touch game state directly. They Post closures
// onto a Loop, and the Loop executes them one after another in Run. Timers
// created through AfterFunc and Every also deliver their callbacks through
// the same queue, so room logic, timer callbacks and inbound messages never
// interleave and no locking is needed inside the game packages.
//
// Stopping a timer is idempotent. A callback whose timer was stopped is
// skipped even if its tick had already been queued, which is what lets a
// room cancel all of its timers and be dropped without a late callback
// touching it.
//
// The looptest subpackage offers a manually driven Scheduler for tests.
package loop
