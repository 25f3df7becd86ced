// Package schedule provides the single serialized stream on which all shared
// console state is mutated.
//
// Connection handlers, timers and external I/O completions never touch state
// directly: they submit tasks with Do or After and the Loop runs those tasks one at
// a time, in submission order. Delayed tasks are never cancelled; once scheduled
// they always run unless the loop itself has been stopped.
package schedule
