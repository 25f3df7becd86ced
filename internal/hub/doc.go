// Package hub owns the live console session table and is the single broadcast
// point for every event the console emits.
//
// Hub methods are not safe for concurrent use. They are called from the
// schedule.Loop, which serializes every mutation of shared console state.
package hub
