// Package process owns child processes spawned by wasmrun.
//
// A Guard holds at most one running child and guarantees it is killed and
// reaped when the guard is closed, whatever the exit path of its owner. A
// Group tracks every live guard so the dev loop can kill all of them before
// returning.
package process
