// Package events decouples work submission from the task runner.
//
// A submitter emits a TaskRequestEvent describing the work it wants done and
// the emitter dispatches it to every registered EventHandler. The task package
// registers a handler that turns fetch_and_store events into queued tasks, so
// the service layer never imports the runner directly.
package events
