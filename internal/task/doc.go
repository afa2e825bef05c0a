// Package task runs fetch-and-store work in the background.
//
// A TaskRunner persists each submitted Task to a TaskStore, places it on a
// bounded TaskQueue and lets a WorkerPool execute it. Callers get the task ID
// back immediately and can later ask for the terminal Outcome. Unfinished
// tasks are recovered from the store on start, and tasks stuck in processing
// are periodically requeued.
package task
