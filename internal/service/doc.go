// Package service contains the application use cases that sit between the
// HTTP layer and the task runner.
//
// FetchService turns a submitted image URL into a task request event, which
// the task package's event handler converts into a FetchAndStoreTask and
// queues. Status lookups go to the runner first and fall back to the task
// store, so tasks finished before a restart can still be reported when a
// persistent store is configured.
//
// The service depends on small interfaces rather than concrete runner or
// store types. The API layer maps the sentinel errors declared here onto HTTP
// status codes.
package service
