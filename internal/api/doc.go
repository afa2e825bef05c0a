// Package api handles incoming HTTP requests, routing, request validation,
// and response formatting. It acts as an adapter between HTTP clients and the
// fetch service, translating HTTP concerns to service operations and service
// errors back to status codes.
package api
