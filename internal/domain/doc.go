// Package domain holds the fetch request a caller submits and the outcome a
// task reports, along with the failure reasons that link the two. It has no
// dependencies on infrastructure.
package domain
