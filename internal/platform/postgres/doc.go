// Package postgres persists fetch-and-store tasks in PostgreSQL so queued
// work survives a restart. It opens connections through the pgx stdlib
// driver, applies the embedded goose migrations and maps driver errors onto
// the sentinel errors of the store package.
package postgres
