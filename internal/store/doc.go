// Package store holds the persistence primitives shared by database-backed
// stores: the DBTX abstraction over connections and transactions, and the
// sentinel errors they map driver failures to.
package store
