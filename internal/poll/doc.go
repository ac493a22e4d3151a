// Package poll computes refetch intervals for live queries.
//
// The base interval follows the liveliest entity in the latest result
// (transitional < active < idle), stretched by a factor once the result grows
// past entity-count thresholds. Consecutive failures double it per failure up
// to Cap. The first failure before any data has been seen waits only
// ColdStart. Every interval gets up to Jitter added.
package poll
