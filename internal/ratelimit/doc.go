// Package ratelimit is per-IP token bucket middleware for the public API.
//
// State is in memory and local to one process. It blunts a single client
// hammering the catalog and gives visibility into who is doing it; it does
// nothing against distributed floods, which belong upstream.
package ratelimit
