// Package health provides composable probes and the liveness/readiness
// handlers served on the ops listener.
//
// Probes combine with [All] (AND), [Any] (OR) and [Named]. [ShutdownGate]
// flips readiness to failing at the start of shutdown so load balancers stop
// routing before the listeners close.
//
// These probes are operational. The public /health route is a constant
// payload and never consults them.
package health
