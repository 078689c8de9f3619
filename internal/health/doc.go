// Package health provides composable probes and the handlers behind
// /-/healthy and /-/ready.
//
// [ShutdownGate] fails readiness as soon as drain starts so the load
// balancer stops routing before in-flight requests finish.
package health
