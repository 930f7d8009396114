/*
Package observability provides monitoring for the journey orchestrator.

It exposes Prometheus collectors for journey lifecycle, stage transitions,
classified errors, and AA gateway call latency, plus a LifecycleHooks
factory that feeds them from the controller's events.
*/
package observability
