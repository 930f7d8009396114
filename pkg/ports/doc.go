/*
Package ports defines the driven ports (interfaces) for the journey orchestrator.

These interfaces decouple the core logic from external implementations,
allowing the orchestrator to work with different AA gateway clients,
session stores, and locking backends.

# Key Interfaces

  - AAClient: The regulated Account Aggregator protocol client, consumed as a black box.
  - SessionStore: Transient storage for live journey sessions.
  - DistributedLocker: Serializes a journey's events across orchestrator replicas.
*/
package ports
