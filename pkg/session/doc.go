/*
Package session implements journey session access orchestration.

It provides high-level abstractions for handling concurrent access to
journeys across multiple replicas, integrating per-session in-process locks
with distributed locking and the transient session store adapters.
*/
package session
