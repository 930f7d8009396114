/*
Package domain contains the core domain models for the consent journey.

It defines the journey's stage machine, the session aggregate, and the
closed record types mapped from external protocol payloads. This package is
kept pure and free of external dependencies like I/O or persistence,
following Hexagonal Architecture principles.

# Key Entities

  - Stage: A named position in the journey's fixed state machine order.
  - JourneySession: The runtime snapshot of one consent-and-linking journey.
  - ErrorInfo: A classified, retryable failure surfaced to the presentation layer.
  - FIPOption / DiscoveredAccount / LinkedAccount / ConsentDetail: typed
    records mapped from the regulated-protocol client's payloads.
*/
package domain
