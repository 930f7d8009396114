/*
Package consentflow orchestrates the Account Aggregator consent-and-linking
journey: login, OTP verification, institution selection, account discovery,
account linking, and the final consent decision against an AA gateway.

The journey is a strictly ordered state machine. Each session belongs to one
consent handle and moves forward one stage at a time; a protocol failure pins
the session at its current stage with a classified error instead of moving it
backward or surfacing a Go error. Returned errors signal caller misuse (wrong
stage, unknown journey), never expected protocol outcomes.

# Architecture

The package follows a hexagonal layout. The Controller facade drives a pure
transition engine and talks to two ports: an AAClient (the gateway protocol
adapter) and a SessionStore (ephemeral session persistence). Adapters for
both live under pkg/adapters; swap them without touching the journey logic.

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/kitewire/consentflow"
		"github.com/kitewire/consentflow/pkg/adapters/aahttp"
	)

	func main() {
		client := aahttp.NewClient("https://aa-gateway.example.com")

		ctrl, err := consentflow.New(client)
		if err != nil {
			log.Fatal(err)
		}

		ctx := context.Background()
		s, err := ctrl.StartJourney(ctx, "handle-123")
		if err != nil {
			log.Fatal(err)
		}

		// Drive the journey with user intents; render s after each call.
		s, err = ctrl.SubmitCredentials(ctx, "handle-123", "ravi", "9999999999")
		if err != nil {
			log.Fatal(err)
		}
		if s.Error != nil {
			log.Printf("journey error: %s (%s)", s.Error.Message, s.Error.Kind)
		}
	}

Sessions are ephemeral. The in-memory store is the default; the Redis store
under pkg/adapters/redis bounds every session with a TTL so abandoned
journeys expire on their own.
*/
package consentflow
