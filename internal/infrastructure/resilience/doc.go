/*
Package resilience provides the reconnect backoff policy for the bridge.

# Overview

The HTTP transport retries a failed handshake after a delay that doubles with
every consecutive failure and is capped:

	delay(attempt) = min(1000ms * 2^attempt, 20000ms)

The attempt counter belongs to one connect loop and starts at 0 for every
fresh top-level connect.

# Usage

	b := resilience.DefaultBackoff()
	timer := time.NewTimer(b.Delay(attempt))
*/
package resilience
