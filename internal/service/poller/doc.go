// Package poller follows a deploy request until the platform reports it done
// or the attempt budget runs out.
//
// The decision logic lives in Transition, a pure function over State; the
// Poller only fetches, waits on an injected clock, and hands finished jobs
// to a Reporter.
package poller
