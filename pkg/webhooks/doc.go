// Package webhooks implements the webhook registry and delivery engine.
//
// A Hook registers a URL to be POSTed when a gem publishes a new version.
// Hooks address either a single gem or every gem via the reserved "*"
// pattern; the (owner, target, url) triple is unique. Delivery is a single
// synchronous, timeout-bounded POST classified by response status: any 2xx
// is delivered, everything else (including transport errors) is failed.
// Publish events fan out to all matching hooks concurrently with
// per-delivery failure isolation; there are no retries.
package webhooks
