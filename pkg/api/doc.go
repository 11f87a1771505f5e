// Package api assembles the HTTP surface: the gem catalog endpoints, the
// webhook registry endpoints, and the health/metrics handler served on a
// separate port.
package api
