// Package httputil provides HTTP utilities for standardized request/response
// handling: JSON and plain-text response helpers plus common middleware
// (logging, panic recovery, request ids).
package httputil
