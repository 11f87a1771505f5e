// Package config loads application configuration from GEMYARD_* environment
// variables. Every setting has a sane default so a bare `gemyard` invocation
// starts a working in-memory instance; production deployments set the
// postgres and redis URLs.
package config
