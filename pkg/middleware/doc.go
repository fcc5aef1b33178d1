// Package middleware authenticates HTTP requests and installs the resolved
// principal context for downstream handlers.
package middleware
