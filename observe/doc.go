// Package observe provides observability primitives for the offline cache
// controller.
//
// It is a pure instrumentation library: spans and metrics per fetch and per
// lifecycle event, and a JSON structured logger. The controller consumes it
// through Middleware.
package observe
