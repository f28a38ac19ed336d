// Package http exposes the Spot services over a chi router mounted at /api.
//
// Handlers decode requests, call one application service and map the result
// through a shared responder, so every failure body has the shape
// {"message", "errors"}. Authentication is optional at the router level:
// Authenticate attaches a principal when a valid bearer token is present and
// RequireAuth or RequireRole guard the routes that need one. The refresh
// token travels only in the refreshToken cookie.
//
// DTOs live in dto.go and alongside the handlers that own them.
package http
