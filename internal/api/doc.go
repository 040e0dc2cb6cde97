// Package api contains the HTTP handlers, request/response models, and
// error mapping for the gateway's public surface. Handlers validate and
// decode requests, delegate to the service layer, and translate service
// errors into sanitized HTTP responses.
package api
