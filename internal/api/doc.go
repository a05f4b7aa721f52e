// Package api exposes the HTTP surface of the service. Handlers read the
// configuration store on every request, so reloaded values show up without a restart.
package api
