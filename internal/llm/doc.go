// Package llm resolves the settings an outbound model client needs from the
// configuration store. It does not implement the client itself.
package llm
