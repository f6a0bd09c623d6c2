// Package api exposes the resolver registry over HTTP so that an
// attestation registry or an operator can drive lifecycle hooks and
// administrative calls.
package api
