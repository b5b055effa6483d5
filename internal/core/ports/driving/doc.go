// Package driving defines the interfaces through which the outside world
// drives the core (primary/inbound ports). The CLI adapter consumes these.
package driving
