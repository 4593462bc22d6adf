//go:build linux

package osproc

// New returns the platform's concrete Collaborator.
func New() Collaborator { return Unix{} }
