//go:build windows

package osproc

// New returns the platform's concrete Collaborator.
func New() Collaborator { return Windows{} }
