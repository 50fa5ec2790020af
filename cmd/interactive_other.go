//go:build !windows

package main

// enableVT is a no-op outside Windows; ANSI sequences work as is.
func enableVT() {}
