//go:build !linux

package spill

import "os"

// adviseSequential is a no-op outside Linux; readahead hints are purely
// an optimization, never required for correctness.
func adviseSequential(f *os.File) {}
