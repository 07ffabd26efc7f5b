//go:build !unix

package cipherio

import "os"

// Advisory locking is only implemented on unix-like systems. Other
// platforms rely on the single-process access pattern.
func lockFile(*os.File) error { return nil }

func unlockFile(*os.File) {}
