// Package ar7 implements an encrypted single-file archive with random
// access to its contents.
//
// An archive is an ordinary file on disk whose every byte is encrypted
// with XChaCha20-Poly1305 in fixed-size blocks, so nothing about the
// directory tree, file names, or payload sizes leaks to an observer.
// Inside the encrypted container lives a small filesystem: directories,
// files, and links addressed by Unix-style absolute paths. Files carry a
// SHA-1 digest and may be stored compressed.
//
// Create a new archive with Setup and reopen an existing one with Open.
// Both take the 32-byte secret the block cipher key is derived from.
//
//	a, err := ar7.Setup("backup.a7", secret)
//	if err != nil {
//		return err
//	}
//	defer a.Close()
//
//	if _, err := a.Mkdir("/docs"); err != nil {
//		return err
//	}
//	if _, err := a.Mkfile("/docs/note.txt", data); err != nil {
//		return err
//	}
//
// Deleted file space is reclaimed lazily; Vacuum rewrites the archive to
// its minimal size. Two archives holding the same logical tree can be
// reconciled with a Replicator.
//
// An Archive is safe for concurrent use by multiple goroutines. The
// archive file itself is held under an exclusive lock, so only one
// process can have it open at a time.
package ar7
