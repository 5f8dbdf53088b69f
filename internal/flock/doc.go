// Package flock provides advisory lock files that keep two processes from
// writing the same index directory.
//
// On unix the lock is flock(2) on the lock file and is released by the kernel
// if the process dies. Elsewhere the lock is the exclusive creation of the
// file, which a crashed process leaves behind.
package flock
