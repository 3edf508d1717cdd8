// Package main is the entry point for the vaultcrypt CLI boundary (§6):
// a thin consumer of internal/apistate, not a reimplementation of it.
package main

import "os"

func main() {
	os.Exit(run(os.Args[1:]))
}
