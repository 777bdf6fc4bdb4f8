// Command devclipctl is the operator CLI: migrations, account maintenance
// and admin credentials.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
