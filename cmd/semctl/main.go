// Command semctl creates, inspects and exercises the semaphores of the
// semmutex package from the shell.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
