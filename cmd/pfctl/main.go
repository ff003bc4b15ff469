// Command pfctl is the operator CLI of the portfolio engine.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(openSession).Execute(); err != nil {
		os.Exit(1)
	}
}
