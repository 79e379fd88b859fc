// The main package for the brickscout executable.
package main

import (
	"github.com/brickscout/brickscout/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
