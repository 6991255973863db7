package main

import (
	"fmt"
	"os"

	"github.com/Papyszoo/ImmichVR-sub001/cmd/immichvr/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
