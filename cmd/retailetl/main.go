package main

import (
	"fmt"
	"os"

	"retailetl/internal/cli"

	// register every storage backend with the storage factory
	_ "retailetl/internal/storage/all"
)

func main() {
	if err := cli.Execute(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
