package main

import (
	"fmt"
	"os"
)

func main() {
	if err := (&cli{}).run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "stockctl: %v\n", err)
		os.Exit(1)
	}
}
