package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

// main function to parse arguments and generate the presentation.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:])
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
