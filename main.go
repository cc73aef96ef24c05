package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"clothdna/signalhandler"
)

func main() {
	runtime.GOMAXPROCS(signalhandler.GetOptimalProcs())

	ctx, stop := signalhandler.SetupHandler(context.Background())
	defer stop()

	cmd := newRootCommand()
	err := cmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		switch {
		case errors.Is(err, errNotAuthentic):
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		case errors.Is(err, context.Canceled):
			os.Exit(130)
		default:
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
	}
}
