// Command farmgraph operates a farm record store: it seeds the predicate
// vocabulary, completes logs and queries, exports or projects the facts
// they produce.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "farmgraph:", err)
		os.Exit(1)
	}
}
