package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/five82/tabtime/internal/app"
	"github.com/five82/tabtime/internal/tracker"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "override tabtime config path (optional)")
	apiBind := flag.String("api", "", "background process address (optional, overrides api_bind)")
	view := flag.String("view", "", "initial view: focus or usage (optional, defaults to the last view)")
	emit := flag.String("emit", "", "publish a push event of this kind to the event bus and exit")
	payload := flag.String("payload", "", "JSON payload for -emit")
	flag.Parse()

	opts := app.Options{
		ConfigPath: *configPath,
		APIBind:    *apiBind,
		View:       *view,
	}

	if kind := *emit; kind != "" {
		id, err := app.Emit(opts, tracker.PushKind(kind), []byte(*payload))
		if err != nil {
			fmt.Fprintf(os.Stderr, "tabtime: %v\n", err)
			return 1
		}
		fmt.Println(id)
		return 0
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "tabtime: %v\n", err)
		return 1
	}
	return 0
}
