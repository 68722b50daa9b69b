package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/docintake/docintake/core/infra/buildinfo"
	"github.com/docintake/docintake/core/infra/bus"
)

// runEventsCmd follows config changes made by other processes, keeping a
// warm resolver cache and serving metrics until interrupted.
func runEventsCmd(args []string, out io.Writer) error {
	fs := newFlagSet("events")
	return withApp(fs, args, func(ctx context.Context, a *app) error {
		if a.bus == nil {
			return errors.New("events need NATS_URL")
		}
		buildinfo.Log("docintakectl")
		ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		a.serveMetrics(ctx)

		if _, err := a.resolver.Snapshot(ctx); err != nil {
			return err
		}
		if err := a.bus.InvalidateOnChange(a.resolver); err != nil {
			return err
		}
		if err := a.bus.Subscribe(func(ev bus.Event) {
			_ = printJSON(out, ev)
		}); err != nil {
			return err
		}
		<-ctx.Done()
		return nil
	})
}

func runVersionCmd(out io.Writer) error {
	_, err := fmt.Fprintln(out, "docintakectl", buildinfo.Info())
	return err
}
