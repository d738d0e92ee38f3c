package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/tableside/internal/client"
	"github.com/wolfeidau/tableside/internal/logger"
	"github.com/wolfeidau/tableside/internal/order"
	"github.com/wolfeidau/tableside/internal/realtime"
)

type WatchCmd struct {
	Groups       []string      `help:"Extra groups to join, for example kitchen:<tenant-id>"`
	PollInterval time.Duration `help:"How often to refresh active orders while the stream is down" default:"15s"`
	JSON         bool          `help:"Print raw frames as JSON"`
}

func (w *WatchCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	c, err := globals.newClient()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("Watching orders (press Ctrl+C to stop)...")

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = w.PollInterval

	for {
		connected := time.Now()
		err := c.Watch(ctx, w.Groups, w.printFrame)
		if ctx.Err() != nil {
			return nil
		}
		if time.Since(connected) > w.PollInterval {
			bo.Reset()
		}

		// events published while disconnected are lost, so resync by polling
		wait := bo.NextBackOff()
		log.Warn().Err(err).Dur("retry_in", wait).Msg("realtime stream disconnected, polling")
		w.poll(ctx, log, c)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (w *WatchCmd) printFrame(frame realtime.ServerFrame) {
	if w.JSON {
		data, err := json.Marshal(frame)
		if err == nil {
			fmt.Println(string(data))
		}
		return
	}

	ts := time.Now().Format("15:04:05")
	switch frame.Type {
	case "joined", "left":
		fmt.Printf("[%s] %s %s\n", ts, frame.Type, frame.Group)
	case "error":
		fmt.Printf("[%s] error: %s\n", ts, frame.Error)
	case "event":
		if frame.Event == nil {
			return
		}
		data, _ := json.Marshal(frame.Event.Data)
		fmt.Printf("[%s] %-22s %s\n", ts, frame.Event.Type, data)
	}
}

func (w *WatchCmd) poll(ctx context.Context, log zerolog.Logger, c *client.Client) {
	page, err := c.ListOrders(ctx, order.ListFilter{Take: 20})
	if err != nil {
		log.Warn().Err(err).Msg("failed to poll orders")
		return
	}
	fmt.Printf("Orders (polled at %s)\n", time.Now().Format("15:04:05"))
	printOrders(page.Orders)
}
