package notify

import (
	"context"
	"fmt"
	"log"
)

// Daemon connects the watcher to one or more platform adapters and
// forwards formatted events until the context is cancelled.
type Daemon struct {
	watcher  *Watcher
	adapters []Adapter
}

// DaemonOpts holds parameters for creating a Daemon.
type DaemonOpts struct {
	Watcher  *Watcher
	Adapters []Adapter
}

// NewDaemon creates a Daemon.
func NewDaemon(opts DaemonOpts) (*Daemon, error) {
	if opts.Watcher == nil {
		return nil, fmt.Errorf("notify: daemon: watcher is required")
	}
	if len(opts.Adapters) == 0 {
		return nil, fmt.Errorf("notify: daemon: at least one adapter is required")
	}
	return &Daemon{watcher: opts.Watcher, adapters: opts.Adapters}, nil
}

// Run connects the adapters, then consumes watcher events and delivers
// them until the context is cancelled. Delivery failures are logged and
// do not stop the loop.
func (d *Daemon) Run(ctx context.Context) error {
	for _, a := range d.adapters {
		if err := a.Connect(ctx); err != nil {
			return fmt.Errorf("notify: daemon: connect adapter: %w", err)
		}
	}
	defer func() {
		for _, a := range d.adapters {
			if err := a.Close(); err != nil {
				log.Printf("notify: close adapter: %v", err)
			}
		}
	}()

	events := d.watcher.Run(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			d.deliver(ctx, event)
		}
	}
}

func (d *Daemon) deliver(ctx context.Context, event DetectedEvent) {
	msg := OutboundMessage{Events: []FormattedEvent{FormatEvent(event)}}
	for _, a := range d.adapters {
		if err := a.Send(ctx, msg); err != nil {
			log.Printf("notify: deliver %s event: %v", event.Type, err)
		}
	}
}
