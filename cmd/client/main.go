package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/mikekulinski/collab/pkg/client"
	"github.com/mikekulinski/collab/pkg/entity"
	"github.com/mikekulinski/collab/pkg/session"
	"github.com/mikekulinski/collab/pkg/transport"
	"github.com/spf13/cobra"
)

type clientFlags struct {
	addr      string
	transport string
	name      string
	id        uint32
	muted     bool
	interval  time.Duration
	duration  time.Duration
}

func main() {
	var f clientFlags
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Join a collaborative session and edit its tree",
		Long: `Join a session, publish this user's entity under the root of the shared tree and bump
a counter on it until interrupted.

Examples:
  client --addr=localhost:8080 --name=ada --id=1
  client --transport=ws --addr=ws://localhost:8081/session --name=bob --id=2 --duration=30s`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if f.duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, f.duration)
				defer cancel()
			}
			return run(ctx, f)
		},
	}
	cmd.Flags().StringVar(&f.addr, "addr", "localhost:8080", "Session address, a host:port for grpc or a url for ws")
	cmd.Flags().StringVar(&f.transport, "transport", "grpc", "Transport to reach the session with: grpc or ws")
	cmd.Flags().StringVar(&f.name, "name", "guest", "User name")
	cmd.Flags().Uint32Var(&f.id, "id", 1, "User id, unique within the session")
	cmd.Flags().BoolVar(&f.muted, "muted", false, "Join muted")
	cmd.Flags().DurationVar(&f.interval, "interval", time.Second, "Time between two counter updates")
	cmd.Flags().DurationVar(&f.duration, "duration", 0, "Leave after this long, zero to stay until interrupted")
	cmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	if err := cmd.Execute(); err != nil {
		glog.Errorf("client: %v", err)
		glog.Flush()
		os.Exit(1)
	}
	glog.Flush()
}

func run(ctx context.Context, f clientFlags) error {
	var dial transport.DialFunc
	switch f.transport {
	case "grpc":
		dial = transport.DialGRPC(f.addr)
	case "ws":
		dial = transport.DialWebsocket(f.addr, nil)
	default:
		return fmt.Errorf("unknown transport %q", f.transport)
	}

	m := transport.NewManager()
	defer m.Close()
	c := client.New(m, client.Config{User: session.User{Name: f.name, ID: f.id, Muted: f.muted}})

	joined := make(chan bool, 1)
	left := make(chan struct{}, 1)
	c.RegisterListener(&client.ListenerFuncs{
		Joined: func(_ *client.Client, ok bool) {
			joined <- ok
		},
		Left: func(*client.Client) {
			left <- struct{}{}
		},
	})
	if err := c.Connect(ctx, dial); err != nil {
		return err
	}

	// The client is driven from this goroutine only, so Run is not used.
	ticker := time.NewTicker(session.DefaultTickInterval)
	defer ticker.Stop()
	var (
		me      *entity.Entity
		counter int32
		next    time.Time
	)
	for {
		c.Update()
		select {
		case ok := <-joined:
			if !ok {
				return errors.New("could not join the session")
			}
			var err error
			if me, err = publish(c, f); err != nil {
				return err
			}
			glog.Infof("joined as %s (%d)", f.name, f.id)
		case <-left:
			return errors.New("lost the session")
		case <-ctx.Done():
			c.Disconnect()
			return nil
		case now := <-ticker.C:
			if me == nil || now.Before(next) {
				continue
			}
			next = now.Add(f.interval)
			counter++
			if err := me.SetInt("counter", counter); err != nil {
				return err
			}
			glog.V(1).Infof("tree has %d elements, counter is %d", c.Tree().Len(), counter)
		}
	}
}

// publish creates the entity describing this user.
func publish(c *client.Client, f clientFlags) (*entity.Entity, error) {
	root := entity.New(c.Tree().Root())
	me, err := root.AddChild(fmt.Sprintf("user%d", f.id))
	if err != nil {
		return nil, err
	}
	if err := me.SetString("name", f.name); err != nil {
		return nil, err
	}
	if err := me.SetInt("counter", 0); err != nil {
		return nil, err
	}
	return me, nil
}
