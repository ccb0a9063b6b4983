package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/mikekulinski/collab/pkg/metrics"
	"github.com/mikekulinski/collab/pkg/persistence"
	"github.com/mikekulinski/collab/pkg/session"
	"github.com/mikekulinski/collab/pkg/synctree"
	"github.com/mikekulinski/collab/pkg/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
)

type serverFlags struct {
	addr             string
	transport        string
	name             string
	id               uint32
	adHoc            bool
	idleTimeout      time.Duration
	handshakeTimeout time.Duration
	metricsAddr      string
	snapshotDir      string
}

func main() {
	var f serverFlags
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run a collaborative session",
		Long: `Run one collaborative session and accept participants over gRPC or websockets.

Examples:
  server --addr=:8080
  server --transport=ws --addr=:8081 --adhoc --idle-timeout=30s`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, f)
		},
	}
	cmd.Flags().StringVar(&f.addr, "addr", ":8080", "Address to accept participants on")
	cmd.Flags().StringVar(&f.transport, "transport", "grpc", "Transport to accept participants with: grpc or ws")
	cmd.Flags().StringVar(&f.name, "name", "default", "Session name")
	cmd.Flags().Uint32Var(&f.id, "id", 1, "Session id")
	cmd.Flags().BoolVar(&f.adHoc, "adhoc", false, "Stop accepting and exit once the session becomes empty")
	cmd.Flags().DurationVar(&f.idleTimeout, "idle-timeout", session.DefaultIdleTimeout, "How long the session may stay empty before it resets")
	cmd.Flags().DurationVar(&f.handshakeTimeout, "handshake-timeout", session.DefaultHandshakeTimeout, "How long a new connection may take to handshake")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "Address to serve Prometheus metrics on, empty to disable")
	cmd.Flags().StringVar(&f.snapshotDir, "snapshot-dir", "", "Directory to archive the tree to whenever the session resets, empty to disable")
	cmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	if err := cmd.Execute(); err != nil {
		glog.Errorf("server: %v", err)
		glog.Flush()
		os.Exit(1)
	}
	glog.Flush()
}

func run(ctx context.Context, f serverFlags) error {
	sessionType := session.Persistent
	if f.adHoc {
		sessionType = session.AdHoc
	}

	m := transport.NewManager()
	defer m.Close()

	var sessionMetrics *metrics.Metrics
	if f.metricsAddr != "" {
		sessionMetrics = metrics.New(metrics.WithConstLabels(prometheus.Labels{"session": f.name}))
		go serveMetrics(f.metricsAddr)
	}

	var archive func(uint32, *synctree.Tree)
	if f.snapshotDir != "" {
		snapshots, err := persistence.NewSnapshotManager(f.snapshotDir)
		if err != nil {
			return fmt.Errorf("error opening snapshot directory: %w", err)
		}
		archive = func(id uint32, tree *synctree.Tree) {
			path, err := snapshots.Write(id, tree)
			if err != nil {
				glog.Errorf("error archiving tree of session %d: %v", id, err)
				return
			}
			glog.Infof("archived %d elements of session %d to %s", tree.Len(), id, path)
		}
	}

	s := session.New(m, session.NewConfig(
		session.WithName(f.name),
		session.WithID(f.id),
		session.WithType(sessionType),
		session.WithAddress(f.addr),
		session.WithIdleTimeout(f.idleTimeout),
		session.WithHandshakeTimeout(f.handshakeTimeout),
		session.WithMetrics(sessionMetrics),
		session.WithArchive(archive),
	))
	defer s.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.RegisterListener(&session.ListenerFuncs{
		UserJoined: func(s *session.Session, u session.User) {
			glog.Infof("%s: %s (%d) joined, %d users", s.Name(), u.Name, u.ID, s.UserCount())
		},
		UserLeft: func(s *session.Session, u session.User) {
			glog.Infof("%s: %s (%d) left, %d users", s.Name(), u.Name, u.ID, s.UserCount())
		},
		SessionEmpty: func(s *session.Session) {
			if s.Type() == session.AdHoc {
				glog.Infof("%s: ad-hoc session is empty, shutting down", s.Name())
				cancel()
			}
		},
	})

	lis, err := net.Listen("tcp", f.addr)
	if err != nil {
		return fmt.Errorf("error listening on %s: %w", f.addr, err)
	}
	switch f.transport {
	case "grpc":
		gs := grpc.NewServer()
		transport.NewGRPCServer(m).Register(gs)
		go func() {
			if err := gs.Serve(lis); err != nil {
				glog.Errorf("grpc server stopped: %v", err)
			}
		}()
		defer gs.Stop()
	case "ws":
		mux := http.NewServeMux()
		mux.Handle("/session", transport.NewWebsocketHandler(m, nil))
		hs := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := hs.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				glog.Errorf("websocket server stopped: %v", err)
			}
		}()
		defer hs.Close()
	default:
		_ = lis.Close()
		return fmt.Errorf("unknown transport %q", f.transport)
	}

	glog.Infof("session %s (%d) listening on %s over %s", f.name, f.id, lis.Addr(), f.transport)
	if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	hs := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	glog.Infof("serving metrics on %s/metrics", addr)
	if err := hs.ListenAndServe(); err != nil {
		glog.Errorf("metrics server stopped: %v", err)
	}
}
