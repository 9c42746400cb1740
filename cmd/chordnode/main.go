// chordnode runs one ring peer: it loads configuration, opens the local
// record store, starts the RPC server and bootstraps itself into the ring.
// SIGUSR1 dumps the node's ring state; SIGINT/SIGTERM shut the server down.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/DmMeta/ChordSeek/internal/chord"
	"github.com/DmMeta/ChordSeek/internal/config"
	"github.com/DmMeta/ChordSeek/internal/logger"
	"github.com/DmMeta/ChordSeek/internal/ring"
	"github.com/DmMeta/ChordSeek/internal/store"
	"github.com/DmMeta/ChordSeek/internal/telemetry"
	"github.com/DmMeta/ChordSeek/internal/transport"
)

type Config struct {
	FTSize        int    `env:"FT_SIZE" env-default:"7" validate:"gte=1,lte=32"`
	NodeAddr      string `env:"NODE_ADDR"`
	BootstrapMode string `env:"BOOTSTRAP_MODE" env-default:"init" validate:"oneof=init join"`
	BootstrapAddr string `env:"BOOTSTRAP_ADDR"`
	TransferData  bool   `env:"TRANSFER_DATA" env-default:"true"`

	Server    transport.Config
	Store     store.Config
	Logger    logger.Config
	Telemetry telemetry.Config
}

// Validate enforces the rules a struct tag cannot express.
func (c *Config) Validate() error {
	if c.BootstrapMode == "join" && c.BootstrapAddr == "" {
		return errors.New("BOOTSTRAP_ADDR is required when BOOTSTRAP_MODE=join")
	}
	return nil
}

func main() {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lg := logger.New(cfg.Logger)

	addr := cfg.NodeAddr
	if addr == "" {
		ip, err := config.DetectIP()
		if err != nil {
			lg.Error("failed to detect node address", "error", err)
			os.Exit(1)
		}
		addr = ip + ":" + cfg.Server.Port
	}

	shutdownTracing, err := telemetry.Init(cfg.Telemetry, addr)
	if err != nil {
		lg.Error("failed to init telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	space := ring.New(cfg.FTSize)
	lg.Info("starting node", "addr", addr, "id", space.ID(addr), "ft_size", cfg.FTSize)

	st, err := store.Open(cfg.Store, addr, lg)
	if err != nil {
		lg.Error("failed to open record store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	client := transport.NewClient(lg)
	node := chord.New(space, addr, client, st, chord.WithLogger(lg))
	srv := transport.NewServer(cfg.Server, node, lg)

	g, ctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		if err := waitReady(ctx, client, addr); err != nil {
			return err
		}
		req := chord.JoinRequest{Init: cfg.BootstrapMode == "init"}
		if !req.Init {
			req.BootstrapAddr = cfg.BootstrapAddr
			req.TransferData = cfg.TransferData
		}
		if _, err := node.Join(ctx, req); err != nil {
			return err
		}
		return nil
	})

	g.Go(func() error {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGUSR1, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigs)

		for {
			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				err := srv.Shutdown(shutdownCtx)
				cancel()
				return err
			case sig := <-sigs:
				if sig == syscall.SIGUSR1 {
					dumpState(lg, node)
					continue
				}
				lg.Info("shutting down", "signal", sig)
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				err := srv.Shutdown(shutdownCtx)
				cancel()
				return err
			}
		}
	})

	if err := g.Wait(); err != nil {
		lg.Error("node terminated", "error", err)
		os.Exit(1)
	}
}

// waitReady polls the node's own RPC surface until the server answers;
// the join protocol calls back into the local server and must not start
// before it listens.
func waitReady(ctx context.Context, client *transport.Client, addr string) error {
	deadline := time.Now().Add(10 * time.Second)
	for {
		if _, err := client.GetPredecessor(ctx, addr); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.New("rpc server did not become ready")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// dumpState logs the node's ring view, the runtime equivalent of the
// SIGUSR1 finger-table dump operators use while debugging a ring.
func dumpState(lg *slog.Logger, node *chord.Node) {
	lg.Info("ring state",
		"id", node.ID(),
		"addr", node.Addr(),
		"successor", node.Successor().Addr,
		"predecessor", node.Predecessor().Addr,
		"hops", node.Hops().Value(),
	)
	for i, f := range node.FingerTable() {
		lg.Info("finger", "index", i, "start", f.Start, "node", f.Node, "addr", f.Addr)
	}
}
