package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"

	"github.com/danielpatrickdp/path-memory/internal/config"
	"github.com/danielpatrickdp/path-memory/internal/rpc"
	"github.com/danielpatrickdp/path-memory/internal/state"
)

// #region main
func main() {
	cfgPath := flag.String("config", envOr("PATHMEM_CONFIG", ""), "path to pathmem.yaml")
	addr := flag.String("addr", "", "listen address (overrides server.addr)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	logger, err := cfg.Log.Logger(os.Stderr)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}

	grid, _, seed, err := cfg.World.Build()
	if err != nil {
		log.Fatalf("failed to build world: %v", err)
	}

	store, err := state.NewStore(cfg.Storage.DBPath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	srv := rpc.NewServer(cfg.AgentConfig(), grid,
		rpc.WithStore(store),
		rpc.WithSeed(seed),
		rpc.WithServerLogger(logger),
	)
	gs := grpc.NewServer(grpc.UnaryInterceptor(rpc.LoggingInterceptor(logger)))
	rpc.Register(gs, srv)

	lis, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		log.Fatalf("failed to listen on %s: %v", cfg.Server.Addr, err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info("shutting down")
		gs.GracefulStop()
	}()

	fmt.Printf("pathd listening on %s (db=%s world=%dx%d seed=%d)\n",
		lis.Addr(), cfg.Storage.DBPath, grid.Bounds().Width, grid.Bounds().Height, seed)
	if err := gs.Serve(lis); err != nil {
		log.Fatalf("serve: %v", err)
	}
}

// #endregion main

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
