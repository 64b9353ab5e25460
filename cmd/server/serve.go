package main

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"bitwire/server/config"
	"bitwire/server/entitystore"
	"bitwire/server/internal/app"
	"bitwire/server/proto"
	"bitwire/server/server"
	"bitwire/server/transport"
)

var nextDemoEntity atomic.Uint64

func serveCmd() *cobra.Command {
	var (
		configPath string
		listenAddr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bitwire server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()
			if configPath != "" {
				loaded, err := config.LoadYAML(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return app.Run(ctx, app.Config{
				Server:     cfg,
				ListenAddr: listenAddr,
				Register:   registerDemoHandlers,
			})
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML server config, overlaid onto defaults")
	cmd.Flags().StringVar(&listenAddr, "listen", ":7777", "websocket listen address")
	return cmd
}

// registerDemoHandlers wires the join/chat round trip that ships with the
// reference binary: a client claims a display name via JoinWorldChat, gets
// spawned and acked with Joined, and can broadcast Chat to every joined
// connection. Nothing here is required by the framework itself; a real
// deployment supplies its own Register in place of this one.
func registerDemoHandlers(srv *server.Server) {
	d := srv.Dispatcher()

	d.Register(proto.IDJoinWorld, func() proto.Message { return &proto.JoinWorldChat{} }, func(id transport.ConnectionID, msg proto.Message) {
		entity := entitystore.Entity(nextDemoEntity.Add(1))
		netID := srv.JoinWorld(id, entity)

		prefabID, err := proto.NewPrefabID()
		if err != nil {
			return
		}

		d.Send(context.Background(), id, &proto.Spawn{Prefab: prefabID, NetID: netID, Owned: true}, transport.Reliable)
		d.Send(context.Background(), id, &proto.Joined{}, transport.Reliable)
	}, true)

	d.Register(proto.IDChat, func() proto.Message { return &proto.Chat{} }, func(id transport.ConnectionID, msg proto.Message) {
		for _, snap := range srv.Snapshot() {
			if !snap.JoinedWorld {
				continue
			}
			d.Send(context.Background(), transport.ConnectionID(snap.ID), msg, transport.Reliable)
		}
	}, true)
}
