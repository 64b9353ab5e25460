package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"bitwire/server/catalog"
	"bitwire/server/proto"
)

func schemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Work with the message JSON-Schema document",
	}
	cmd.AddCommand(schemaGenerateCmd())
	return cmd
}

func schemaGenerateCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write the registered message catalog as a JSON-Schema document",
		RunE: func(cmd *cobra.Command, args []string) error {
			if outPath == "" {
				return fmt.Errorf("--out is required")
			}
			registry := builtinCatalog()
			schema, err := registry.Schema()
			if err != nil {
				return fmt.Errorf("build schema: %w", err)
			}
			return writeSchema(outPath, schema)
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "", "path to write the JSON schema")
	return cmd
}

// builtinCatalog registers the core message types that carry a payload:
// Spawn, Unspawn, Transform, JoinWorldChat (under the JoinWorld id),
// Joined and Chat. The empty Connect and Disconnect messages are not
// registered. Applications adding their own message kinds build their own
// catalog.Registry the same way and register it alongside their
// dispatch.Dispatcher.Register calls.
func builtinCatalog() *catalog.Registry {
	r := catalog.NewRegistry()
	must(r.Register(proto.IDSpawn, "Spawn", &proto.Spawn{}))
	must(r.Register(proto.IDUnspawn, "Unspawn", &proto.Unspawn{}))
	must(r.Register(proto.IDTransform, "Transform", &proto.Transform{}))
	must(r.Register(proto.IDJoinWorld, "JoinWorldChat", &proto.JoinWorldChat{}))
	must(r.Register(proto.IDJoined, "Joined", &proto.Joined{}))
	must(r.Register(proto.IDChat, "Chat", &proto.Chat{}))
	return r
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func writeSchema(outPath string, schema any) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create schema directory: %w", err)
	}
	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write temp schema: %w", err)
	}
	return os.Rename(tmpPath, outPath)
}
