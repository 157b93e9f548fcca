package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/CoreyMoen/mast-sanity-sub000/internal/mcp"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server over stdio",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	p, err := newPipeline(ctx)
	if err != nil {
		return err
	}
	defer p.close(ctx)

	server := mcp.NewServer(p.db, p.extractor, p.builder, p.exec, p.undo, version, p.log)
	return server.Run(ctx, &sdk.StdioTransport{})
}
