package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func applyCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Extract actions from a reply and run them against the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd, file)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "Reply text file, - for stdin")
	return cmd
}

func runApply(cmd *cobra.Command, file string) error {
	reply, err := readReply(file)
	if err != nil {
		return err
	}

	ctx := context.Background()
	p, err := newPipeline(ctx)
	if err != nil {
		return err
	}
	defer p.close(ctx)

	actions := p.extractor.Extract(reply)
	if len(actions) == 0 {
		cmd.Println("no actions found")
		return nil
	}

	results := p.undo.RunAll(ctx, actions)
	failed := 0
	for i, result := range results {
		a := actions[i]
		mark := "ok"
		if !result.Success {
			mark = "failed"
			failed++
		}
		cmd.Printf("[%s] %s %s: %s\n", mark, a.Type, a.ID, result.Message)
		if result.DocumentID != "" {
			cmd.Printf("       document: %s\n", result.DocumentID)
		}
	}
	if skipped := len(actions) - len(results); skipped > 0 {
		cmd.Printf("%d action(s) skipped after failure\n", skipped)
	}
	if failed > 0 {
		return fmt.Errorf("%d action(s) failed", failed)
	}
	return nil
}

func readReply(file string) (string, error) {
	if file == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", file, err)
	}
	return string(data), nil
}
