package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(topicsCmd)
}

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "List the knowledge topics stored by the hub",
	Args:  cobra.NoArgs,
	RunE:  runTopics,
}

func runTopics(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout())
	defer cancel()

	topics, err := newKnowledgeClient().List(ctx)
	if err != nil {
		return err
	}
	if len(topics) == 0 {
		subtle.Println("No knowledge yet, create some with: graphmind create <idea>")
		return nil
	}
	for _, t := range topics {
		fmt.Printf("  %s %s\n", accent.Sprint("•"), t)
	}
	return nil
}
