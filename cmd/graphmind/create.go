package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/psidex/graphmind/internal/store"
)

var createDepth int

func init() {
	createCmd.Flags().IntVarP(&createDepth, "depth", "d", store.DefaultDepth, "how many levels of connections to generate (1-10)")
	rootCmd.AddCommand(createCmd)
}

var createCmd = &cobra.Command{
	Use:   "create <idea>",
	Short: "Ask the hub to explore a new idea",
	Long: `Ask the hub to explore a new idea. The hub answers once the exploration is queued,
viewers subscribed to the hub are told when it is done.

Example:
  graphmind create "Roman Empire" --depth 3`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCreate,
}

func runCreate(cmd *cobra.Command, args []string) error {
	idea := strings.Join(args, " ")

	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout())
	defer cancel()

	if err := newKnowledgeClient().Create(ctx, idea, createDepth); err != nil {
		return err
	}
	good.Printf("Exploring %q %d levels deep\n", idea, createDepth)
	return nil
}
