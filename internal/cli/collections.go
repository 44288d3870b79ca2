package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"ragengine/internal/domain"
)

var collectionsCmd = &cobra.Command{
	Use:     "collections",
	Aliases: []string{"collection"},
	Short:   "Manage vector collections",
}

var collectionsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a collection sized for the configured embedder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			created, err := a.collections.Create(ctx, args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]any{"name": args[0], "created": created})
			}
			if created {
				okColor.Fprintf(cmd.OutOrStdout(), "Collection '%s' created\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Collection '%s' already exists\n", args[0])
			}
			return nil
		})
	},
}

var collectionsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a collection and everything linked into it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			deleted, err := a.collections.Delete(ctx, args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]any{"name": args[0], "deleted": deleted})
			}
			if !deleted {
				return fmt.Errorf("collection '%s' does not exist", args[0])
			}
			okColor.Fprintf(cmd.OutOrStdout(), "Collection '%s' deleted\n", args[0])
			return nil
		})
	},
}

var collectionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List collections",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			collections, err := a.collections.List(ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), collections)
			}
			if len(collections) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No collections.")
			}
			for _, c := range collections {
				fmt.Fprintln(cmd.OutOrStdout(), c.Name)
			}
			return nil
		})
	},
}

var collectionsStatusCmd = &cobra.Command{
	Use:   "status <name>",
	Short: "Show a collection's state and point count",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			status, err := a.collections.Status(ctx, args[0])
			if errors.Is(err, domain.ErrNotFound) {
				status = domain.CollectionStatus{Name: args[0], Status: domain.LinkStateNotFound}
			} else if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), status)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%d points)\n", status.Name, status.Status, status.PointsCount)
			return nil
		})
	},
}

func init() {
	collectionsCmd.AddCommand(collectionsCreateCmd, collectionsDeleteCmd, collectionsListCmd, collectionsStatusCmd)
	rootCmd.AddCommand(collectionsCmd)
}
