package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"ragengine/internal/domain"
)

var (
	queryText  string
	queryLimit int
)

var queryCmd = &cobra.Command{
	Use:   "query <collection>",
	Short: "Answer a question from a collection's linked documents",
	Long: `Search a collection for passages relevant to the question and answer
from the best ones. Low-confidence results are reported, not treated as errors.

Examples:
  rag query handbook -q "how do I request leave"
  rag query handbook -q "deployment steps" --limit 10 --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit := GetConfig().Retrieve.Limit
		if queryLimit > 0 {
			limit = queryLimit
		}
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			result := a.queries.Query(ctx, args[0], queryText, limit)
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), result)
			}
			printQueryResult(cmd.OutOrStdout(), result)
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <collection> <file-id>...",
	Short: "Report whether documents are linked into a collection",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		collection, ids := args[0], args[1:]
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			states, err := a.collections.BatchStatus(ctx, collection, ids)
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("collection '%s' does not exist", collection)
			}
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), states)
			}
			printLinkStates(cmd.OutOrStdout(), ids, states)
			return nil
		})
	},
}

func init() {
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "question to answer (required)")
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "k", 0, "number of search hits (default from config)")
	queryCmd.MarkFlagRequired("query")
	rootCmd.AddCommand(queryCmd, statusCmd)
}
