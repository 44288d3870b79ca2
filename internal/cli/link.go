package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"ragengine/internal/domain"
)

var linkField string

var linkCmd = &cobra.Command{
	Use:   "link <collection> <file-id>...",
	Short: "Embed stored documents into a collection",
	Long: `Link stored documents into a collection. Each document is reported
separately; one failure never stops the others.

Examples:
  rag link handbook 6f1c...e2a
  rag link handbook 6f1c...e2a 0b7d...91c --field text`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		collection, ids := args[0], args[1:]
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			items := make([]domain.LinkItem, len(ids))
			for i, id := range ids {
				items[i] = domain.LinkItem{DocumentID: id, Field: linkField}
				// The name is informational; unknown ids are reported by Link.
				if info, err := a.files.Get(ctx, id); err == nil {
					items[i].Name = info.Name
					if linkField == "" {
						items[i].Field = linkFieldFor(info.Name)
					}
				}
				if items[i].Field == "" {
					items[i].Field = "text"
				}
			}
			return reportOutcomes(cmd.OutOrStdout(), a.links.Link(ctx, collection, items))
		})
	},
}

var unlinkCmd = &cobra.Command{
	Use:   "unlink <collection> <file-id>...",
	Short: "Remove documents from a collection (stored files are kept)",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			return reportOutcomes(cmd.OutOrStdout(), a.links.Unlink(ctx, args[0], args[1:]))
		})
	},
}

func init() {
	linkCmd.Flags().StringVar(&linkField, "field", "", "field type recorded with each document (default from the file extension)")
	rootCmd.AddCommand(linkCmd, unlinkCmd)
}

// linkFieldFor derives a field type from a file name: "md" for notes.md,
// "text" when there is no extension.
func linkFieldFor(name string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" || ext == "txt" {
		return "text"
	}
	return ext
}

// reportOutcomes prints a batch and fails the command when any item failed.
func reportOutcomes(w io.Writer, outcomes []domain.Outcome) error {
	if jsonOutput {
		return printJSON(w, outcomes)
	}
	if failed := printOutcomes(w, outcomes); failed > 0 {
		return fmt.Errorf("%d of %d items failed", failed, len(outcomes))
	}
	return nil
}
