package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"ragengine/internal/adapter/filestore"
	"ragengine/internal/adapter/fs"
	"ragengine/internal/domain"
)

var importLink string

var filesCmd = &cobra.Command{
	Use:     "files",
	Aliases: []string{"file"},
	Short:   "Manage stored documents",
}

var filesUploadCmd = &cobra.Command{
	Use:   "upload <path>...",
	Short: "Store documents and print their ids",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFiles(func(files *filestore.DiskStore) error {
			uploaded := make([]domain.FileInfo, 0, len(args))
			for _, path := range args {
				info, err := uploadFile(cmd.Context(), files, path, filepath.Base(path))
				if err != nil {
					return err
				}
				uploaded = append(uploaded, info)
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), uploaded)
			}
			printFiles(cmd.OutOrStdout(), uploaded)
			return nil
		})
	},
}

var filesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFiles(func(files *filestore.DiskStore) error {
			list, err := files.List(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				if list == nil {
					list = []domain.FileInfo{}
				}
				return printJSON(cmd.OutOrStdout(), list)
			}
			printFiles(cmd.OutOrStdout(), list)
			return nil
		})
	},
}

var filesDeleteCmd = &cobra.Command{
	Use:   "delete <file-id>...",
	Short: "Delete stored documents (linked vectors are kept until unlinked)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFiles(func(files *filestore.DiskStore) error {
			missing := 0
			for _, id := range args {
				deleted, err := files.Delete(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !deleted {
					missing++
					failColor.Fprintf(cmd.OutOrStdout(), "%s: not found\n", id)
					continue
				}
				okColor.Fprintf(cmd.OutOrStdout(), "%s: deleted\n", id)
			}
			if missing > 0 {
				return fmt.Errorf("%d of %d files not found", missing, len(args))
			}
			return nil
		})
	},
}

var filesImportCmd = &cobra.Command{
	Use:   "import <path>",
	Short: "Upload every matching file under a directory",
	Long: `Upload every file under path that matches files.includes and none of
files.excludes. With --link the imported files are linked into a collection.

Examples:
  rag files import ./docs
  rag files import ./docs --link handbook`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	filesImportCmd.Flags().StringVar(&importLink, "link", "", "collection to link imported files into")
	filesCmd.AddCommand(filesUploadCmd, filesListCmd, filesDeleteCmd, filesImportCmd)
	rootCmd.AddCommand(filesCmd)
}

func withFiles(fn func(files *filestore.DiskStore) error) error {
	files, err := openFiles(GetConfig(), GetRootDir())
	if err != nil {
		return err
	}
	defer files.Close()
	return fn(files)
}

func uploadFile(ctx context.Context, files *filestore.DiskStore, path, name string) (domain.FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.FileInfo{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := files.Upload(ctx, name, f)
	if err != nil {
		return domain.FileInfo{}, fmt.Errorf("failed to upload %s: %w", path, err)
	}
	return info, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	out := cmd.OutOrStdout()

	walker := fs.NewWalker(cfg.Files.Includes, cfg.Files.Excludes)
	entries, err := walker.Walk(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", args[0], err)
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No matching files.")
		return nil
	}

	return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
		bar := progressbar.NewOptions(len(entries),
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowBytes(false),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetDescription("[cyan]Importing[reset]"),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprintln(cmd.ErrOrStderr())
			}),
		)

		imported := make([]domain.FileInfo, 0, len(entries))
		for _, e := range entries {
			info, err := uploadFile(ctx, a.files, e.Path, filepath.Base(e.Path))
			if err != nil {
				logger.Warn().Str("path", e.RelPath).Err(err).Msg("import failed")
			} else {
				imported = append(imported, info)
			}
			bar.Add(1)
		}

		if importLink == "" {
			if jsonOutput {
				return printJSON(out, imported)
			}
			fmt.Fprintf(out, "Imported %d of %d files\n", len(imported), len(entries))
			return nil
		}

		items := make([]domain.LinkItem, len(imported))
		for i, f := range imported {
			items[i] = domain.LinkItem{Name: f.Name, DocumentID: f.ID, Field: linkFieldFor(f.Name)}
		}
		return reportOutcomes(out, a.links.Link(ctx, importLink, items))
	})
}
