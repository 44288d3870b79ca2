package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"

	"ragengine/config"
	"ragengine/internal/logging"
)

var (
	cfgFile    string
	cfg        *config.Config
	rootDir    string
	verbose    bool
	jsonOutput bool
	logger     *log.Logger
)

var rootCmd = &cobra.Command{
	Use:   "rag",
	Short: "RAG engine - Link documents into vector collections and query them",
	Long: `rag manages vector collections, links uploaded documents into them and
answers questions from the linked content.

Example usage:
  rag collections create docs          # Create a collection
  rag files upload guide.md            # Store a document
  rag link docs <file-id>              # Embed it into the collection
  rag query docs -q "how do I deploy"  # Ask a question`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			if err := config.LoadEnv(rootDir); err != nil {
				return err
			}
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		logger = logging.NewWithWriter(level, cmd.ErrOrStderr())
		return nil
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./rag.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "root directory (default is current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}
