// Command manuscript edits chapters as bounded sections and compares their
// versions word by word.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"manuscript/cmd/manuscript/ui"
	"manuscript/internal/chapter"
	"manuscript/internal/config"
	"manuscript/internal/logging"
	"manuscript/internal/store"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	verbose    bool
	workspace  string
	configPath string
	timeout    time.Duration

	// Logger
	logger *zap.Logger

	// Resolved at startup
	root string
	cfg  *config.Config

	// Opened on first use
	localStore *store.LocalStore
	service    *chapter.Service
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "manuscript",
	Short: "manuscript - chapters as bounded sections with word-level history",
	Long: `manuscript keeps each chapter as an ordered list of sections of at most
max_words words (2000 by default). Editing a section past the limit splits it
at word boundaries; every change to the chapter text is stored as a version
that can be compared word by word with any other.

Documents live in .manuscript/manuscript.db under the workspace root.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := bootstrap(); err != nil {
			return err
		}
		logging.Get(logging.CategoryCLI).Debug("running %s %v", cmd.CommandPath(), args)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		shutdown()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging to stderr")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: nearest directory with .manuscript, else current)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: <workspace>/.manuscript/config.yaml)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Operation timeout")

	registerDocumentCommands(rootCmd)
	registerSectionCommands(rootCmd)
	registerDiffCommand(rootCmd)
	registerWatchCommand(rootCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// bootstrap resolves the workspace, loads configuration and installs the
// logger.
func bootstrap() error {
	root = workspace
	if root == "" {
		r, err := config.FindWorkspaceRoot()
		if err != nil {
			return fmt.Errorf("failed to resolve workspace: %w", err)
		}
		root = r
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve workspace: %w", err)
	}
	root = abs

	path := configPath
	if path == "" {
		path = filepath.Join(root, config.WorkspaceDir, "config.yaml")
	}
	c, err := config.Load(path)
	if err != nil {
		return err
	}
	c.Resolve(root)
	if verbose {
		c.Logging.DebugMode = true
		c.Logging.Level = "debug"
		c.Logging.Format = "console"
		c.Logging.File = ""
	}
	if err := c.Validate(); err != nil {
		return err
	}

	if err := logging.Initialize(c.Logging.LoggerConfig()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger = logging.Base()
	cfg = c

	logging.Get(logging.CategoryBoot).Debug("workspace %s, database %s", root, cfg.Store.DatabasePath)
	return nil
}

// shutdown closes the store and flushes the logger.
func shutdown() {
	if localStore != nil {
		if err := localStore.Close(); err != nil {
			logging.StoreWarn("Error closing store: %v", err)
		}
		localStore, service = nil, nil
	}
	if logger != nil {
		_ = logger.Sync()
	}
}

// chapterService opens the store and builds the service on first use.
func chapterService() (*chapter.Service, error) {
	if service != nil {
		return service, nil
	}
	st, err := store.NewLocalStore(cfg.Store.DatabasePath, store.Options{
		BusyTimeout: cfg.GetBusyTimeout(),
		MaxVersions: cfg.Store.MaxVersions,
	})
	if err != nil {
		return nil, err
	}
	localStore = st
	service = chapter.NewService(st, chapter.Options{
		MaxWords:      cfg.Sections.MaxWords,
		DiffMode:      cfg.DiffMode(),
		Concurrency:   cfg.Diff.Concurrency,
		SlowThreshold: cfg.GetSlowDiffThreshold(),
	})
	return service, nil
}

// commandContext bounds a command by --timeout.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

// stylesFor renders for the command's output, without colors unless it is
// a terminal.
func stylesFor(out io.Writer) ui.Styles {
	return ui.NewStyles(ui.DetectTheme(cfg.UI.DarkMode), lipgloss.NewRenderer(out))
}

func outputWidth() int {
	if cfg.UI.Width > 0 {
		return cfg.UI.Width
	}
	return 100
}
