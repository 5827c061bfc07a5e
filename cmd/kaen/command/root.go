package command

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/emilythestrangee/kaen/internal/apiclient"
	"github.com/emilythestrangee/kaen/internal/config"
	"github.com/emilythestrangee/kaen/internal/logger"
	"github.com/emilythestrangee/kaen/internal/thread"
)

var (
	apiURL      string // Global flag for API server URL
	variantName string
	logLevel    string

	cfg = config.Default()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "kaen",
	Short: "kaen - read and join Kaen discussions from the terminal",
	Long: `kaen talks to a Kaen API server. Use it to:
- Sign in and out
- Read a post's comment thread, once or live
- Comment, reply, edit and delete your own comments

Use "kaen [command] --help" to see all available commands.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		if f := cmd.Flag("api"); f == nil || !f.Changed {
			apiURL = cfg.APIURL
		}
		logger.InitializeTo(os.Stderr, logLevel, false)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", cfg.APIURL, "API server URL (KAEN_API_URL)")
	rootCmd.PersistentFlags().StringVar(&variantName, "variant", "inline", "thread presentation: inline or drawer")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level written to stderr")
}

// client returns an API client carrying the saved session, if any, and the
// viewer that session signs in as.
func client() (*apiclient.Client, *thread.Viewer, error) {
	sess, err := loadSession()
	if err != nil {
		return nil, nil, err
	}
	if sess == nil || sess.APIURL != apiURL {
		return apiclient.New(apiURL), nil, nil
	}
	return apiclient.New(apiURL, apiclient.WithToken(sess.Token)), sess.viewer(), nil
}

func variant() (thread.Variant, error) {
	return thread.VariantByName(variantName)
}
