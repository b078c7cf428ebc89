package root

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var logLevel string

// Exported RootCmd
var RootCmd = &cobra.Command{
	Use:           "auditsearch",
	Short:         "Audit log search CLI",
	Long:          "Search the audit log through the API, or diagnose search strategies directly against the database.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		lvl, err := zerolog.ParseLevel(strings.ToLower(logLevel))
		if err != nil || logLevel == "" {
			lvl = zerolog.WarnLevel
		}
		zerolog.SetGlobalLevel(lvl)
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	},
}

func init() {
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
}

// GetRoot returns the RootCmd.
func GetRoot() *cobra.Command {
	return RootCmd
}
