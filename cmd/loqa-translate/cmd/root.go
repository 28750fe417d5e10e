// Package cmd implements the loqa-translate command line, a one-shot client
// of the same translation and speech backends the daemon uses.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/loqalabs/loqa-translate/internal/config"
	"github.com/spf13/cobra"
)

var (
	Version   = "0.1.0-dev"
	GitCommit = "development"
)

type options struct {
	cfgFile string
	envFile string
	verbose bool

	cfg    config.Config
	logger *slog.Logger
}

// NewRootCmd builds the command tree. Each call returns independent flag state.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "loqa-translate",
		Short: "Translate text and synthesize speech from the command line",
		Long: `loqa-translate sends text to the configured translation backend and
can synthesize speech with the configured voice table.

Backends and voices come from the same YAML file and LOQA_* variables
the loqa-translated daemon reads.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
	}
	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "Config file (defaults only when empty)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Optional dotenv file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output")

	root.AddCommand(newTranslateCmd(opts), newSpeakCmd(opts), newVersionCmd())
	return root
}

func Execute() error {
	return NewRootCmd().Execute()
}

func (o *options) load(cmd *cobra.Command) error {
	_ = godotenv.Load(o.envFile)
	cfg, err := config.Load(o.cfgFile)
	if err != nil {
		return err
	}
	o.cfg = cfg

	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	o.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return nil
}

// inputText joins args, or reads stdin when there are none or the only arg is "-".
func inputText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("no text given")
	}
	return text, nil
}
