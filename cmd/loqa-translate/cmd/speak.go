package cmd

import (
	"fmt"
	"os"

	"github.com/loqalabs/loqa-translate/internal/config"
	"github.com/spf13/cobra"
)

func newSpeakCmd(opts *options) *cobra.Command {
	var (
		language string
		voice    string
		output   string
	)
	cmd := &cobra.Command{
		Use:   "speak [text]",
		Short: "Synthesize speech for text without translating it",
		Long: `Synthesizes the given text (or stdin) and writes the audio to --output.

The voice follows the language: en uses the English voice, every other
language the default voice. --voice overrides the table.

Examples:
  loqa-translate speak --lang es -o hola.mp3 "Hola"
  loqa-translate speak --voice echo -o test.wav "Testing"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := inputText(cmd, args)
			if err != nil {
				return err
			}
			if language == "" {
				language = opts.cfg.Session.SourceLanguage
			}
			if !config.IsSupportedLanguage(language) {
				return fmt.Errorf("unsupported language %q", language)
			}
			if err := synthesizeTo(cmd.Context(), opts, text, language, voice, output); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&language, "lang", "l", "", "Language of the text (es|en); defaults to session.source_language")
	cmd.Flags().StringVar(&voice, "voice", "", "Voice override")
	cmd.Flags().StringVarP(&output, "output", "o", "", "File to write the audio to")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write audio: %w", err)
	}
	return nil
}
