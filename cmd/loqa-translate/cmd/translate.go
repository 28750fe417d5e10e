package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/loqalabs/loqa-translate/internal/config"
	"github.com/loqalabs/loqa-translate/internal/translate"
	"github.com/loqalabs/loqa-translate/internal/tts"
	"github.com/spf13/cobra"
)

func newTranslateCmd(opts *options) *cobra.Command {
	var (
		target string
		output string
	)
	cmd := &cobra.Command{
		Use:   "translate [text]",
		Short: "Translate text into the target language",
		Long: `Translates the given text (or stdin) and prints the result.

With --output the translation is also synthesized with the voice for the
target language and written to the given file.

Examples:
  loqa-translate translate "Me duele la cabeza."
  loqa-translate translate --to es "How are you feeling?"
  echo "Hola" | loqa-translate translate -o hello.mp3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := inputText(cmd, args)
			if err != nil {
				return err
			}
			if target == "" {
				target = opts.cfg.Session.TargetLanguage
			}
			if !config.IsSupportedLanguage(target) {
				return fmt.Errorf("unsupported target language %q", target)
			}

			translator, err := translate.New(opts.cfg.Translate)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(opts.cfg.Translate.TimeoutMS)*time.Millisecond)
			defer cancel()
			translated, err := translator.Translate(ctx, text, target)
			if err != nil {
				return fmt.Errorf("translate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), translated)

			if output == "" {
				return nil
			}
			return synthesizeTo(cmd.Context(), opts, translated, target, "", output)
		},
	}
	cmd.Flags().StringVarP(&target, "to", "t", "", "Target language (es|en); defaults to session.target_language")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Also write synthesized speech of the translation to this file")
	return cmd
}

func synthesizeTo(ctx context.Context, opts *options, text, language, voice, path string) error {
	synth, err := tts.New(opts.cfg.TTS, opts.cfg.Audio.MaxBytes)
	if err != nil {
		return err
	}
	if voice == "" {
		voice = tts.VoicesFromConfig(opts.cfg.TTS).For(language)
	}
	ctx, cancel := context.WithTimeout(ctx, time.Duration(opts.cfg.TTS.TimeoutMS)*time.Millisecond)
	defer cancel()
	clip, err := synth.Synthesize(ctx, text, voice)
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	if err := writeFile(path, clip.Data); err != nil {
		return err
	}
	opts.logger.Info("audio written",
		"path", path,
		"voice", voice,
		"content_type", clip.ContentType,
		"bytes", len(clip.Data),
	)
	return nil
}
