package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrWong99/voicenav/internal/config"
	"github.com/MrWong99/voicenav/internal/intent"
)

var (
	classifyURL      string
	classifyPatterns bool
)

func init() {
	rootCmd.AddCommand(classifyCmd)
	classifyCmd.Flags().StringVar(&classifyURL, "url", "", "current page URL, used by back navigation")
	classifyCmd.Flags().BoolVar(&classifyPatterns, "patterns-only", false, "skip the configured LLM")
}

var classifyCmd = &cobra.Command{
	Use:   "classify <transcript...>",
	Short: "Classify a transcript and print the result as JSON",
	Long:  "Runs the same classifier chain as the server on one transcript.\nThe config file is optional; without it only the pattern classifier runs.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runClassify,
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath, true)
	if err != nil {
		return err
	}

	pattern := intent.NewPatternClassifier(intent.WithAliases(cfg.Navigation.Aliases))
	var primary intent.Classifier
	if !classifyPatterns {
		primary, err = classifierFromConfig(cfg, pattern)
		if err != nil {
			return err
		}
	}
	fb := intent.NewFallback(primary, pattern,
		intent.WithThreshold(cfg.Classifier.AcceptThreshold),
		intent.WithDirectNavigation(cfg.Classifier.DirectNavigation),
	)

	res, _ := fb.Decide(cmd.Context(), intent.Request{
		Transcript: strings.Join(args, " "),
		CurrentURL: classifyURL,
	})
	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

// classifierFromConfig returns nil when no usable LLM is configured.
func classifierFromConfig(cfg *config.Config, pattern *intent.PatternClassifier) (intent.Classifier, error) {
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		return nil, err
	}
	if providers.LLM == nil {
		return nil, nil
	}
	return intent.NewLLMClassifier(providers.LLM, providers.LLMName,
		intent.WithTimeout(cfg.Classifier.Timeout),
		intent.WithAliasSource(pattern),
	), nil
}
