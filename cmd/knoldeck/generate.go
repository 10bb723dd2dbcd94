package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conorfennell/knoldeck/internal/generate"
)

var genParams generate.Params

func newGenerateCmd() *cobra.Command {
	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Create a deck from an external source",
	}

	aiCmd := &cobra.Command{
		Use:   "ai <topic>",
		Short: "Ask Gemini for cards about a topic",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
			genParams.Topic = args[0]
			return runGenerate(cmd, e, generate.TriggerAI)
		}),
	}
	aiCmd.Flags().IntVar(&genParams.Count, "count", 0, "number of cards (default from config)")

	triviaCmd := &cobra.Command{
		Use:   "trivia",
		Short: "Fetch true/false questions from Open Trivia DB",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, _ []string, e *env) error {
			return runGenerate(cmd, e, generate.TriggerTrivia)
		}),
	}
	triviaCmd.Flags().StringVar(&genParams.Category, "category", "", "Open Trivia DB category id")
	triviaCmd.Flags().IntVar(&genParams.Count, "count", 0, "number of questions (default from config)")

	geoCmd := &cobra.Command{
		Use:   "geo",
		Short: "Build capital or population cards for random countries",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, _ []string, e *env) error {
			return runGenerate(cmd, e, generate.TriggerGeo)
		}),
	}
	geoCmd.Flags().StringVar(&genParams.Kind, "kind", generate.GeoCapitals, "capitals or populations")
	geoCmd.Flags().IntVar(&genParams.Count, "count", 0, "number of countries (default from config)")

	markdownCmd := &cobra.Command{
		Use:   "markdown <path>",
		Short: "Import Q:/A:/C: cards from a markdown file or directory",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
			genParams.Path = args[0]
			return runGenerate(cmd, e, generate.TriggerMarkdown)
		}),
	}
	markdownCmd.Flags().StringVar(&genParams.Name, "name", "", "deck name (default derived from the path)")

	gitCmd := &cobra.Command{
		Use:   "git <url>",
		Short: "Clone or pull a git repository and import its markdown cards",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
			genParams.URL = args[0]
			return runGenerate(cmd, e, generate.TriggerGit)
		}),
	}

	generateCmd.AddCommand(aiCmd, triviaCmd, geoCmd, markdownCmd, gitCmd)
	return generateCmd
}

func runGenerate(cmd *cobra.Command, e *env, trigger string) error {
	src, err := e.factory(cmd.ErrOrStderr()).New(trigger, genParams)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if e.cfg.Generate.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Generate.Timeout)
		defer cancel()
	}

	res, err := e.app.Generate(ctx, trigger, src)
	if res.DeckID == "" {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created deck %q (%s) with %d cards", res.DeckName, res.DeckID, res.Created)
	if res.Empty > 0 || res.Duplicate > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), ", skipped %d empty and %d duplicate", res.Empty, res.Duplicate)
	}
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
	}
	return nil
}
