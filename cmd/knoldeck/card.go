package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
)

var cardDeckID string

func newCardCmd() *cobra.Command {
	cardCmd := &cobra.Command{
		Use:   "card",
		Short: "Manage the cards of a deck",
	}

	listCmd := &cobra.Command{
		Use:   "list [deck-id]",
		Short: "List a deck's cards (default: the active deck)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  withEnv(runCardListCmd),
	}

	addCmd := &cobra.Command{
		Use:   "add <front> <back>",
		Short: "Add a card",
		Args:  cobra.ExactArgs(2),
		RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
			id, err := e.app.CreateCard(cardDeckID, args[0], args[1])
			if id == "" {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return warnOnly(cmd, err)
		}),
	}
	addCmd.Flags().StringVar(&cardDeckID, "deck", "", "deck id (default: the active deck)")

	cardCmd.AddCommand(listCmd, addCmd)
	cardCmd.AddCommand(&cobra.Command{
		Use:   "edit <deck-id> <card-id> <front> <back>",
		Short: "Change a card's text",
		Args:  cobra.ExactArgs(4),
		RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
			return warnOnly(cmd, e.app.UpdateCard(args[0], args[1], args[2], args[3]))
		}),
	})
	cardCmd.AddCommand(&cobra.Command{
		Use:   "delete <deck-id> <card-id>",
		Short: "Delete a card",
		Args:  cobra.ExactArgs(2),
		RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
			return warnOnly(cmd, e.app.DeleteCard(args[0], args[1]))
		}),
	})

	return cardCmd
}

func runCardListCmd(cmd *cobra.Command, args []string, e *env) error {
	deckID, err := deckArg(e, args)
	if err != nil {
		return err
	}
	cards, err := e.app.Cards(deckID)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(cards))
	for _, c := range cards {
		next := "now"
		if c.NextReview != nil {
			next = c.NextReview.Local().Format("2006-01-02")
		}
		rows = append(rows, []string{c.ID, oneLine(c.Front), oneLine(c.Back), fmt.Sprint(c.Box + 1), next})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "FRONT", "BACK", "BOX", "NEXT").
		Rows(rows...)
	fmt.Fprintln(cmd.OutOrStdout(), t.Render())
	return nil
}

// deckArg returns the deck named by args, or the active deck.
func deckArg(e *env, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	v := e.app.View()
	if v.Deck == nil {
		return "", fmt.Errorf("no deck selected: pass a deck id or run `knoldeck deck select`")
	}
	return v.Deck.ID, nil
}

func oneLine(s string) string {
	return runewidth.Truncate(strings.Join(strings.Fields(s), " "), 40, "…")
}
