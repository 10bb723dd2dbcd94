package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

func newDeckCmd() *cobra.Command {
	deckCmd := &cobra.Command{
		Use:   "deck",
		Short: "Manage decks",
	}

	deckCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List decks with card and due counts",
		Args:  cobra.NoArgs,
		RunE:  withEnv(runDeckListCmd),
	})
	deckCmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create a deck and make it active",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
			id, err := e.app.CreateDeck(args[0])
			if id == "" {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return warnOnly(cmd, err)
		}),
	})
	deckCmd.AddCommand(&cobra.Command{
		Use:   "rename <deck-id> <name>",
		Short: "Rename a deck",
		Args:  cobra.ExactArgs(2),
		RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
			return warnOnly(cmd, e.app.RenameDeck(args[0], args[1]))
		}),
	})
	deckCmd.AddCommand(&cobra.Command{
		Use:   "delete <deck-id>",
		Short: "Delete a deck and all of its cards",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
			return warnOnly(cmd, e.app.DeleteDeck(args[0]))
		}),
	})
	deckCmd.AddCommand(&cobra.Command{
		Use:   "select <deck-id>",
		Short: "Make a deck the active one",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
			return warnOnly(cmd, e.app.SelectDeck(args[0]))
		}),
	})

	return deckCmd
}

func runDeckListCmd(cmd *cobra.Command, _ []string, e *env) error {
	decks := e.app.Decks()
	if len(decks) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No decks yet. Create one with `knoldeck deck create <name>` or `knoldeck generate`.")
		return nil
	}

	rows := make([][]string, 0, len(decks))
	for _, d := range decks {
		active := ""
		if d.Active {
			active = "*"
		}
		rows = append(rows, []string{active, d.ID, d.Name, strconv.Itoa(d.Cards), strconv.Itoa(d.Due)})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("", "ID", "NAME", "CARDS", "DUE").
		Rows(rows...)
	fmt.Fprintln(cmd.OutOrStdout(), t.Render())
	return nil
}
