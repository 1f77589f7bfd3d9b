package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// --- wallet ---

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Inspect the learning wallet",
}

var walletListCmd = &cobra.Command{
	Use:   "list",
	Short: "List learned concepts and recorded errors",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get("/api/wallet")
		if err != nil {
			return err
		}

		var items []struct {
			ID       string `json:"id"`
			Type     string `json:"type"`
			Title    string `json:"title"`
			Resolved bool   `json:"resolved"`
		}
		if err := decodeJSON(resp, &items); err != nil {
			return err
		}

		if len(items) == 0 {
			fmt.Println("Wallet is empty.")
			return nil
		}
		for _, item := range items {
			marker := " "
			if item.Type == "error" && !item.Resolved {
				marker = colorize(colorYellow, "!")
			}
			fmt.Printf("%s %s  %-8s %s\n", marker, colorize(colorCyan, shortID(item.ID)), item.Type, item.Title)
		}
		return nil
	},
}

var walletResolveCmd = &cobra.Command{
	Use:   "resolve <id>",
	Short: "Mark a recorded error as resolved",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.do(cmd.Context(), "POST", "/api/wallet/"+args[0]+"/resolve", nil)
		if err != nil {
			return err
		}

		var item struct {
			Title string `json:"title"`
		}
		if err := decodeJSON(resp, &item); err != nil {
			return err
		}
		printSuccess("Resolved %q", item.Title)
		return nil
	},
}

func init() {
	walletCmd.AddCommand(walletListCmd)
	walletCmd.AddCommand(walletResolveCmd)
}

// --- notebook ---

var notebookCmd = &cobra.Command{
	Use:   "notebook",
	Short: "Inspect ingested notebook sources",
}

var notebookListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notebook sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get("/api/notebook")
		if err != nil {
			return err
		}

		var list struct {
			Items []struct {
				Source struct {
					ID         string `json:"id"`
					Title      string `json:"title"`
					Type       string `json:"type"`
					ChunkCount int    `json:"chunkCount"`
				} `json:"source"`
			} `json:"items"`
		}
		if err := decodeJSON(resp, &list); err != nil {
			return err
		}

		if len(list.Items) == 0 {
			fmt.Println("No sources ingested yet.")
			return nil
		}
		for _, item := range list.Items {
			src := item.Source
			fmt.Printf("%s  %-8s %4d chunks  %s\n",
				colorize(colorCyan, shortID(src.ID)), src.Type, src.ChunkCount, src.Title)
		}
		return nil
	},
}

var notebookDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a notebook source and its chunks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete("/api/notebook/" + args[0])
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Deleted source %s", args[0])
		return nil
	},
}

func init() {
	notebookCmd.AddCommand(notebookListCmd)
	notebookCmd.AddCommand(notebookDeleteCmd)
}
