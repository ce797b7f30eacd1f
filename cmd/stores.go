// ABOUTME: Store commands: list, add, connect, delete and use
// ABOUTME: Reads go through the cache; writes invalidate the store list

package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/markalston/review-insight/internal/feed"
	"github.com/markalston/review-insight/internal/models"
)

var (
	storeURL      string
	storeQuery    string
	storeName     string
	storeAddress  string
	storeCategory string
	storeNaver    string
	storeGoogle   string
)

var storesCmd = &cobra.Command{
	Use:   "stores",
	Short: "Manage your stores",
	Run:   withSignals(runStoresList),
}

var storesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered stores",
	Run:   withSignals(runStoresList),
}

var storesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a store",
	Long: `Register a store from its place page (--url) or by name and area (--query).
With --name the store is created as entered, without a lookup.`,
	Run: withSignals(runStoresAdd),
}

var storesConnectCmd = &cobra.Command{
	Use:   "connect <store-id>",
	Short: "Set the Naver and Google review pages of a store",
	Args:  cobra.ExactArgs(1),
	Run:   withSignals(runStoresConnect),
}

var storesDeleteCmd = &cobra.Command{
	Use:   "delete <store-id>",
	Short: "Delete a store",
	Args:  cobra.ExactArgs(1),
	Run:   withSignals(runStoresDelete),
}

var storesUseCmd = &cobra.Command{
	Use:   "use <store-id>",
	Short: "Select the store other commands default to",
	Args:  cobra.ExactArgs(1),
	Run:   withSignals(runStoresUse),
}

func init() {
	storesAddCmd.Flags().StringVar(&storeURL, "url", "", "Place page URL")
	storesAddCmd.Flags().StringVar(&storeQuery, "query", "", "Store name and area")
	storesAddCmd.Flags().StringVar(&storeName, "name", "", "Create with this name, without lookup")
	storesAddCmd.Flags().StringVar(&storeAddress, "address", "", "Address (with --name)")
	storesAddCmd.Flags().StringVar(&storeCategory, "category", "", "Category (with --name)")
	storesConnectCmd.Flags().StringVar(&storeNaver, "naver", "", "Naver review page URL")
	storesConnectCmd.Flags().StringVar(&storeGoogle, "google", "", "Google review page URL")

	storesCmd.AddCommand(storesListCmd, storesAddCmd, storesConnectCmd, storesDeleteCmd, storesUseCmd)
	rootCmd.AddCommand(storesCmd)
}

func runStoresList(ctx context.Context, w io.Writer, _ []string) int {
	return withApp(ctx, w, func(a *app) int {
		if !a.requireLogin(ctx, w) {
			return exitError
		}
		stores, err := readThrough(ctx, a, feed.StoresKey(), a.feed.Stores)
		if err != nil {
			return printError(w, err)
		}
		current, _ := a.prefs.LastStore(ctx)
		if IsJSONOutput() {
			printJSON(w, stores)
			return exitOK
		}
		fmt.Fprintln(w, formatStoresHuman(stores, current))
		return exitOK
	})
}

// formatStoresHuman lists stores, marking the selected one
func formatStoresHuman(stores []models.Store, current string) string {
	if len(stores) == 0 {
		return "No stores yet. Add one with `review-insight stores add --url <place page>`."
	}
	var sb strings.Builder
	for i, s := range stores {
		mark := " "
		if s.ID == current {
			mark = "*"
		}
		channels := strings.Join(s.Channels(), ", ")
		if channels == "" {
			channels = "no channels"
		}
		fmt.Fprintf(&sb, "%s %-12s %-24s %s", mark, s.ID, s.Name, channels)
		if i < len(stores)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func runStoresAdd(ctx context.Context, w io.Writer, _ []string) int {
	url, query, name := strings.TrimSpace(storeURL), strings.TrimSpace(storeQuery), strings.TrimSpace(storeName)
	if url == "" && query == "" && name == "" {
		fmt.Fprintln(w, "Error: one of --url, --query or --name is required")
		return exitError
	}
	return withApp(ctx, w, func(a *app) int {
		if !a.requireLogin(ctx, w) {
			return exitError
		}

		var store *models.Store
		if name != "" {
			s, err := a.api.CreateStore(ctx, &models.CreateStoreRequest{Name: name, Address: storeAddress, Category: storeCategory})
			if err != nil {
				return printError(w, err)
			}
			store = s
		} else {
			extracted, err := a.api.ExtractStore(ctx, &models.ExtractRequest{URL: url, Query: query})
			if err != nil {
				return printError(w, err)
			}
			s, err := a.api.RegisterStore(ctx, &models.RegisterStoreRequest{ExtractedStore: *extracted})
			if err != nil {
				return printError(w, err)
			}
			store = s
		}

		if err := a.feed.StoresChanged(ctx); err != nil {
			a.logger.Warn("Failed to invalidate store list", "error", err)
		}
		if err := a.prefs.SetLastStore(ctx, store.ID); err != nil {
			a.logger.Warn("Failed to remember store", "error", err)
		}
		if IsJSONOutput() {
			printJSON(w, store)
			return exitOK
		}
		fmt.Fprintf(w, "Registered %s (%s)\n", store.Name, store.ID)
		return exitOK
	})
}

func runStoresConnect(ctx context.Context, w io.Writer, args []string) int {
	naver, google := strings.TrimSpace(storeNaver), strings.TrimSpace(storeGoogle)
	if naver == "" && google == "" {
		fmt.Fprintln(w, "Error: at least one of --naver or --google is required")
		return exitError
	}
	req := &models.UpdateStoreRequest{}
	if naver != "" {
		req.NaverURL = &naver
	}
	if google != "" {
		req.GoogleURL = &google
	}
	return withApp(ctx, w, func(a *app) int {
		if !a.requireLogin(ctx, w) {
			return exitError
		}
		store, err := a.api.UpdateStore(ctx, args[0], req)
		if err != nil {
			return printError(w, err)
		}
		if err := a.feed.StoresChanged(ctx); err != nil {
			a.logger.Warn("Failed to invalidate store list", "error", err)
		}
		if IsJSONOutput() {
			printJSON(w, store)
			return exitOK
		}
		fmt.Fprintf(w, "Updated channels of %s\n", args[0])
		return exitOK
	})
}

func runStoresDelete(ctx context.Context, w io.Writer, args []string) int {
	return withApp(ctx, w, func(a *app) int {
		if !a.requireLogin(ctx, w) {
			return exitError
		}
		if err := a.api.DeleteStore(ctx, args[0]); err != nil {
			return printError(w, err)
		}
		if err := a.feed.StoresChanged(ctx); err != nil {
			a.logger.Warn("Failed to invalidate store list", "error", err)
		}
		if current, _ := a.prefs.LastStore(ctx); current == args[0] {
			if err := a.prefs.SetLastStore(ctx, ""); err != nil {
				a.logger.Warn("Failed to forget store", "error", err)
			}
		}
		fmt.Fprintf(w, "Deleted %s\n", args[0])
		return exitOK
	})
}

func runStoresUse(ctx context.Context, w io.Writer, args []string) int {
	return withApp(ctx, w, func(a *app) int {
		if !a.requireLogin(ctx, w) {
			return exitError
		}
		stores, err := a.feed.Stores(ctx)
		if err != nil {
			return printError(w, err)
		}
		for _, s := range stores {
			if s.ID == args[0] {
				if err := a.prefs.SetLastStore(ctx, s.ID); err != nil {
					return printError(w, err)
				}
				fmt.Fprintf(w, "Using %s\n", s.Name)
				return exitOK
			}
		}
		fmt.Fprintf(w, "Error: no store with id %s\n", args[0])
		return exitError
	})
}
