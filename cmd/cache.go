// ABOUTME: Cache maintenance commands for the local read-through cache
// ABOUTME: Shows the entry count, prunes old entries or drops everything

package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear locally cached responses",
	Run:   withSignals(runCacheStats),
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop the oldest entries beyond the stored limit",
	Run:   withSignals(runCachePrune),
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every cached response",
	Run:   withSignals(runCacheClear),
}

func init() {
	cacheCmd.AddCommand(cachePruneCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheStats(ctx context.Context, w io.Writer, _ []string) int {
	return withApp(ctx, w, func(a *app) int {
		n, err := a.cache.Len(ctx)
		if err != nil {
			return printError(w, err)
		}
		if IsJSONOutput() {
			printJSON(w, map[string]any{
				"entries":     n,
				"max_entries": a.cfg.CacheMaxStored,
				"ttl":         a.cfg.CacheTTL.String(),
			})
			return exitOK
		}
		fmt.Fprintf(w, "Entries:  %d of %d\n", n, a.cfg.CacheMaxStored)
		fmt.Fprintf(w, "TTL:      %s\n", a.cfg.CacheTTL)
		return exitOK
	})
}

func runCachePrune(ctx context.Context, w io.Writer, _ []string) int {
	return withApp(ctx, w, func(a *app) int {
		removed, err := a.cache.Prune(ctx)
		if err != nil {
			return printError(w, err)
		}
		fmt.Fprintf(w, "Removed %d entries\n", removed)
		return exitOK
	})
}

func runCacheClear(ctx context.Context, w io.Writer, _ []string) int {
	return withApp(ctx, w, func(a *app) int {
		if err := a.cache.Clear(ctx); err != nil {
			return printError(w, err)
		}
		fmt.Fprintln(w, "Cache cleared.")
		return exitOK
	})
}
