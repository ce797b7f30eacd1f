// ABOUTME: Entry point for the review-insight CLI
// ABOUTME: Terminal client for review collection, insight and reports

package main

import (
	"fmt"
	"os"

	"github.com/markalston/review-insight/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
