package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "paperchat",
		Short:   "Paperchat — chat with research papers over the Gemini API",
		Version: version,
	}

	root.AddCommand(
		newServeCmd(),
		newCacheCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
