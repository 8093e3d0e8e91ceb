package main

import (
	"fmt"
	"os"

	"github.com/kabkimd/userprov/internal/cli"
	"github.com/kabkimd/userprov/pkg/errors"
	"github.com/kabkimd/userprov/pkg/ui/styles"
)

func main() {
	rootCmd := cli.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, styles.Render("Error", errors.Diagnostic(err)))
		os.Exit(1)
	}
}
