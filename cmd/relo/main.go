// Command relo runs a JavaScript file with live reloading enabled: loops
// and functions that opt in through reloading() are recompiled from the
// file as it is edited, without restarting the script or losing its state.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/relodev/relo/internal/version"
)

var fatalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

var rootCmd = &cobra.Command{
	Use:   "relo",
	Short: "Live-reload JavaScript loops and functions while a script runs",
	Long: `relo executes a script with the reloading() helper installed.

Wrap a loop iterable or a named function expression in reloading() and edit
the file while it runs; the fragment is reloaded from disk before the next
iteration or invocation, keeping all accumulated state.`,
}

func init() {
	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(fmt.Sprintf("relo %s\n", version.String()))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, fatalStyle.Render(err.Error()))
		os.Exit(1)
	}
}
