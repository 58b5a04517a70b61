package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dop251/goja"
	"github.com/spf13/cobra"

	"github.com/relodev/relo"
)

var runCmd = &cobra.Command{
	Use:   "run <script.js>",
	Short: "Run a script with reloading installed",
	Long: `Run a script with the reloading() global installed. The script is
compiled under its real path so reloads read the file you are editing.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScript(args[0], cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runScript(path string, stdout io.Writer) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	src, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}

	vm := goja.New()
	if err := setupConsole(vm, stdout); err != nil {
		return err
	}
	if err := relo.Install(vm); err != nil {
		return err
	}

	program, err := goja.Compile(abs, string(src), false)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if _, err := vm.RunProgram(program); err != nil {
		return fmt.Errorf("run %s: %w", path, err)
	}
	return nil
}

// setupConsole wires print and console.log to the command's output.
func setupConsole(vm *goja.Runtime, w io.Writer) error {
	printFunc := func(call goja.FunctionCall) goja.Value {
		args := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			args[i] = arg.String()
		}
		fmt.Fprintln(w, strings.Join(args, " "))
		return goja.Undefined()
	}
	if err := vm.Set("print", printFunc); err != nil {
		return err
	}
	console := vm.NewObject()
	if err := console.Set("log", printFunc); err != nil {
		return err
	}
	return vm.Set("console", console)
}
