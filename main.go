package main

import (
	"io"
	"os"

	"quantcycle/application"
	"quantcycle/config"
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr, run))
}

// execute returns the process exit code. Errors are printed to stderr by cobra.
func execute(args []string, stdout, stderr io.Writer, runFn func(config.Config) error) int {
	cmd := config.NewCommand(runFn, args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

// run is the actual application entrypoint
func run(cfg config.Config) error {
	return application.Run(cfg)
}
