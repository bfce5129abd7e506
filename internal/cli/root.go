package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "orchestratorctl",
	Short: "Transcription Job Orchestrator CLI",
	Long:  `A CLI client and folder watcher for the transcription job orchestrator.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. The exit code follows spec.md §6.1: 0 success, 64 bad
// usage, 70 internal error, 130 interrupted. Flag-parsing errors and
// subcommand argument-count errors count as bad usage; an unknown
// subcommand name is reported by cobra itself and exits 70.
func Execute() {
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return &usageError{err: err} })
	for _, c := range rootCmd.Commands() {
		if validate := c.Args; validate != nil {
			c.Args = func(cmd *cobra.Command, args []string) error {
				if err := validate(cmd, args); err != nil {
					return &usageError{err: err}
				}
				return nil
			}
		}
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(exitCodeFor(err))
	}
}

func init() {
	cobra.OnInitialize(InitConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.orchestratorctl.yaml)")
}
