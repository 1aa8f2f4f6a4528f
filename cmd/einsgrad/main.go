// Package main provides the einsgrad CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "v0.1.0-dev"

var (
	configPath string
	verbose    bool

	rootCmd = &cobra.Command{
		Use:   "einsgrad",
		Short: "Symbolic tensor derivatives in indicial notation",
		Long: `einsgrad differentiates tensor expressions written in Einstein
notation, producing index-correct derivative expressions suitable for
gradient code generation.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if configPath == "" {
				return
			}
			if err := loadConfig(configPath, &config); err != nil {
				exitf("loading %s: %v", configPath, err)
			}
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("einsgrad %s\n", version)
		},
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML file with extra scalar rules")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log rule promotions to stderr")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(diffCmd)
	diffCmd.Flags().StringVar(&wrtName, "wrt", "", "Operand name to differentiate with respect to")
	diffCmd.Flags().IntVar(&wrtPos, "pos", -1, "Operand position to differentiate with respect to")
	diffCmd.Flags().BoolVar(&emitFlat, "flat", false, "Print the flattened assignment form")

	rootCmd.AddCommand(gradCmd)
	gradCmd.Flags().StringVarP(&outputVar, "output", "o", "", "Program variable to differentiate (defaults to the last assignment)")
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "einsgrad: "+format+"\n", args...)
	os.Exit(1)
}
