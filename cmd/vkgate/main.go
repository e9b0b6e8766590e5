package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vkgate/vkgate/internal/version"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "vkgate",
		Short: "VK messages gateway",
		Long:  "vkgate receives VK bot updates, normalizes them into message views and serves the callback endpoint.",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to the config file")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the callback gateway",
			Run: func(cmd *cobra.Command, args []string) {
				runServe()
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Println(version.GetInfo())
			},
		},
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
