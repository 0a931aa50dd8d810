package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	goSession "github.com/MrEthical07/goSession"
)

func newConfigCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate engine configuration",
	}
	cmd.AddCommand(newConfigLintCmd(g))
	cmd.AddCommand(newConfigPrintCmd(g))
	return cmd
}

func newConfigLintCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "lint [file]",
		Short: "Validate a config file and report every problem",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := g.configFile
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return errors.New("no config file given")
			}
			if _, err := goSession.LoadConfigFile(path); err != nil {
				cmd.PrintErrf("%s: invalid\n%v\n", path, err)
				return fmt.Errorf("config lint: %s", path)
			}
			cmd.Printf("%s: ok\n", path)
			return nil
		},
	}
}

func newConfigPrintCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "print",
		Short: "Print the effective config as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
