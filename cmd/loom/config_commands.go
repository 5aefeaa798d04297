package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"loom/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the loom configuration file",
	}
	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))
	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a sample configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.DefaultConfigPath()
			if err != nil {
				return err
			}
			if _, statErr := os.Stat(path); statErr == nil && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
			} else if statErr != nil && !errors.Is(statErr, fs.ErrNotExist) {
				return statErr
			}
			if err := config.CreateSample(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample config to %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config file: %s\n\n", ctx.configPath)
			fmt.Fprintf(out, "Program:    %s\n", cfg.Program.Slug)
			fmt.Fprintf(out, "Segments:   %s\n", strings.Join(cfg.Program.RequiredSegments, ", "))
			fmt.Fprintf(out, "Data dir:   %s\n", cfg.Paths.DataDir)
			fmt.Fprintf(out, "Storage:    %s\n", cfg.Paths.StorageDir)
			fmt.Fprintf(out, "Work dir:   %s\n", cfg.Paths.WorkDir)
			fmt.Fprintf(out, "Log dir:    %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "TTS base:   %s\n", cfg.TTS.BaseURL)
			fmt.Fprintf(out, "Logging:    %s/%s\n", cfg.Logging.Format, cfg.Logging.Level)
			return nil
		},
	}
}
