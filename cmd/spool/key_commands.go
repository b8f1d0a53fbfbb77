package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"spool/internal/keyring"
)

func newKeyCommand(ctx *commandContext) *cobra.Command {
	keyCmd := &cobra.Command{
		Use:   "key",
		Short: "Encryption key management",
	}
	keyCmd.AddCommand(newKeyInitCommand(ctx))
	keyCmd.AddCommand(newKeyShowCommand(ctx))
	return keyCmd
}

func newKeyInitCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Generate an age identity and a sealed master key",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			kr, err := keyring.Generate(cfg.Keyring.IdentityFile, cfg.Keyring.SealedKeyFile)
			if err != nil {
				if errors.Is(err, keyring.ErrExists) {
					return fmt.Errorf("%w (refusing to replace existing keys; chunks sealed with them would become unreadable)", err)
				}
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Identity:   %s\n", cfg.Keyring.IdentityFile)
			fmt.Fprintf(out, "Sealed key: %s\n", cfg.Keyring.SealedKeyFile)
			fmt.Fprintf(out, "Recipient:  %s\n", kr.Recipient)
			fmt.Fprintln(out, "Back up the identity file; without it the library cannot be decrypted.")
			return nil
		},
	}
}

func newKeyShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the public recipient of the configured identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			kr, err := keyring.Load(cfg.Keyring.IdentityFile, cfg.Keyring.SealedKeyFile)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), kr.Recipient)
			return nil
		},
	}
}
