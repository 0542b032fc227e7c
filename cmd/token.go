package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/glefebvre/listcatalog/internal/codec"
	"github.com/glefebvre/listcatalog/internal/models"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Inspect and build configuration tokens",
	Long: `Work with configuration tokens offline. A token is the whole per-user
configuration as JSON, DEFLATE-compressed and base64url encoded.`,
}

var tokenDecodeCmd = &cobra.Command{
	Use:   "decode <token>",
	Short: "Print the configuration carried by a token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := codec.Decode(args[0])
		if err != nil {
			return err
		}
		if redact, _ := cmd.Flags().GetBool("redact"); redact {
			cfg = cfg.Sanitized()
		}
		return printJSON(cmd.OutOrStdout(), cfg)
	},
}

var tokenEncodeCmd = &cobra.Command{
	Use:   "encode [file]",
	Short: "Build a token from a JSON configuration (stdin when no file is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var in io.Reader = cmd.InOrStdin()
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer f.Close()
			in = f
		}

		cfg := models.DefaultConfig()
		if err := json.NewDecoder(in).Decode(cfg); err != nil {
			return fmt.Errorf("failed to parse configuration: %w", err)
		}
		cfg.ApplyDefaults()

		token, err := codec.Compress(cfg)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

var tokenShareCmd = &cobra.Command{
	Use:   "share <token>",
	Short: "Print a copy of a token without credentials",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := codec.Decode(args[0])
		if err != nil {
			return err
		}
		token, err := codec.CompressShareable(cfg)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenDecodeCmd.Flags().Bool("redact", false, "strip credentials before printing")

	tokenCmd.AddCommand(tokenDecodeCmd)
	tokenCmd.AddCommand(tokenEncodeCmd)
	tokenCmd.AddCommand(tokenShareCmd)
	rootCmd.AddCommand(tokenCmd)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
