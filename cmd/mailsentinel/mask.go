package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/raaihank/mail-sentinel/internal/privacy"
)

var maskSummary bool

var maskCmd = &cobra.Command{
	Use:   "mask [text]",
	Short: "Mask PII in text given as arguments or on stdin",
	RunE:  runMask,
}

func init() {
	maskCmd.Flags().BoolVar(&maskSummary, "summary", false, "Print per-category counts to stderr")
}

func runMask(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()
	// stdout carries the JSON result
	_ = log.SetLevel("error")

	text := strings.Join(args, " ")
	if len(args) == 0 {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		text = strings.TrimRight(string(data), "\n")
	}

	masker, err := privacy.New(cfg.Privacy, log.WithComponent("privacy"))
	if err != nil {
		return err
	}

	result, err := masker.Mask(text)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		return err
	}

	if maskSummary {
		errOut := cmd.ErrOrStderr()
		for _, c := range privacy.Summarize(result.Entities) {
			color.New(color.FgYellow).Fprintf(errOut, "%-16s", c.Category)
			fmt.Fprintln(errOut, c.Count)
		}
	}

	return nil
}
