package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"clothdna/database"
	"clothdna/imageprocessor"
	"clothdna/scanner"
	"clothdna/types"
	"clothdna/utils"
)

var errNotAuthentic = errors.New("item is not authentic")

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "clothdna",
		Short:         "Register garment photographs and verify their authenticity",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.loadConfig()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	ctx.bindFlags(rootCmd)

	rootCmd.AddCommand(newRegisterCommand(ctx))
	rootCmd.AddCommand(newVerifyCommand(ctx))
	rootCmd.AddCommand(newScanCommand(ctx))
	rootCmd.AddCommand(newShowCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))
	return rootCmd
}

func newRegisterCommand(ctx *commandContext) *cobra.Command {
	var itemID string
	cmd := &cobra.Command{
		Use:   "register <image>",
		Short: "Extract the DNA of one photograph and register it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.open(); err != nil {
				return err
			}
			defer ctx.close()

			res, err := ctx.processor.Register(imageprocessor.FromFile(args[0]), itemID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderRecord(res.Record, isTerminal(out)))
			if ctx.docs != nil {
				fmt.Fprintf(out, "Documents written to %s\n", ctx.docs.Dir())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&itemID, "id", "", "Item id (default: generated from the current time)")
	return cmd
}

func newVerifyCommand(ctx *commandContext) *cobra.Command {
	verifyLong := "Check a photograph against the item registered under --id. With --hash the\n" +
		"repository is not consulted: the photograph's DNA under --id is hashed and\n" +
		"compared with the given hash."
	var itemID, hash string
	cmd := &cobra.Command{
		Use:   "verify <image>",
		Short: "Check a photograph against a registered item or an expected hash",
		Long:  verifyLong,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if itemID == "" {
				return errors.New("--id is required")
			}
			if hash != "" && !utils.IsHashHex(hash) {
				return fmt.Errorf("--hash must be 64 lowercase hex characters")
			}
			if err := ctx.open(); err != nil {
				return err
			}
			defer ctx.close()

			src := imageprocessor.FromFile(args[0])
			var (
				res types.VerificationResult
				err error
			)
			if hash == "" {
				res, err = ctx.processor.VerifyItem(src, itemID)
			} else {
				res, err = ctx.processor.Verify(src, itemID, hash)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderVerification(res, isTerminal(out)))
			if !res.IsAuthentic {
				return errNotAuthentic
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&itemID, "id", "", "Item id to verify against")
	cmd.Flags().StringVar(&hash, "hash", "", "Expected hash; skips the repository lookup")
	return cmd
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	scanLong := "Register every photograph in a folder. Item ids are derived from file names;\n" +
		"a file whose id is already taken by an earlier file is reported as an error.\n" +
		"Supported extensions: " + strings.Join(imageprocessor.SupportedExtensions(), " ")
	var prefix string
	var force bool
	var workers int
	cmd := &cobra.Command{
		Use:   "scan <folder>",
		Short: "Register every photograph in a folder",
		Long:  scanLong,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := os.Stat(args[0])
			if err != nil {
				return fmt.Errorf("cannot access folder: %w", err)
			}
			if !info.IsDir() {
				return fmt.Errorf("path is not a directory: %s", args[0])
			}
			if err := ctx.open(); err != nil {
				return err
			}
			defer ctx.close()

			if !cmd.Flags().Changed("force") {
				force = ctx.cfg.Scan.Force
			}
			if !cmd.Flags().Changed("workers") {
				workers = ctx.cfg.Scan.Workers
			}

			out := cmd.OutOrStdout()
			opts := scanner.ScanOptions{
				FolderPath: args[0],
				Prefix:     prefix,
				Force:      force,
				MaxWorkers: workers,
			}
			if isTerminal(out) {
				opts.Progress = out
			}

			summary, err := scanner.ScanFolder(cmd.Context(), ctx.processor, ctx.store, opts)
			if summary != nil {
				scanner.PrintCompletionStats(out, *summary)
				if stats, statErr := ctx.store.GetScanStats(summary.RunID); statErr == nil {
					fmt.Fprintf(out, "Run %s: %d items stored, %d distinct hashes.\n",
						summary.RunID, stats.TotalItems, stats.UniqueHashes)
				}
			}
			return err
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "Prefix for item ids derived from file names")
	cmd.Flags().BoolVar(&force, "force", false, "Re-register items that already exist")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent workers (0 = automatic)")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show [item-id]",
		Short: "List registered items or show one item",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.open(); err != nil {
				return err
			}
			defer ctx.close()

			out := cmd.OutOrStdout()
			pretty := isTerminal(out)
			if len(args) == 0 {
				return showAll(out, ctx.store, pretty)
			}

			item, err := ctx.processor.Lookup(args[0])
			if err != nil {
				return err
			}
			integrity, err := ctx.processor.CheckIntegrity(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(out, renderItem(item, integrity.IsAuthentic, pretty))
			return nil
		},
	}
}

func newConfigCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := ctx.cfg.Encode()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func showAll(out io.Writer, store *database.Store, pretty bool) error {
	items, err := store.List()
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, []string{
			it.DNA.ItemID,
			utils.ShortHash(it.Record.HashHex),
			it.Record.HashPolicy,
			it.Record.TimestampUTC,
			strconv.Itoa(it.DNA.Features.KeypointCount),
			it.SourcePath,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Item", "Hash", "Policy", "Registered", "Keypoints", "Source"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
		pretty,
	))
	stats, err := store.GetScanStats("")
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s items, %s distinct hashes\n",
		humanize.Comma(int64(stats.TotalItems)), humanize.Comma(int64(stats.UniqueHashes)))
	return nil
}

func renderRecord(rec types.AuthenticityRecord, pretty bool) string {
	s := rec.FeatureSummary
	rows := [][]string{
		{"Item", rec.ItemID},
		{"Hash", rec.HashHex},
		{"Algorithm", rec.HashAlgorithm},
		{"Policy", rec.HashPolicy},
		{"Registered", rec.TimestampUTC},
		{"Image size", fmt.Sprintf("%dx%dx%d", s.ImageSize[1], s.ImageSize[0], s.ImageSize[2])},
		{"Keypoints", strconv.Itoa(s.KeypointCount)},
		{"Feature values", fmt.Sprintf("%d (mean %.4f)", s.FeatureValueCount, s.FeatureValueMean)},
	}
	if s.SimulatedFeatureCount > 0 {
		rows = append(rows, []string{"Simulated", fmt.Sprintf("%d (mean %.4f)", s.SimulatedFeatureCount, s.SimulatedFeatureMean)})
	}
	return renderTable([]string{"Field", "Value"}, rows, nil, pretty)
}

func renderVerification(res types.VerificationResult, pretty bool) string {
	verdict := "NOT AUTHENTIC"
	if res.IsAuthentic {
		verdict = "AUTHENTIC"
	}
	return renderTable([]string{"Field", "Value"}, [][]string{
		{"Result", verdict},
		{"Computed", res.ComputedHash},
		{"Expected", res.ExpectedHash},
	}, nil, pretty)
}

func renderItem(item types.StoredItem, intact bool, pretty bool) string {
	f := item.DNA.Features
	integrity := "ok"
	if !intact {
		integrity = "MISMATCH"
	}
	means := func(v [3]float64) string {
		parts := make([]string, len(v))
		for i, x := range v {
			parts[i] = strconv.FormatFloat(x, 'f', 2, 64)
		}
		return strings.Join(parts, ", ")
	}
	rows := [][]string{
		{"Item", item.DNA.ItemID},
		{"Hash", item.Record.HashHex},
		{"Algorithm / policy", item.Record.HashAlgorithm + " / " + item.Record.HashPolicy},
		{"Registered", item.DNA.TimestampUTC},
		{"Schema", item.DNA.SchemaVersion},
		{"Source", item.SourcePath},
		{"Run", item.RunID},
		{"Color means (RGB)", means(f.ColorMeans)},
		{"Color means (HSV)", means(f.ColorMeansHSV)},
		{"Keypoints", strconv.Itoa(f.KeypointCount)},
		{"Edge density", strconv.FormatFloat(f.EdgeDensity, 'f', 4, 64)},
		{"Gradient", fmt.Sprintf("%.2f ± %.2f", f.GradientMean, f.GradientStd)},
		{"Brightness", fmt.Sprintf("%.2f ± %.2f", f.BrightnessMean, f.BrightnessStd)},
		{"Contrast", strconv.FormatFloat(f.Contrast, 'f', 4, 64)},
		{"Stored hash check", integrity},
	}
	return renderTable([]string{"Field", "Value"}, rows, nil, pretty)
}
