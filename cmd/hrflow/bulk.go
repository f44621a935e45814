package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gartstein/hrflow/internal/hrflow/roster"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var bulkFlags struct {
	roster string
	outDir string
}

var bulkCmd = &cobra.Command{
	Use:   "bulk",
	Short: "Generate documents for every valid row of a CSV or XLSX roster",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer syncLogger(logger)

		data, err := os.ReadFile(bulkFlags.roster)
		if err != nil {
			return fmt.Errorf("read roster: %w", err)
		}
		rows, err := roster.Parse(data, roster.DetectFormat(bulkFlags.roster, data), roster.Options{})
		if err != nil {
			return err
		}
		for _, r := range rows {
			if !r.Valid {
				logger.Warn("Skipping roster row", zap.Int("line", r.Line), zap.Strings("errors", r.Errors))
			}
		}
		employees := roster.Employees(rows)
		if len(employees) == 0 {
			return fmt.Errorf("roster %s has no valid rows", bulkFlags.roster)
		}

		a, err := newApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := os.MkdirAll(bulkFlags.outDir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		var failed int
		for _, res := range a.docs.BulkGenerate(cmd.Context(), employees) {
			for _, d := range res.Documents {
				if d.Error != "" {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "%s %s: %s\n", res.EmployeeID, d.DocumentType, d.Error)
					continue
				}
				payload, err := base64.StdEncoding.DecodeString(d.Base64Data)
				if err != nil {
					return fmt.Errorf("decode %s %s: %w", res.EmployeeID, d.DocumentType, err)
				}
				path := filepath.Join(bulkFlags.outDir, fmt.Sprintf("%s-%s.pdf", res.EmployeeID, d.DocumentType))
				if err := os.WriteFile(path, payload, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", path, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d documents failed", failed)
		}
		return nil
	},
}

func init() {
	bulkCmd.Flags().StringVarP(&bulkFlags.roster, "roster", "r", "", "CSV or XLSX roster file")
	bulkCmd.Flags().StringVarP(&bulkFlags.outDir, "out", "o", "documents", "Output directory")
	_ = bulkCmd.MarkFlagRequired("roster")
}
