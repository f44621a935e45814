package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/gartstein/hrflow/internal/hrflow/models"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var packFlags struct {
	employee string
	types    []string
	out      string
	options  models.PackOptions
}

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Assemble an onboarding pack for one employee",
	Example: `  hrflow pack --employee priya.json --types offer-letter,nda,appointment-letter \
    --merge --compress --protect --out priya-pack.pdf`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer syncLogger(logger)

		emp, err := readEmployee(packFlags.employee)
		if err != nil {
			return err
		}
		categories := make([]models.Category, 0, len(packFlags.types))
		for _, t := range packFlags.types {
			c, err := models.ParseCategory(strings.TrimSpace(t))
			if err != nil {
				return err
			}
			categories = append(categories, c)
		}

		a, err := newApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		progress := func(step string, percent int) {
			fmt.Fprintf(cmd.ErrOrStderr(), "[%3d%%] %s\n", percent, step)
		}
		pack, result, err := a.docs.CreatePack(cmd.Context(), emp, categories, packFlags.options, progress)
		if err != nil {
			return err
		}
		if err := os.WriteFile(packFlags.out, result.Data, 0o644); err != nil {
			return fmt.Errorf("write pack: %w", err)
		}
		logger.Info("Pack written",
			zap.String("pack_id", pack.ID),
			zap.String("path", packFlags.out),
			zap.Int("size", result.Size),
			zap.Int("pages", result.PageCount),
		)
		return nil
	},
}

func init() {
	f := packCmd.Flags()
	f.StringVarP(&packFlags.employee, "employee", "e", "", "JSON file with the employee record")
	f.StringSliceVarP(&packFlags.types, "types", "t", []string{"offer-letter", "nda", "appointment-letter"}, "Document types in pack order")
	f.StringVarP(&packFlags.out, "out", "o", "onboarding-pack.pdf", "Output PDF path")
	f.BoolVar(&packFlags.options.Merge, "merge", true, "Merge the documents into one PDF")
	f.BoolVar(&packFlags.options.Compress, "compress", false, "Compress the pack")
	f.BoolVar(&packFlags.options.PasswordProtect, "protect", false, "Protect the pack with the birth-date password (DDMMYYYY)")
	f.BoolVar(&packFlags.options.ConvertToPDFA, "pdfa", false, "Convert the pack to PDF/A")
	f.BoolVar(&packFlags.options.AddWatermark, "watermark", false, "Add a watermark")
	f.StringVar(&packFlags.options.WatermarkText, "watermark-text", "", "Watermark text (default \"Confidential - <company>\")")
	f.BoolVar(&packFlags.options.AddPageNumbers, "page-numbers", false, "Add page numbers")
	_ = packCmd.MarkFlagRequired("employee")
}

func readEmployee(path string) (*models.Employee, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read employee: %w", err)
	}
	var emp models.Employee
	if err := json.Unmarshal(data, &emp); err != nil {
		return nil, fmt.Errorf("parse employee %s: %w", path, err)
	}
	return &emp, nil
}
