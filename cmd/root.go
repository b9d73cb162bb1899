package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/carelane/chartscan/internal/config"
	"github.com/carelane/chartscan/internal/extract"
	"github.com/carelane/chartscan/internal/fields"
	"github.com/carelane/chartscan/internal/processor"
	"github.com/carelane/chartscan/internal/reconcile"
	"github.com/carelane/chartscan/pkg/anthropic"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "chartscan",
	Short: "Medical chart OCR and field extraction",
	Long:  "Ingests scanned medical PDFs, extracts text via parallel OCR, pulls a fixed schema of clinical fields through Claude, and reconciles each field back to its location on the page.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// newProcessor wires the pipeline components from config.
func newProcessor() (*processor.Processor, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic.key is required (set CHARTSCAN_ANTHROPIC_KEY)")
	}

	aiClient := anthropic.NewClient(cfg.Anthropic.Key)
	extractor := extract.New(cfg.OCR, cfg.PDF, nil)
	fieldExtractor := fields.New(aiClient, cfg.Anthropic, cfg.Extract)
	reconciler := reconcile.New(cfg.Reconcile)

	return processor.New(extractor, fieldExtractor, reconciler), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
