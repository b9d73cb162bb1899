package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/carelane/chartscan/internal/model"
)

var (
	processName string
	processJSON string
)

var processCmd = &cobra.Command{
	Use:   "process <document.pdf>",
	Short: "Run the full extraction pipeline on one document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if _, err := os.Stat(path); err != nil {
			return eris.Wrapf(err, "document %s", path)
		}

		name := processName
		if name == "" {
			name = filepath.Base(path)
		}

		proc, err := newProcessor()
		if err != nil {
			return err
		}

		progress := func(status model.ProgressStatus, fraction float64, step, message string) {
			fmt.Fprintf(os.Stderr, "[%-10s] %3.0f%% %-10s %s\n", status, fraction*100, step, message)
		}

		doc, err := proc.Process(cmd.Context(), path, name, progress)
		if err != nil {
			return err
		}

		if processJSON != "" {
			data, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return eris.Wrap(err, "marshal document")
			}
			if err := os.WriteFile(processJSON, data, 0o644); err != nil {
				return eris.Wrapf(err, "write %s", processJSON)
			}
		}

		printDocument(doc)
		return nil
	},
}

func printDocument(doc *model.Document) {
	fmt.Printf("Document:   %s (%s)\n", doc.Name, doc.ID)
	if doc.Extraction != nil {
		fmt.Printf("Extraction: %s, %d pages, confidence %s\n",
			doc.Extraction.Method, doc.PageCount, doc.Extraction.Confidence)
		if n := len(doc.Extraction.PageErrors); n > 0 {
			fmt.Printf("Warnings:   %d page(s) failed\n", n)
		}
	}
	if doc.Fields == nil {
		return
	}
	fmt.Printf("Fields:     method %s\n\n", doc.Fields.Method)
	for _, key := range model.FieldKeys() {
		value := doc.Fields.Get(key)
		if value == "" {
			value = "-"
		}
		fmt.Printf("  %-28s %s\n", model.FieldLabel(key)+":", value)
	}
}

func init() {
	processCmd.Flags().StringVar(&processName, "name", "", "display name (default: file name)")
	processCmd.Flags().StringVar(&processJSON, "json", "", "write full document JSON to this path")
	rootCmd.AddCommand(processCmd)
}
