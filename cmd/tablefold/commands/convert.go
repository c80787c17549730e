package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tablefold/tablefold/cmd/tablefold/ui"
	"github.com/tablefold/tablefold/internal/config"
	"github.com/tablefold/tablefold/internal/domain"
	"github.com/tablefold/tablefold/internal/encode"
	"github.com/tablefold/tablefold/internal/extract"
	"github.com/tablefold/tablefold/internal/observability"
	"github.com/tablefold/tablefold/internal/pagerange"
	"github.com/tablefold/tablefold/internal/render"
	"github.com/tablefold/tablefold/internal/sheet"
)

var (
	convertInput       string
	convertOutput      string
	convertPages       string
	convertOrientation string
	convertFontSize    string
	convertAutoWidth   bool
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert a single file without the queue",
	Long: `Convert one file in place: a PDF becomes an .xlsx spreadsheet of its
extracted tables, an .xlsx spreadsheet becomes a paginated PDF. The direction
is inferred from the input file's extension.`,
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVarP(&convertInput, "input", "i", "", "input file (required)")
	convertCmd.Flags().StringVarP(&convertOutput, "output", "o", "", "output file (defaults next to the input)")
	convertCmd.Flags().StringVarP(&convertPages, "pages", "p", "", `page or sheet selection, e.g. "1,3-5" (default all)`)
	convertCmd.Flags().StringVar(&convertOrientation, "orientation", "", "pdf orientation: portrait or landscape")
	convertCmd.Flags().StringVar(&convertFontSize, "font-size", "", "pdf font size: small, medium or large")
	convertCmd.Flags().BoolVar(&convertAutoWidth, "auto-width", true, "size pdf columns to their content")
	convertCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := cliLogger()

	switch strings.ToLower(filepath.Ext(convertInput)) {
	case ".pdf":
		return convertDocToSheet(ctx, cfg, logger)
	case ".xlsx", ".xlsm":
		return convertSheetToDoc(ctx, cfg, logger)
	default:
		return fmt.Errorf("unsupported input type %q: expected .pdf, .xlsx or .xlsm", filepath.Ext(convertInput))
	}
}

func convertDocToSheet(ctx context.Context, cfg *config.Config, logger *observability.Logger) error {
	ui.Section("Document to Spreadsheet")
	ui.Info("Input: %s", convertInput)

	client, err := extract.NewClient(extract.Config{
		APIKey:         cfg.Extraction.APIKey,
		Model:          cfg.Extraction.Model,
		RequestTimeout: cfg.Extraction.RequestTimeout,
		MaxRetries:     cfg.Extraction.MaxRetries,
	}, logger)
	if err != nil {
		return err
	}
	renderer := render.NewRenderer(cfg.Render.JPEGQuality)

	pageCount, err := renderer.PageCount(ctx, convertInput)
	if err != nil {
		return err
	}
	pages := pagerange.Parse(convertPages, pageCount)
	if len(pages) == 0 {
		return fmt.Errorf("page selection %q resolves to no pages (document has %d)", convertPages, pageCount)
	}
	ui.Verbose("document has %d pages, converting %d", pageCount, len(pages))

	// One render call per page so the bar tracks real progress.
	bar := ui.NewProgressBar(int64(len(pages)), "Rendering pages")
	images := make([]domain.PageImage, 0, len(pages))
	for _, page := range pages {
		rendered, err := renderer.RenderPages(ctx, convertInput, []int{page})
		if err != nil {
			bar.Finish()
			return err
		}
		images = append(images, rendered...)
		bar.Add(1)
	}
	bar.Finish()

	sp := ui.NewSpinner("Extracting tables...")
	sp.Start()
	tables, err := client.ExtractTables(ctx, images)
	sp.Stop()
	if err != nil {
		return err
	}
	if len(tables) == 0 {
		return fmt.Errorf("no tables detected in the selected pages")
	}

	sheets := make([]sheet.Sheet, len(tables))
	for i, t := range tables {
		sheets[i] = sheet.FromRaw(t.Name, t.Rows)
	}
	data, err := encode.NewXLSX().EncodeSpreadsheet(sheets)
	if err != nil {
		return err
	}

	out := outputPath(".xlsx")
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	ui.Success("Extracted %d table(s) to %s", len(sheets), out)
	return nil
}

func convertSheetToDoc(ctx context.Context, cfg *config.Config, logger *observability.Logger) error {
	ui.Section("Spreadsheet to Document")
	ui.Info("Input: %s", convertInput)

	sp := ui.NewSpinner("Reading sheets...")
	sp.Start()
	tables, err := encode.NewXLSX().ReadSheets(ctx, convertInput)
	sp.Stop()
	if err != nil {
		return err
	}

	sheets := make([]sheet.Sheet, len(tables))
	for i, t := range tables {
		sheets[i] = sheet.FromRaw(t.Name, t.Rows)
	}

	opts := domain.DefaultOutputOptions(domain.ModeSheetToDoc)
	if convertOrientation != "" {
		opts.Orientation = convertOrientation
	}
	if convertFontSize != "" {
		opts.FontSize = convertFontSize
	}
	opts.AutoWidth = convertAutoWidth

	selection := pagerange.Parse(convertPages, len(sheets))
	data, err := encode.NewPDF().EncodeDocument(sheets, opts, selection)
	if err != nil {
		return err
	}

	out := outputPath(".pdf")
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	ui.Success("Rendered %d sheet(s) to %s", len(selection), out)
	return nil
}

func outputPath(ext string) string {
	if convertOutput != "" {
		return convertOutput
	}
	base := strings.TrimSuffix(convertInput, filepath.Ext(convertInput))
	return base + ext
}

func cliLogger() *observability.Logger {
	if !verbose {
		return observability.Nop()
	}
	return observability.NewLogger(observability.LogConfig{
		Level:       "debug",
		Format:      "console",
		ServiceName: "tablefold",
	})
}
