// Command seo-url-analyzer analyzes a batch of up to ten web page URLs and
// prints the structured results plus flattened heading and link tables as
// one JSON document.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/boopin/seo-url-analyzer/internal/batch"
	"github.com/boopin/seo-url-analyzer/internal/config"
	"github.com/boopin/seo-url-analyzer/internal/input"
	"github.com/boopin/seo-url-analyzer/internal/report"
)

var cli struct {
	Config string   `help:"Path to the YAML configuration file." type:"path"`
	Input  string   `help:"File with URLs to analyze: newline list or CSV with a url column." short:"i" type:"path"`
	Output string   `help:"Write the JSON report here instead of stdout." short:"o" type:"path"`
	Probe  bool     `help:"Probe discovered links for reachability."`
	Quiet  bool     `help:"Suppress progress output." short:"q"`
	URLs   []string `arg:"" optional:"" name:"url" help:"URLs to analyze."`
}

// document is the JSON shape handed to the export/presentation layer.
type document struct {
	*batch.Report
	Tables report.Tables `json:"tables"`
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("seo-url-analyzer"),
		kong.Description("Batch SEO and content analysis for up to ten URLs."),
		kong.UsageOnError(),
	)
	kctx.FatalIfErrorf(run())
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cli.Probe {
		cfg.Probe.Enabled = true
	}

	urls := append([]string(nil), cli.URLs...)
	if cli.Input != "" {
		fromFile, err := input.Load(cli.Input)
		if err != nil {
			return err
		}
		urls = append(urls, fromFile...)
	}
	if len(urls) == 0 {
		return fmt.Errorf("no URLs given: pass them as arguments or via --input")
	}

	var opts []batch.Option
	if !cli.Quiet {
		opts = append(opts, batch.WithProgress(func(completed, total int) {
			fmt.Fprintf(os.Stderr, "analyzed %d/%d\n", completed, total)
		}))
	}

	engine, err := batch.NewEngine(*cfg, opts...)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	batchReport, err := engine.Run(ctx, urls)
	if err != nil {
		return err
	}

	doc := document{
		Report: batchReport,
		Tables: report.Build(batchReport.Results),
	}
	encoded, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	encoded = append(encoded, '\n')

	if cli.Output != "" {
		if err := os.WriteFile(cli.Output, encoded, 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		return nil
	}
	_, err = os.Stdout.Write(encoded)
	return err
}

func loadConfig() (*config.Config, error) {
	if cli.Config == "" {
		cfg := config.Default()
		return &cfg, nil
	}
	return config.Load(cli.Config)
}
