package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"alpha-volume-bot/internal/eod"
	"alpha-volume-bot/internal/logger"
	"alpha-volume-bot/internal/store"
)

func main() {
	dir := flag.String("dir", "", "directory of saved order-history pages (required)")
	day := flag.String("day", "", "only report this trading day, YYYY-MM-DD (optional)")
	writeCSV := flag.Bool("csv", false, "write the EOD CSV for every reported day")
	format := flag.String("format", "text", "output format: text or json")
	configPath := flag.String("config", "", "config file for selectors, log_dir and points multiplier (optional)")
	flag.Parse()

	if *dir == "" {
		fmt.Println("Error: -dir is required")
		flag.Usage()
		os.Exit(1)
	}

	_ = godotenv.Load()
	if err := logger.Init(); err != nil {
		fmt.Printf("Error initializing logger: %v\n", err)
		os.Exit(1)
	}

	cfg := store.Defaults()
	if *configPath != "" {
		var err error
		if cfg, err = store.LoadReportConfig(*configPath); err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	sums, stats, err := reconcile(context.Background(), cfg, *dir, *day)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if len(sums) == 0 {
		fmt.Println("No filled trades found.")
		os.Exit(0)
	}

	content, err := generateReport(sums, ReportFormat(*format))
	if err != nil {
		fmt.Printf("Error generating report: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(content)

	if *writeCSV {
		summarizer := eod.NewSummarizer(cfg.LogDir, decimal.NewFromFloat(cfg.Stats.PointsMultiplier))
		for _, s := range stats {
			path, err := summarizer.WriteDay(s)
			if err != nil {
				fmt.Printf("Error writing CSV for %s: %v\n", s.Day, err)
				os.Exit(1)
			}
			fmt.Printf("EOD CSV written: %s\n", path)
		}
	}
}
