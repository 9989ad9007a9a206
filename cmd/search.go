package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/pricescout/internal/domain"
	"github.com/jonesrussell/pricescout/internal/scraper"
	"github.com/jonesrussell/pricescout/internal/search"
	"github.com/jonesrussell/pricescout/internal/stream"
)

func searchCommand() *cobra.Command {
	var (
		vendors    []string
		brands     []string
		minPrice   float64
		maxPrice   float64
		maxResults int
		timeout    time.Duration
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a one-shot search and stream results to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			scrapers, err := scraper.DefaultRegistry().BuildAll(cfg.Vendors, log)
			if err != nil {
				return fmt.Errorf("building scrapers: %w", err)
			}

			hub := stream.NewHub(log, cfg.Search.ClientBufferSize)
			registry := search.NewRegistry(cfg.Search.Retention, hub, log)
			orch := search.NewOrchestrator(cfg.Search, scrapers, hub, registry, nil, nil, log)

			filters := domain.Filters{Vendors: vendors, Brands: brands}
			if minPrice > 0 {
				filters.MinPrice = &minPrice
			}
			if maxPrice > 0 {
				filters.MaxPrice = &maxPrice
			}

			s, err := orch.CreateSearch(args[0], filters, domain.Options{
				MaxResults: maxResults,
				Timeout:    timeout,
			})
			if err != nil {
				return err
			}

			events, cancel, err := hub.Subscribe(s.ID())
			if err != nil {
				return err
			}
			defer cancel()

			for ev := range events {
				if err := printEvent(ev, asJSON); err != nil {
					return err
				}
			}

			if !asJSON {
				printSummary(s.Snapshot())
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&vendors, "vendors", nil, "restrict the search to these vendor ids")
	cmd.Flags().StringSliceVar(&brands, "brands", nil, "keep only these brands")
	cmd.Flags().Float64Var(&minPrice, "min-price", 0, "minimum price in GTQ")
	cmd.Flags().Float64Var(&maxPrice, "max-price", 0, "maximum price in GTQ")
	cmd.Flags().IntVar(&maxResults, "max-results", 0, "max results per vendor (default from config)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "overall search timeout (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit raw events as JSON lines")

	return cmd
}

func printEvent(ev domain.Event, asJSON bool) error {
	if asJSON {
		line, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		fmt.Println(string(line))
		return nil
	}

	switch data := ev.Data.(type) {
	case domain.SearchStartedData:
		fmt.Printf("searching %q across %d vendors\n", data.Query, data.VendorCount)
	case domain.VendorStartedData:
		fmt.Printf("  %s: searching...\n", data.VendorID)
	case domain.ProductFoundData:
		fmt.Printf("  %s: %s  Q%.2f\n", data.VendorID, data.Product.Name, data.Product.Price)
	case domain.VendorCompletedData:
		fmt.Printf("  %s: done, %d products in %dms\n", data.VendorID, data.ProductCount, data.DurationMs)
	case domain.VendorErrorData:
		fmt.Printf("  %s: failed (%s)\n", data.VendorID, data.Reason)
	case domain.SearchFailedData:
		fmt.Fprintf(os.Stderr, "search failed: %s\n", data.Message)
	}
	return nil
}

func printSummary(snap domain.Snapshot) {
	fmt.Printf("\n%d products (%s)\n", snap.TotalResults, snap.Status)
	if snap.Stats != nil {
		fmt.Printf("prices: Q%.2f to Q%.2f, average Q%.2f\n",
			snap.Stats.Lowest, snap.Stats.Highest, snap.Stats.Average)
	}
}
