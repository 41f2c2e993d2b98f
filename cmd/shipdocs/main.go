package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/shipdocs/internal/app"
	"github.com/joseph-ayodele/shipdocs/internal/common"
	"github.com/joseph-ayodele/shipdocs/internal/entity"
	"github.com/joseph-ayodele/shipdocs/internal/export"
	"github.com/joseph-ayodele/shipdocs/internal/locator"
	"github.com/joseph-ayodele/shipdocs/internal/pipeline"
	"github.com/joseph-ayodele/shipdocs/internal/repository"
)

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var orders stringList
	flag.Var(&orders, "order", "order PDF path or gs:// ref (repeatable)")
	var (
		emailRef = flag.String("email", "", "shipment email body (.txt/.eml) path or gs:// ref")
		dir      = flag.String("dir", "", "process every order/email folder under this directory")
		out      = flag.String("out", "", "XLSX report path; a directory when used with -dir")
		asJSON   = flag.Bool("json", false, "print the full outcome as JSON")
		audit    = flag.Bool("audit", false, "record runs in the configured database")
		envFile  = flag.String("env", ".env", "dotenv file to load")
	)
	flag.Parse()

	if *dir == "" && (len(orders) == 0 || *emailRef == "") {
		printError("Error: either -dir or at least one -order and -email are required\n")
		flag.Usage()
		os.Exit(2)
	}
	if err := common.LoadDotEnv(*envFile); err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}

	logger := app.NewLogger(os.Stderr, cfg.LogLevel, false)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store pipeline.RunStore
	if *audit {
		db, err := repository.Open(ctx, repository.ConfigFrom(cfg.Database), logger)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		runs := repository.NewRunRepository(db, logger)
		if err := runs.Migrate(ctx); err != nil {
			logger.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		store = runs
	}

	a, err := app.Build(ctx, cfg, store, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	var pairs []locator.Pair
	if *dir != "" {
		entries, err := a.Locator.List(ctx, *dir)
		if err != nil {
			logger.Error("failed to scan directory", "dir", *dir, "error", err)
			os.Exit(1)
		}
		pairs = locator.Pairs(entries)
		if len(pairs) == 0 {
			logger.Warn("no order/email folders found", "dir", *dir)
		}
	} else {
		pairs = []locator.Pair{{Dir: filepath.Dir(orders[0]), Orders: orders, Email: *emailRef}}
	}

	reports := export.NewService(logger)
	var (
		mu      sync.Mutex
		blocked bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Inbox.Workers)
	for _, p := range pairs {
		g.Go(func() error {
			o, err := processPair(gctx, a, p)
			if err != nil {
				logger.Error("pair failed", "dir", p.Dir, "error", err)
				mu.Lock()
				blocked = true
				mu.Unlock()
				return nil
			}
			if path := reportPath(*out, *dir != "", p); path != "" {
				b, err := reports.ValidationReportXLSX(o)
				if err == nil {
					err = os.WriteFile(path, b, 0o644)
				}
				if err != nil {
					logger.Error("failed to write report", "path", path, "error", err)
				}
			}
			mu.Lock()
			defer mu.Unlock()
			if o.Validation.Blocked() || len(o.Failures) > 0 {
				blocked = true
			}
			if *asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				_ = enc.Encode(o)
			} else {
				printSummary(p, o)
			}
			return nil
		})
	}
	_ = g.Wait()

	if blocked {
		os.Exit(1)
	}
}

func processPair(ctx context.Context, a *app.App, p locator.Pair) (*pipeline.Outcome, error) {
	body, err := a.Locator.Locate(ctx, p.Email)
	if err != nil {
		return nil, err
	}
	inputs := make([]pipeline.OrderInput, 0, len(p.Orders))
	for _, ref := range p.Orders {
		data, err := a.Locator.Locate(ctx, ref)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, pipeline.OrderInput{Filename: filepath.Base(ref), Data: data})
	}
	return a.Processor.ProcessPair(ctx, inputs, string(body))
}

func reportPath(out string, dirMode bool, p locator.Pair) string {
	if out == "" {
		return ""
	}
	if dirMode {
		return filepath.Join(out, filepath.Base(p.Dir)+".xlsx")
	}
	return out
}

func printSummary(p locator.Pair, o *pipeline.Outcome) {
	fmt.Printf("%s: %s\n", p.Dir, strings.ToUpper(string(o.Validation.OverallStatus)))
	for _, ov := range o.Validation.Orders {
		fmt.Printf("  order %s  %-8s  %d/%d matched", ov.OrderNumber, ov.Status, ov.MatchedItems, ov.TotalProductItems)
		if o.BuyerSameAsConsignee[ov.OrderNumber] {
			fmt.Print("  buyer=consignee")
		}
		fmt.Println()
		for _, c := range ov.Items {
			batch := "-"
			if c.BatchNumber != nil {
				batch = *c.BatchNumber
			}
			fmt.Printf("    %-16s %-44.44s %s  batch %s\n", c.Status, c.Description, qty(c), batch)
		}
		for _, n := range ov.Notes {
			fmt.Printf("    note: %s\n", n)
		}
	}
	for _, f := range o.Failures {
		fmt.Printf("  unparsed %s: %s\n", f.Filename, f.Error)
	}
	for _, g := range o.DangerousGoods {
		fmt.Printf("  DG %s (%s): %s across %d line(s)\n", g.ProductName, g.TemplateReference, g.CombinedQuantity, len(g.Members))
	}
}

func qty(c entity.ItemCheck) string {
	q := func(d decimal.NullDecimal) string {
		if !d.Valid {
			return "?"
		}
		return d.Decimal.String()
	}
	return q(c.OrderQuantity) + "/" + q(c.DeclaredQuantity)
}
