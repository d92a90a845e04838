// Command mc runs a single analysis from the command line and prints the
// result as JSON on stdout.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"QuantLab/internal/di"
	"QuantLab/internal/domain/models"
	"QuantLab/internal/usecase"
	"QuantLab/pkg/config"
	xhttp "QuantLab/pkg/http"
	"QuantLab/pkg/util"
)

type options struct {
	configPath string
	debug      bool
	action     string
	paths      int
	days       int
	start      string
	end        string
	ticker     string
	ticker2    string
	seed       int64
	window     int
	multiplier float64
	stdMult    int
	features   string
	shift      int
	estimators int
	threshold  float64
	timeout    time.Duration
}

// parseArgs keeps the flag names and defaults of the original mc script.
func parseArgs(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("mc", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "", "config file path (defaults only when empty)")
	fs.BoolVar(&o.debug, "debug", false, "enable debug logging")
	fs.StringVar(&o.action, "action", "simulate", "fetch_data | simulate | compare_stocks | statarb | predict")
	fs.IntVar(&o.paths, "num_sim", 5000, "number of simulated paths")
	fs.IntVar(&o.paths, "n", 5000, "shorthand for -num_sim")
	fs.IntVar(&o.days, "time", 252, "trading days to simulate")
	fs.StringVar(&o.start, "start", "2020-01-01", "history start date")
	fs.StringVar(&o.end, "end", "", "history end date (exclusive, defaults to today)")
	fs.StringVar(&o.ticker, "ticker", "SPY", "primary symbol")
	fs.StringVar(&o.ticker2, "ticker2", "SPY", "second symbol for compare_stocks and statarb")
	fs.Int64Var(&o.seed, "seed", 0, "random seed (0 uses the configured default)")
	fs.IntVar(&o.window, "window", 20, "statarb rolling window")
	fs.Float64Var(&o.multiplier, "multiplier", 2, "statarb spread multiplier")
	fs.IntVar(&o.stdMult, "std_multiplier", 1, "statarb band width in standard deviations")
	fs.StringVar(&o.features, "features", "rsi,macd,pctfrom100ma,prevreturn", "comma separated predictor features")
	fs.IntVar(&o.shift, "shift", 1, "number of lagged copies per feature")
	fs.IntVar(&o.estimators, "estimators", 100, "number of trees")
	fs.Float64Var(&o.threshold, "threshold", 0.5, "probability threshold for a long call")
	fs.DurationVar(&o.timeout, "timeout", 5*time.Minute, "overall deadline")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return o, nil
}

func main() {
	o, err := parseArgs(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	cfg, err := config.LoadWithEnv(o.configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if o.debug {
		cfg.Logger.Level = "debug"
	}
	// Results go to stdout, logs to stderr.
	cfg.Logger.Output = "stderr"

	tk, cleanup, err := di.InitializeToolkit(cfg)
	if err != nil {
		log.Fatalf("initialization failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, o.timeout)

	res, err := run(ctx, tk, o)
	cancel()
	stop()
	cleanup()
	if err != nil {
		log.Fatalf("%s failed (%s): %v", o.action, models.ErrorKind(err), err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		log.Fatalf("encode result: %v", err)
	}
}

func run(ctx context.Context, tk *di.Toolkit, o options) (any, error) {
	switch o.action {
	case "fetch_data":
		req := models.PriceRequest{Symbol: o.ticker, Start: o.start, End: o.end}
		if err := validate(ctx, &req); err != nil {
			return nil, err
		}
		return tk.Prices.Fetch(ctx, req)

	case "simulate":
		req := models.SimulateRequest{Symbol: o.ticker, Start: o.start, End: o.end, Days: o.days, Paths: o.paths, Seed: o.seed}
		if err := validate(ctx, &req); err != nil {
			return nil, err
		}
		res, err := tk.Sim.Simulate(ctx, req, nil)
		if err != nil {
			return nil, err
		}
		summarize(res)
		return res, nil

	case "compare_stocks":
		req := models.CompareRequest{Symbol1: o.ticker, Symbol2: o.ticker2, Start: o.start, End: o.end, Days: o.days, Paths: o.paths, Seed: o.seed}
		if err := validate(ctx, &req); err != nil {
			return nil, err
		}
		res, err := tk.Sim.Compare(ctx, req)
		if err != nil {
			return nil, err
		}
		summarize(&res.First)
		summarize(&res.Second)
		return res, nil

	case "statarb":
		req := models.StatArbRequest{
			Symbol1: o.ticker, Symbol2: o.ticker2, Start: o.start, End: o.end,
			WindowSize: o.window, Multiplier: o.multiplier, StdMultiplier: o.stdMult,
		}
		if err := validate(ctx, &req); err != nil {
			return nil, err
		}
		return tk.Pairs.Run(ctx, req)

	case "predict":
		req := models.PredictRequest{
			Symbol: o.ticker, Start: o.start, End: o.end, Features: util.SplitCSV(o.features),
			Shift: o.shift, Estimators: o.estimators, Threshold: o.threshold,
		}
		if err := validate(ctx, &req); err != nil {
			return nil, err
		}
		return tk.Predict.Run(ctx, req)
	}
	return nil, &models.InvalidParameterError{Name: "action", Value: o.action, Reason: "unknown action"}
}

// validate fills zero fields from struct defaults and runs the same checks as the HTTP layer.
func validate(ctx context.Context, req any) error {
	verr := xhttp.ValidateStruct(ctx, req)
	if verr == nil {
		return nil
	}
	name := "request"
	if verrs, ok := verr.([]xhttp.ValidationError); ok && len(verrs) > 0 {
		name = verrs[0].Field
	}
	return &models.InvalidParameterError{Name: name, Reason: xhttp.ValidationMessage(verr)}
}

func summarize(r *usecase.SimulationReport) {
	log.Printf("%s: %d paths over %d days from $%.2f", r.Symbol, r.Paths, r.Days, r.S0)
	line("Average", r.Mean, r.MeanPct)
	line("Median", r.Median, r.MedianPct)
	line("25th percentile", r.P25, r.P25Pct)
	line("75th percentile", r.P75, r.P75Pct)
}

func line(label string, v, pct *float64) {
	if v == nil || pct == nil {
		log.Printf("%s ending price: undefined", label)
		return
	}
	log.Printf("%s ending price: $%.2f (%.2f%%)", label, *v, *pct)
}
