// gridplan - офлайн-планировщик сетки по истории цен из CSV.
// Границы берутся из полос Боллинджера, ордера не отправляются.
package main

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"grid-executor/internal/backtest"
	"grid-executor/internal/config"
	"grid-executor/internal/service/exchange"
	"grid-executor/internal/service/strategy"
)

func main() {
	app := cli.NewApp()
	app.Name = "gridplan"
	app.Usage = "suggest a grid range from a kline CSV and print the resulting ladder"
	app.Version = "0.1.0"

	var (
		configPath string
		csvPath    string
		symbol     string
		qty        string
		levels     int
		period     int
		deviation  float64
	)

	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config, c", Usage: "path to the YAML configuration", Destination: &configPath},
		cli.StringFlag{Name: "csv", Usage: "timestamp,open,high,low,close,volume file", Destination: &csvPath},
		cli.StringFlag{Name: "symbol, s", Value: "BTCUSDT", Destination: &symbol},
		cli.StringFlag{Name: "qty, q", Value: "0.001", Usage: "quantity per level", Destination: &qty},
		cli.IntFlag{Name: "levels, n", Value: 10, Destination: &levels},
		cli.IntFlag{Name: "period", Value: 20, Usage: "Bollinger period in bars", Destination: &period},
		cli.Float64Flag{Name: "deviation", Value: 2, Usage: "band width in standard deviations", Destination: &deviation},
	}

	app.Action = func(c *cli.Context) error {
		if csvPath == "" {
			return cli.NewExitError("--csv is required", 2)
		}
		cfg, err := config.Load(configPath)
		if err != nil {
			return cli.NewExitError(err.Error(), 2)
		}
		rules, err := cfg.RuleBook()
		if err != nil {
			return cli.NewExitError(err.Error(), 2)
		}
		rule := rules.Lookup(symbol)

		klines, err := backtest.LoadKlinesFromCSV(csvPath)
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		closes := backtest.Closes(klines)
		r, err := strategy.SuggestRange(closes, period, deviation, rule)
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}

		v := exchange.NewValidator(rules)
		if err := v.CheckGridParams(symbol, r.Min.String(), r.Max.String(), qty); err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		if err := v.CheckGridLevels(levels); err != nil {
			return cli.NewExitError(err.Error(), 1)
		}

		last := decimal.NewFromFloat(closes[len(closes)-1])
		orders, err := strategy.Generate(strategy.GridParams{
			Symbol:         symbol,
			MinPrice:       r.Min,
			MaxPrice:       r.Max,
			Levels:         levels,
			ReferencePrice: last,
			Quantity:       qty,
		}, rule)
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}

		fmt.Printf("bars: %d, last close: %s\n", len(klines), last.String())
		fmt.Printf("range: %s .. %s (middle %s)\n", r.Min.String(), r.Max.String(), r.Middle.String())
		for i, o := range orders {
			fmt.Printf("%2d  %-4s %s @ %s\n", i+1, o.Side, o.Quantity, o.Price)
		}
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Ошибка планировщика: %v", err)
	}
}
