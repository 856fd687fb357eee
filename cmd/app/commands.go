package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"grid-executor/internal/interfaces"
	"grid-executor/internal/model"
	"grid-executor/internal/service/event"
	"grid-executor/internal/service/exchange"
	"grid-executor/internal/service/marketdata"
	"grid-executor/internal/service/strategy"
	"grid-executor/internal/service/trading"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const referenceWait = 15 * time.Second

func orderCommand() cli.Command {
	return cli.Command{
		Name:  "order",
		Usage: "place a single MARKET, LIMIT or STOP_LIMIT order",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "symbol, s", Value: "BTCUSDT"},
			cli.StringFlag{Name: "side", Usage: "BUY or SELL"},
			cli.StringFlag{Name: "type, t", Value: "LIMIT", Usage: "MARKET, LIMIT or STOP_LIMIT"},
			cli.StringFlag{Name: "qty, q", Usage: "order quantity"},
			cli.StringFlag{Name: "price, p", Usage: "limit price"},
			cli.StringFlag{Name: "stop", Usage: "stop trigger price"},
		},
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			side, err := model.ParseSide(c.String("side"))
			if err != nil {
				return err
			}
			typ, err := model.ParseOrderType(c.String("type"))
			if err != nil {
				return err
			}
			order := model.OrderRequest{
				Symbol:    strings.ToUpper(strings.TrimSpace(c.String("symbol"))),
				Side:      side,
				Type:      typ,
				Quantity:  strings.TrimSpace(c.String("qty")),
				Price:     strings.TrimSpace(c.String("price")),
				StopPrice: strings.TrimSpace(c.String("stop")),
			}
			if typ.NeedsPrice() {
				order.TimeInForce = model.TimeInForceGTC
			}
			if err := exchange.NewValidator(rt.rules).CheckOrder(order); err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()
			res, err := rt.executor.Submit(ctx, rt.mode, order)
			if err != nil {
				return err
			}
			return printJSON(res)
		}),
	}
}

func gridCommand() cli.Command {
	return cli.Command{
		Name:  "grid",
		Usage: "generate a limit order ladder and submit it sequentially",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "symbol, s", Value: "BTCUSDT"},
			cli.StringFlag{Name: "min", Usage: "lowest grid price"},
			cli.StringFlag{Name: "max", Usage: "highest grid price"},
			cli.IntFlag{Name: "levels, n", Value: 10},
			cli.StringFlag{Name: "qty, q", Usage: "quantity per level"},
			cli.StringFlag{Name: "ref", Usage: "reference price; the live mid is used when empty"},
			cli.BoolFlag{Name: "dry-run", Usage: "print the ladder without submitting"},
		},
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			symbol := strings.ToUpper(strings.TrimSpace(c.String("symbol")))
			v := exchange.NewValidator(rt.rules)
			if err := v.CheckGridParams(symbol, c.String("min"), c.String("max"), c.String("qty")); err != nil {
				return err
			}
			if err := v.CheckGridLevels(c.Int("levels")); err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			ref, err := referencePrice(ctx, rt, symbol, c.String("ref"))
			if err != nil {
				return err
			}
			rule := rt.rules.Lookup(symbol)
			orders, err := strategy.Generate(strategy.GridParams{
				Symbol:         symbol,
				MinPrice:       decimal.RequireFromString(strings.TrimSpace(c.String("min"))),
				MaxPrice:       decimal.RequireFromString(strings.TrimSpace(c.String("max"))),
				Levels:         c.Int("levels"),
				ReferencePrice: ref,
				Quantity:       strings.TrimSpace(c.String("qty")),
			}, rule)
			if err != nil {
				return err
			}
			log.WithFields(log.Fields{
				"symbol": symbol,
				"ref":    ref.String(),
				"orders": len(orders),
			}).Info("[Сетка] уровни рассчитаны")

			if c.Bool("dry-run") {
				return printJSON(orders)
			}
			summary := trading.NewDispatcher(rt.executor, rt.cfg.Dispatch.OrderDelay).Dispatch(ctx, orders, rt.mode)
			for _, o := range summary.Outcomes {
				if o.Err != nil {
					fmt.Printf("#%d %s %s @ %s: %v\n", o.Index+1, o.Order.Side, o.Order.Quantity, o.Order.Price, o.Err)
					continue
				}
				fmt.Printf("#%d %s %s @ %s: order %d %s\n", o.Index+1, o.Order.Side, o.Order.Quantity, o.Order.Price, o.Result.OrderID, o.Result.Status)
			}
			fmt.Printf("placed %d, failed %d\n", summary.Success, summary.Fail)
			return nil
		}),
	}
}

func cancelCommand() cli.Command {
	return cli.Command{
		Name:      "cancel",
		Usage:     "cancel an order by exchange id or client order id",
		ArgsUsage: "<order-id|client-order-id>",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "symbol, s", Value: "BTCUSDT"},
		},
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			ctx, stop := signalContext()
			defer stop()
			res, err := rt.executor.Cancel(ctx, rt.mode, strings.ToUpper(c.String("symbol")), c.Args().First())
			if err != nil {
				return err
			}
			return printJSON(res)
		}),
	}
}

func watchCommand() cli.Command {
	return cli.Command{
		Name:  "watch",
		Usage: "stream mid prices and, in live mode, order updates; type a symbol and Enter to switch",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "symbol, s", Value: "BTCUSDT"},
		},
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			ctx, stop := signalContext()
			defer stop()

			tracker := newTracker(rt)
			tracker.OnTick = func(t model.PriceTick) {
				fmt.Printf("%s %s mid %s\n", t.Time.Format("15:04:05.000"), t.Symbol, t.Display)
			}
			if err := tracker.Start(ctx, c.String("symbol")); err != nil {
				return err
			}
			defer tracker.Close()

			go readSymbols(ctx, tracker)

			if lm, ok := rt.mode.(model.Live); ok {
				us := event.NewUserStream(rt.api, lm.Credentials, rt.cfg.Exchange.WSURL, event.UserStreamConfig{
					ReconnectDelay:  rt.cfg.Stream.ReconnectDelay,
					RenewalInterval: rt.cfg.Stream.ListenKeyRenewal,
					FailureLimit:    rt.cfg.Stream.RenewalFailureLimit,
				})
				if err := us.Start(ctx); err != nil {
					return err
				}
				defer us.Close()
				go printUserStream(ctx, us)
			}

			<-ctx.Done()
			log.Info("Остановка по сигналу")
			return nil
		}),
	}
}

func journalCommand() cli.Command {
	return cli.Command{
		Name:  "journal",
		Usage: "print the most recent journal events",
		Flags: []cli.Flag{
			cli.IntFlag{Name: "limit, n", Value: 20},
		},
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			if rt.journal == nil {
				return errors.New("journal is disabled")
			}
			events, err := rt.journal.Recent(context.Background(), c.Int("limit"))
			if err != nil {
				return err
			}
			for i := len(events) - 1; i >= 0; i-- {
				ev := events[i]
				fmt.Printf("%s %-5s %-26s %-10s %s\n", ev.Time.Format(time.RFC3339), ev.Level, ev.Event, ev.Symbol, ev.Message)
			}
			return nil
		}),
	}
}

func newTracker(rt *runtime) *marketdata.Tracker {
	factory := func(symbol string) interfaces.TickerSource {
		return event.NewTickerStream(rt.cfg.Exchange.WSURL, symbol, rt.cfg.Stream.ReconnectDelay)
	}
	return marketdata.NewTracker(factory, rt.cfg.Stream.SymbolDebounce, 0)
}

// referencePrice parses raw, or waits for the first live mid of symbol.
func referencePrice(ctx context.Context, rt *runtime, symbol, raw string) (decimal.Decimal, error) {
	if raw = strings.TrimSpace(raw); raw != "" {
		ref, err := decimal.NewFromString(raw)
		if err != nil || !ref.IsPositive() {
			return decimal.Zero, &model.ValidationError{Field: "ref", Reason: "not a positive number: " + raw}
		}
		return ref, nil
	}

	tracker := newTracker(rt)
	first := make(chan model.PriceTick, 1)
	tracker.OnTick = func(t model.PriceTick) {
		select {
		case first <- t:
		default:
		}
	}
	if err := tracker.Start(ctx, symbol); err != nil {
		return decimal.Zero, err
	}
	defer tracker.Close()

	log.WithField("symbol", symbol).Info("[Маркет-данные] ожидаем первую цену")
	timer := time.NewTimer(referenceWait)
	defer timer.Stop()
	select {
	case t := <-first:
		return decimal.NewFromFloat(t.Mid), nil
	case <-timer.C:
		return decimal.Zero, errors.Errorf("no price for %s within %s", symbol, referenceWait)
	case <-ctx.Done():
		return decimal.Zero, ctx.Err()
	}
}

func readSymbols(ctx context.Context, tracker *marketdata.Tracker) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		if symbol := strings.TrimSpace(scanner.Text()); symbol != "" {
			tracker.SetSymbol(symbol)
		}
	}
}

func printUserStream(ctx context.Context, us *event.UserStream) {
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-us.Updates():
			fmt.Printf("%s order %d %s %s %s filled %s/%s\n",
				u.EventTime.Format("15:04:05.000"), u.OrderID, u.Symbol, u.Side, u.Status, u.ExecutedQty, u.OrigQty)
		case e := <-us.RenewalErrors():
			fmt.Printf("listen key renewal failed (%d in a row): %v\n", e.Consecutive, e.Err)
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
