package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"foodorder/internal/config"
	"foodorder/internal/infra/db"
	infraRepo "foodorder/internal/infra/repository"
	"foodorder/internal/logger"
	"foodorder/internal/usecase"

	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

const usage = `usage: ordersctl <command> [flags]

commands:
  migrate                     create or update tables
  clear-cart -customer ID     empty a customer's cart
  store-stats -store ID       print order statistics for a store
  audit -order ID [-limit N]  print audit log entries for an order
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "ordersctl:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(out, usage)
		return errors.New("command is required")
	}
	cmd, err := parseCommand(args[0], args[1:])
	if err != nil {
		return err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(logger.Options{Service: "ordersctl", Env: cfg.GoEnv, Level: cfg.LogLevel, Out: os.Stderr})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gormDB, err := db.Connect(cfg.DB)
	if err != nil {
		return err
	}

	switch cmd.name {
	case "migrate":
		if err := db.Migrate(gormDB); err != nil {
			return err
		}
		fmt.Fprintln(out, "migrated")
		return nil

	case "clear-cart":
		uc := usecase.NewCartUsecase(infraRepo.NewTxManagerGorm(gormDB), infraRepo.NewFoodGormRepository(gormDB), log)
		if _, err := uc.Clear(ctx, cmd.id); err != nil {
			return err
		}
		fmt.Fprintf(out, "cart of customer %d cleared\n", cmd.id)
		return nil

	case "store-stats":
		return storeStats(ctx, gormDB, cmd.id, out)

	case "audit":
		logs, err := infraRepo.NewAuditLogGormRepository(gormDB).List(ctx, auditFilter(cmd))
		if err != nil {
			return err
		}
		return renderAudit(out, logs)
	}
	return nil
}

func storeStats(ctx context.Context, gormDB *gorm.DB, storeID int64, out io.Writer) error {
	uc := usecase.NewStoreOrderUsecase(
		infraRepo.NewTxManagerGorm(gormDB),
		infraRepo.NewOrderGormRepository(gormDB),
		infraRepo.NewOrderItemGormRepository(gormDB),
		logger.Discard(),
	)
	stats, err := uc.Stats(ctx, storeID)
	if err != nil {
		return err
	}
	return renderStats(out, storeID, stats)
}

type command struct {
	name  string
	id    int64
	limit int
}

func parseCommand(name string, args []string) (command, error) {
	cmd := command{name: name}
	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	flags.SetOutput(io.Discard)

	switch name {
	case "migrate":
	case "clear-cart":
		flags.Int64Var(&cmd.id, "customer", 0, "customer id")
	case "store-stats":
		flags.Int64Var(&cmd.id, "store", 0, "store id")
	case "audit":
		flags.Int64Var(&cmd.id, "order", 0, "order id")
		flags.IntVar(&cmd.limit, "limit", 50, "max rows")
	default:
		return command{}, fmt.Errorf("unknown command %q", name)
	}

	if err := flags.Parse(args); err != nil {
		return command{}, fmt.Errorf("%s: %w", name, err)
	}
	if name != "migrate" && cmd.id <= 0 {
		return command{}, fmt.Errorf("%s: id flag must be > 0", name)
	}
	return cmd, nil
}
