package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/target/specops-api/internal/bootstrap"
	"github.com/target/specops-api/internal/core"
	"github.com/target/specops-api/internal/data"
	"github.com/target/specops-api/internal/domain/model"
	"github.com/target/specops-api/internal/migrate"
)

const defaultMigrationTimeout = 5 * time.Minute

type deliveriesOptions struct {
	EventType     string
	CorrelationID int64
	Limit         int
	Offset        int
	JSON          bool
}

func runDeliveries(cc *commandContext, args []string) error {
	fs := flag.NewFlagSet("deliveries", flag.ContinueOnError)
	var opts deliveriesOptions
	fs.StringVar(&opts.EventType, "event-type", "", "Only deliveries for this event type")
	fs.Int64Var(&opts.CorrelationID, "correlation-id", 0, "Only deliveries for this correlation id")
	fs.IntVar(&opts.Limit, "limit", 50, "Maximum rows to return")
	fs.IntVar(&opts.Offset, "offset", 0, "Rows to skip")
	fs.BoolVar(&opts.JSON, "json", false, "Print JSON instead of a table")
	if err := fs.Parse(args); err != nil {
		return err
	}
	list, err := opts.listOptions()
	if err != nil {
		return err
	}

	if !cc.Config.Postgres.Enabled {
		return fmt.Errorf("deliveries: %w (set DB_ENABLED=true)", data.ErrStorageDisabled)
	}
	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{DBConfig: cc.Config.Postgres, Logger: cc.Logger})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer closeDB(cc, db)

	return listDeliveries(cc.Ctx, cc.Out, data.NewDeliveryRepo(db), list, opts.JSON)
}

func (o deliveriesOptions) listOptions() (model.DeliveryListOptions, error) {
	list := model.DeliveryListOptions{Limit: o.Limit, Offset: o.Offset}
	if o.EventType != "" {
		et := model.EventType(o.EventType)
		if !et.Valid() {
			return list, fmt.Errorf("unknown event type %q", o.EventType)
		}
		list.EventType = &et
	}
	if o.CorrelationID != 0 {
		cid := o.CorrelationID
		list.CorrelationID = &cid
	}
	return list, nil
}

func listDeliveries(
	ctx context.Context,
	w io.Writer,
	repo core.DeliveryRepository,
	opts model.DeliveryListOptions,
	asJSON bool,
) error {
	records, err := repo.List(ctx, opts)
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}
	return printDeliveries(w, records)
}

func printDeliveries(w io.Writer, records []*model.DeliveryRecord) error {
	if len(records) == 0 {
		return writef(w, "no deliveries found\n")
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if err := writef(tw, "CREATED\tEVENT\tCORRELATION\tROLE\tRECIPIENT\tTRANSPORT\tSTATUS\tDETAIL\n"); err != nil {
		return err
	}
	for _, r := range records {
		detail := ""
		switch {
		case r.Error != nil:
			detail = *r.Error
		case r.ProviderMessageID != nil:
			detail = *r.ProviderMessageID
		}
		if err := writef(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			r.CreatedAt.UTC().Format(time.RFC3339),
			r.EventType, r.CorrelationID, r.Role, r.Recipient, r.Transport, r.Status, detail,
		); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func runMigrations(cc *commandContext, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	timeout := fs.Duration("timeout", defaultMigrationTimeout, "Maximum time to run migrations")
	dryRun := fs.Bool("dry-run", false, "List pending migrations without applying them")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// Migrations run even with DB_ENABLED=false so the schema can be prepared first.
	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{DBConfig: cc.Config.Postgres, Logger: cc.Logger})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer closeDB(cc, db)

	ctx, cancel := context.WithTimeout(cc.Ctx, *timeout)
	defer cancel()
	if !*dryRun {
		return bootstrap.RunMigrations(ctx, db, cc.Logger)
	}

	pending, err := migrate.Pending(ctx, db)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return writef(cc.Out, "schema is up to date\n")
	}
	for _, v := range pending {
		if err := writef(cc.Out, "pending %s\n", v); err != nil {
			return err
		}
	}
	return nil
}

func closeDB(cc *commandContext, db *sql.DB) {
	if err := db.Close(); err != nil {
		cc.Logger.ErrorContext(cc.Ctx, "close database failed", "error", err)
	}
}
