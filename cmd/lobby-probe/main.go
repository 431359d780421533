// Command lobby-probe logs in with a test account, prints the visible
// tables and follows the wallet balance for a while.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"slot-lobby/internal/config"
	"slot-lobby/internal/directory"
	"slot-lobby/internal/lobby"
	"slot-lobby/internal/logging"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load(".env")

	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logCfg.Component = "probe"
	if err := logging.Init(logCfg); err != nil {
		panic(err)
	}
	clientCfg, err := config.LoadClient()
	if err != nil {
		log.Fatal().Err(err).Msg("load client config failed")
	}
	probeCfg, err := config.LoadProbe()
	if err != nil {
		log.Fatal().Err(err).Msg("load probe config failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := lobby.New(lobby.Options{Config: clientCfg})
	if err != nil {
		log.Fatal().Err(err).Msg("lobby init failed")
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		app.Close(closeCtx)
	}()
	app.Start(ctx)

	if err := app.Login(ctx, probeCfg.Username, probeCfg.Password); err != nil {
		log.Error().Err(err).Str("username", probeCfg.Username).Msg("probe_login_failed")
		return
	}

	tables := app.VisibleTables(directory.Filters{Tables: probeCfg.Filter}, "")
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tRUNTIME\tSLUG")
	for _, t := range tables {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", t.TableID, t.TableName, t.Category, t.Runtime, t.Slug)
	}
	_ = tw.Flush()
	log.Info().Int("tables", len(tables)).Str("filter", probeCfg.Filter).Msg("probe_tables_listed")

	watch(ctx, app, probeCfg.Watch)

	if err := app.Logout(ctx); err != nil {
		log.Warn().Err(err).Msg("probe_logout_failed")
	}
}

// watch logs every balance change until d elapses or ctx ends.
func watch(ctx context.Context, app *lobby.App, d time.Duration) {
	if d <= 0 {
		return
	}
	deadline := time.NewTimer(d)
	defer deadline.Stop()
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var last float64
	seen := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			return
		case <-ticker.C:
			v, ok := app.Balance()
			if !ok || (seen && v == last) {
				continue
			}
			last, seen = v, true
			log.Info().Float64("balance", v).Bool("connected", app.Socket.IsConnected()).Msg("probe_balance")
		}
	}
}
