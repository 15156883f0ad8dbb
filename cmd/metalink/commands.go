package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"metalink/internal/models"
	"metalink/pkg/config"
	mlsolana "metalink/pkg/solana"
	"metalink/pkg/solana/metaplex"
	"metalink/schedule"
)

var (
	scheduleFlag = &cli.StringFlag{
		Name:  "schedule",
		Usage: "cron expression with a seconds field, e.g. \"0 */10 * * * *\"",
	}
	nowFlag = &cli.BoolFlag{
		Name:  "now",
		Usage: "run once immediately before the first scheduled tick",
		Value: true,
	}
)

// commands
var (
	linkCommand = &cli.Command{
		Name:   "link",
		Usage:  "Update the mint's metadata, or create it when missing",
		Action: linkAction,
	}
	watchCommand = &cli.Command{
		Name:   "watch",
		Usage:  "Re-run link on a cron schedule until interrupted",
		Flags:  []cli.Flag{scheduleFlag, nowFlag},
		Action: watchAction,
	}
	inspectCommand = &cli.Command{
		Name:   "inspect",
		Usage:  "Show the mint's current metadata without changing it",
		Action: inspectAction,
	}
	profilesCommand = &cli.Command{
		Name:   "profiles",
		Usage:  "List built-in profiles",
		Action: profilesAction,
	}
	eventsCommand = &cli.Command{
		Name:   "events",
		Usage:  "Print link events from the RabbitMQ queue",
		Action: eventsAction,
	}
)

func linkAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	if err := checkKeyFile(cfg); err != nil {
		return err
	}

	rt, err := newRuntime(c.Context, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	outcome, err := rt.runLink(c.Context)
	if err != nil {
		return err
	}
	if !outcome.OK() {
		return errRunFailed
	}
	return nil
}

func watchAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	spec := cfg.WatchSchedule
	if s := c.String(scheduleFlag.Name); s != "" {
		spec = s
	}
	if err := schedule.ValidateSpec(spec); err != nil {
		return err
	}
	if err := checkKeyFile(cfg); err != nil {
		return err
	}

	rt, err := newRuntime(c.Context, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	return schedule.RunLinkSchedule(c.Context, spec, c.Bool(nowFlag.Name), func(ctx context.Context) {
		if _, err := rt.runLink(ctx); err != nil {
			log.WithError(err).Error("Link run failed")
		}
	})
}

func inspectAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	rt, err := newRuntime(c.Context, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	mint, err := parseMint(cfg.Mint)
	if err != nil {
		return err
	}

	res := rt.metadata.FindByMint(c.Context, mint)
	switch res.Status {
	case metaplex.LookupFound:
		printRecord(c.App.Writer, res.Record, cfg.Cluster)
	case metaplex.LookupNotFound:
		fmt.Fprintf(c.App.Writer, "No metadata found for mint %s\n", cfg.Mint)
	default:
		return res.Err
	}
	return nil
}

func printRecord(w io.Writer, record *metaplex.Record, cluster string) {
	fmt.Fprintf(w, "Metadata:         %s\n", record.Address.ToBase58())
	fmt.Fprintf(w, "Mint:             %s\n", record.Mint.ToBase58())
	fmt.Fprintf(w, "Update authority: %s\n", record.UpdateAuthority.ToBase58())
	fmt.Fprintf(w, "Name:             %s\n", record.Fields.Name)
	fmt.Fprintf(w, "Symbol:           %s\n", record.Fields.Symbol)
	fmt.Fprintf(w, "URI:              %s\n", record.Fields.URI)
	fmt.Fprintf(w, "Royalty:          %d bps\n", record.Fields.SellerFeeBasisPoints)
	fmt.Fprintf(w, "Mutable:          %t\n", record.IsMutable)
	fmt.Fprintf(w, "Primary sale:     %t\n", record.PrimarySaleHappened)
	if record.Creators != nil {
		for _, creator := range *record.Creators {
			fmt.Fprintf(w, "Creator:          %s share=%d verified=%t\n", creator.Address.ToBase58(), creator.Share, creator.Verified)
		}
	}
	fmt.Fprintf(w, "Explorer:         %s\n", mlsolana.ExplorerAddressURL(record.Mint.ToBase58(), cluster))
}

func profilesAction(c *cli.Context) error {
	printProfiles(c.App.Writer, config.Profiles())
	return nil
}

func printProfiles(w io.Writer, profiles []config.Profile) {
	for _, p := range profiles {
		fmt.Fprintf(w, "%s\n", p.Name)
		fmt.Fprintf(w, "  mint:    %s\n", p.Mint)
		fmt.Fprintf(w, "  token:   %s (%s)\n", p.TokenName, p.Symbol)
		fmt.Fprintf(w, "  uri:     %s\n", p.URI)
		fmt.Fprintf(w, "  keypair: %s\n", p.KeypairPath)
		if p.ExpectedWallet != "" {
			fmt.Fprintf(w, "  wallet:  %s\n", p.ExpectedWallet)
		}
		fmt.Fprintf(w, "  min:     %s SOL\n", p.MinBalance)
	}
}

func eventsAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if !cfg.RabbitMQ.Enabled() {
		return fmt.Errorf("%s is not set", config.RabbitMQHost)
	}

	conn, err := config.DialRabbitMQ(c.Context, cfg.RabbitMQ, rabbitMQDialAttempts, rabbitMQRetryDelay)
	if err != nil {
		return err
	}
	defer conn.Close()

	consumer, err := config.NewConsumer(conn, cfg.RabbitMQ.Queue)
	if err != nil {
		return err
	}
	defer consumer.Close()

	err = consumer.Consume(c.Context, func(body []byte) error {
		line, err := formatEvent(body)
		if err != nil {
			// not ours; requeueing would loop forever
			log.WithError(err).Warn("Skipping message")
			return nil
		}
		fmt.Fprintln(c.App.Writer, line)
		return nil
	})
	if err != nil && c.Context.Err() == nil {
		return err
	}
	return nil
}

func formatEvent(body []byte) (string, error) {
	var event models.LinkEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return "", fmt.Errorf("failed to unmarshal link event: %w", err)
	}
	parts := []string{
		event.CreatedAt.Format(time.RFC3339),
		event.Profile,
		event.Status,
		event.Mint,
	}
	if event.Signature != "" {
		parts = append(parts, event.Signature)
	}
	if event.Error != "" {
		parts = append(parts, "error="+event.Error)
	}
	return strings.Join(parts, " "), nil
}
