// Command walctl is a small operational CLI around the WAL core: it
// replays a segment directory, prints Writer/Order Store stats, or
// forces a checkpoint. It never brings up a network-facing gateway,
// but when VZWL_KAFKA_ENABLED is set it does wire the real pebble-backed
// outbox and Kafka broadcaster for checkpoint and stats runs: records
// the run appends are enqueued, and the broadcaster polls for NEW
// entries while the command runs. The broadcaster is stopped on exit
// without a final drain, so entries still NEW at that point stay in
// the outbox for a later run.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/Zzzode/VeloZ/internal/config"
	"github.com/Zzzode/VeloZ/internal/notify"
	"github.com/Zzzode/VeloZ/internal/orderstore"
	"github.com/Zzzode/VeloZ/internal/replay"
	"github.com/Zzzode/VeloZ/internal/wal"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("walctl: load config: %v", err)
	}

	switch os.Args[1] {
	case "replay":
		runReplay(cfg)
	case "stats":
		runStats(cfg)
	case "checkpoint":
		runCheckpoint(cfg)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: walctl <replay|stats|checkpoint> [-dir path]")
}

// walConfigFromDir builds a wal.Config from the loaded configuration,
// overriding only the directory with whatever -dir resolved to.
func walConfigFromDir(cfg *config.Config, dir string) wal.Config {
	return wal.Config{
		Dir:                     dir,
		Prefix:                  cfg.WAL.Prefix,
		MaxSegmentBytes:         cfg.WAL.MaxSegmentBytes,
		SyncOnWrite:             cfg.WAL.SyncOnWrite,
		CheckpointEveryRecords:  cfg.WAL.CheckpointEveryRecords,
		CheckpointEveryInterval: cfg.WAL.CheckpointEveryInterval,
		StaleLockAfter:          cfg.WAL.StaleLockAfter,
	}
}

func runReplay(cfg *config.Config) {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	dir := fs.String("dir", cfg.WAL.Dir, "segment directory")
	fs.Parse(os.Args[2:])

	orders := orderstore.New(os.Stdout)
	res, err := replay.Run(*dir, cfg.WAL.Prefix, orders, cfg.WAL.ReplayMaxGapTolerance, log.Default())
	if err != nil {
		log.Fatalf("walctl: replay: %v", err)
	}

	fmt.Printf("replayed %d entries (%d corrupted, %d sequence gaps), next sequence %d\n",
		res.EntriesReplayed, res.CorruptedEntries, res.SequenceGaps, res.NextSequence)
	fmt.Printf("orders: %d total, %d pending, %d terminal\n",
		orders.Count(), orders.CountPending(), orders.CountTerminal())
}

func runStats(cfg *config.Config) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	dir := fs.String("dir", cfg.WAL.Dir, "segment directory")
	fs.Parse(os.Args[2:])

	orders := orderstore.New(nil)
	res, err := replay.Run(*dir, cfg.WAL.Prefix, orders, cfg.WAL.ReplayMaxGapTolerance, log.Default())
	if err != nil {
		log.Fatalf("walctl: stats: %v", err)
	}

	outbox, stopNotify, err := setupNotify(cfg)
	if err != nil {
		log.Fatalf("walctl: setup notify: %v", err)
	}
	defer stopNotify()

	w, err := wal.New(walConfigFromDir(cfg, *dir), orders, outbox, log.Default())
	if err != nil {
		log.Fatalf("walctl: open wal: %v", err)
	}
	defer w.Close()
	w.SetNextSequence(res.NextSequence)
	w.SetReplayStats(res.EntriesReplayed, res.CorruptedEntries)

	stats := w.Stats()
	fmt.Printf("%+v\n", stats)
}

func runCheckpoint(cfg *config.Config) {
	fs := flag.NewFlagSet("checkpoint", flag.ExitOnError)
	dir := fs.String("dir", cfg.WAL.Dir, "segment directory")
	fs.Parse(os.Args[2:])

	orders := orderstore.New(nil)
	res, err := replay.Run(*dir, cfg.WAL.Prefix, orders, cfg.WAL.ReplayMaxGapTolerance, log.Default())
	if err != nil {
		log.Fatalf("walctl: checkpoint: %v", err)
	}

	outbox, stopNotify, err := setupNotify(cfg)
	if err != nil {
		log.Fatalf("walctl: setup notify: %v", err)
	}
	defer stopNotify()

	w, err := wal.New(walConfigFromDir(cfg, *dir), orders, outbox, log.Default())
	if err != nil {
		log.Fatalf("walctl: open wal: %v", err)
	}
	defer w.Close()
	w.SetNextSequence(res.NextSequence)

	seq, err := w.WriteCheckpoint()
	if err != nil {
		log.Fatalf("walctl: write checkpoint: %v", err)
	}
	fmt.Printf("wrote checkpoint at sequence %d\n", seq)
}

// setupNotify wires the real outbox and Kafka broadcaster when
// VZWL_KAFKA_ENABLED is set, returning an OutboxHook to pass into
// wal.New and a cleanup func that stops the broadcaster and closes the
// outbox. With Kafka disabled it returns a nil hook and a no-op
// cleanup, leaving wal.New's outbox path untouched.
func setupNotify(cfg *config.Config) (wal.OutboxHook, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}

	outbox, err := notify.Open(cfg.Storage.OutboxDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open outbox: %w", err)
	}

	bc, err := notify.New(outbox, notify.Config{
		Brokers:  cfg.Kafka.Brokers,
		Topic:    cfg.Kafka.Topic,
		Interval: cfg.Kafka.Interval,
	}, log.Default())
	if err != nil {
		outbox.Close()
		return nil, nil, fmt.Errorf("dial kafka: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bc.Start(ctx)

	cleanup := func() {
		cancel()
		if err := bc.Close(); err != nil {
			log.Printf("walctl: close broadcaster: %v", err)
		}
		if err := outbox.Close(); err != nil {
			log.Printf("walctl: close outbox: %v", err)
		}
	}
	return outbox, cleanup, nil
}
