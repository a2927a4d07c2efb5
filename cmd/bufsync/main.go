// Package main is the bufsync demo agent. It opens local files as
// versioned buffers, streams their changes to a sync endpoint, and
// appends stdin lines to the first buffer so divergence and recovery can
// be observed end to end.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/dshills/bufsync/internal/buffer"
	"github.com/dshills/bufsync/internal/channel"
	"github.com/dshills/bufsync/internal/config"
	"github.com/dshills/bufsync/internal/journal"
	"github.com/dshills/bufsync/internal/logging"
	"github.com/dshills/bufsync/internal/protocol"
	"github.com/dshills/bufsync/internal/session"
	"github.com/dshills/bufsync/internal/transport"
)

func main() {
	os.Exit(run())
}

func run() int {
	var configPath, serverURL string
	flag.StringVar(&configPath, "config", "", "path to configuration file")
	flag.StringVar(&serverURL, "server", "", "sync endpoint override")
	flag.Parse()

	logging.ConfigureRuntime()
	log := logging.Logger("bufsync")

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Error().Err(err).Msg("configuration invalid")
		return 1
	}
	if serverURL != "" {
		cfg.Server.URL = serverURL
	}

	paths := flag.Args()
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "usage: bufsync [flags] FILE...")
		return 2
	}

	regOpts := []channel.RegistryOption{
		channel.WithLogger(logging.Logger("registry")),
		channel.WithCloseTimeout(cfg.Sync.CloseTimeout.Duration),
	}

	var jrnl *journal.Journal
	if cfg.Journal.Enabled {
		jrnl, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			log.Error().Err(err).Msg("journal open failed")
			return 1
		}
		defer jrnl.Close()
		logJournal(log, jrnl)
		regOpts = append(regOpts, channel.WithJournal(jrnl))
	}

	registry := channel.NewRegistry(regOpts...)
	defer registry.Close()

	dialCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.DialTimeout.Duration)
	ch, err := transport.Dial(dialCtx, cfg.Server.URL, transport.WithLogger(logging.Logger("transport")))
	cancel()
	if err != nil {
		log.Error().Err(err).Str("url", cfg.Server.URL).Msg("dial failed")
		return 1
	}
	defer ch.Close()
	registry.SetHandle(ch)
	log.Info().Str("url", cfg.Server.URL).Str("channel", string(ch.ID())).Msg("connected")

	buffers := make([]*buffer.Buffer, 0, len(paths))
	sessions := make([]*session.Session, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Error().Err(err).Str("path", path).Msg("read failed")
			return 1
		}
		buf := buffer.New(path, string(data))
		sess := session.New(buf, registry,
			session.WithRetryInterval(cfg.Sync.RetryInterval.Duration),
			session.WithLogger(logging.Logger("session").With().Str("path", path).Logger()),
		)
		if err := sess.Start(); err != nil {
			log.Error().Err(err).Str("path", path).Msg("session start failed")
			return 1
		}
		buffers = append(buffers, buf)
		sessions = append(sessions, sess)
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	target := buffers[0]
	log.Info().Str("path", paths[0]).Msg("appending stdin lines; EOF or interrupt to finish")

loop:
	for {
		select {
		case <-signals:
			log.Info().Msg("interrupted")
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			end := len(target.Text())
			edit := buffer.Edit{Range: protocol.NewRange(end, end), NewText: line + "\n"}
			if err := target.Apply(edit); err != nil {
				log.Error().Err(err).Msg("apply failed")
				break loop
			}
		}
	}

	// Destroy routes the final Close for each buffer and tears the
	// sessions down.
	for _, buf := range buffers {
		buf.Destroy()
	}
	for _, sess := range sessions {
		sess.Wait()
	}
	log.Info().Msg("done")
	return 0
}

// logJournal reports what the remote last acknowledged before this run.
func logJournal(log zerolog.Logger, j *journal.Journal) {
	err := j.Each(func(path string, v protocol.Version) error {
		log.Info().Str("path", path).Int64("version", int64(v)).
			Msg("remote last acknowledged")
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Msg("journal scan failed")
	}
}
