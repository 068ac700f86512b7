package main

import (
	"fmt"

	"opusdl/pkg/archive"
	"opusdl/pkg/bilibili"
	"opusdl/pkg/config"
	"opusdl/pkg/extractor"
	"opusdl/pkg/logger"
	"opusdl/pkg/scraper"
	"opusdl/pkg/storage"
)

// session holds everything a download run needs. It outlives single runs
// so watch mode reuses the client, pacing and archive connection.
type session struct {
	cfg     *config.Config
	log     logger.Logger
	client  *bilibili.Client
	api     *bilibili.API
	store   *storage.Manager
	archive *archive.Archive
}

func openSession(cfg *config.Config, log logger.Logger) (*session, error) {
	client := bilibili.NewClientFromConfig(cfg, log)
	api := bilibili.NewAPI(client,
		bilibili.WithLogger(log),
		bilibili.WithCooldown(cfg.Bilibili.ChallengeCooldown),
	)

	store, err := storage.NewManager(cfg.Output)
	if err != nil {
		return nil, fmt.Errorf("output directory: %w", err)
	}

	s := &session{cfg: cfg, log: log, client: client, api: api, store: store}
	if cfg.Archive.Path != "" {
		s.archive, err = archive.Open(cfg.Archive.Path, extractor.Category, log)
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

// runner builds a Runner reporting to progress
func (s *session) runner(progress scraper.Progress) *scraper.Runner {
	opts := scraper.OptionsFromConfig(s.cfg)
	opts.Progress = progress

	var arch scraper.Archive
	if s.archive != nil {
		arch = s.archive
	}

	return scraper.New(
		extractor.Deps{API: s.api, Cookies: s.client, Logger: s.log},
		s.client,
		s.store,
		arch,
		opts,
		s.log,
	)
}

func (s *session) Close() error {
	if s.archive != nil {
		return s.archive.Close()
	}
	return nil
}
