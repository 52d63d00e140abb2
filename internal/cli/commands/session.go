package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/docmap/internal/cli/config"
	"github.com/conduit-lang/docmap/internal/cli/ui"
	"github.com/conduit-lang/docmap/internal/logging"
	"github.com/conduit-lang/docmap/internal/orm/mapping"
	"github.com/conduit-lang/docmap/internal/orm/store"
)

// errReported marks failures whose message was already printed in full
var errReported = errors.New("see above")

// session is the configuration, logger and model shared by commands operating on a model file
type session struct {
	cfg       *config.Config
	logger    *zap.Logger
	modelPath string
	model     *mapping.Model
}

func loadConfig(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPathFlag)
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.ConfigError(err.Error(), noColorFlag))
		return nil, nil, fmt.Errorf("invalid configuration: %w", errReported)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.ConfigError(err.Error(), noColorFlag))
		return nil, nil, fmt.Errorf("invalid configuration: %w", errReported)
	}
	return cfg, logger, nil
}

// loadSession reads the configuration and builds the model declared in modelPath with the
// conventions selected by the json settings
func loadSession(cmd *cobra.Command, modelPath string) (*session, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	opts, err := cfg.MappingOptions()
	if err != nil {
		return nil, err
	}

	defs, err := mapping.LoadDefinitions(modelPath)
	if err != nil {
		return nil, err
	}
	model, err := defs.Build(mapping.DefaultConventionSet(opts), logger)
	if err != nil {
		return nil, fmt.Errorf("invalid model %s: %w", modelPath, err)
	}

	logger.Debug("model loaded",
		zap.String("path", modelPath),
		zap.Int("entities", len(model.Entities())),
		zap.Strings("extensions", model.Extensions()))

	return &session{cfg: cfg, logger: logger, modelPath: modelPath, model: model}, nil
}

func (s *session) entity(cmd *cobra.Command, name string) (*mapping.Entity, error) {
	e, ok := s.model.Entity(name)
	if ok {
		return e, nil
	}

	known := make([]string, 0, len(s.model.Entities()))
	for _, e := range s.model.Entities() {
		known = append(known, e.Name)
	}
	fmt.Fprint(cmd.ErrOrStderr(), ui.NotFoundError("entity", name, s.modelPath, known, noColorFlag))
	return nil, fmt.Errorf("%w: %s", store.ErrUnknownEntity, name)
}

func (s *session) column(cmd *cobra.Command, e *mapping.Entity, name string) (*mapping.Column, error) {
	c, ok := e.Column(name)
	if ok {
		return c, nil
	}

	known := make([]string, 0, len(e.Columns))
	for _, c := range e.Columns {
		known = append(known, c.Name)
	}
	fmt.Fprint(cmd.ErrOrStderr(), ui.NotFoundError("column", name, s.modelPath, known, noColorFlag))
	return nil, fmt.Errorf("%w: %s.%s", store.ErrUnknownColumn, e.Name, name)
}

// openStore connects to the configured database. The returned func closes the connection.
func (s *session) openStore(ctx context.Context) (*store.Store, func(), error) {
	if s.cfg.Database.URL == "" {
		return nil, nil, fmt.Errorf("database.url not set (set DOCMAP_DATABASE_URL or database.url in docmap.yaml)")
	}

	db, dialect, err := store.Open(ctx, s.cfg.Database.Driver, s.cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Debug("database connected",
		zap.String("driver", s.cfg.Database.Driver),
		zap.String("dialect", dialect.Name()))

	closeFn := func() {
		if err := db.Close(); err != nil {
			s.logger.Warn("failed to close database", zap.Error(err))
		}
		_ = s.logger.Sync()
	}
	return store.New(db, dialect, s.model, s.logger), closeFn, nil
}
