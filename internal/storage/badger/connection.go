package badger

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	dgbadger "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/claimscope/internal/common"
)

// BadgerDB manages the Badger database connection
type BadgerDB struct {
	store  *badgerhold.Store
	logger arbor.ILogger
	config *common.BadgerConfig
}

// StoreOptions returns the badgerhold options used for every store. Records are
// JSON encoded so the heterogeneous stage inputs/outputs and the ordered job
// context survive storage without gob type registration. A nil logger
// silences badger's internal logging.
func StoreOptions(dir string, logger arbor.ILogger) badgerhold.Options {
	options := badgerhold.DefaultOptions
	options.Dir = dir
	options.ValueDir = dir
	options.Logger = nil
	if logger != nil {
		options.Logger = &badgerLogger{logger: logger}
	}
	options.Encoder = json.Marshal
	options.Decoder = json.Unmarshal
	return options
}

// badgerLogger routes badger's internal logging through arbor, one level down
// since badger reports routine compaction work at info.
type badgerLogger struct {
	logger arbor.ILogger
}

var _ dgbadger.Logger = (*badgerLogger)(nil)

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Msg(trimLine(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn().Msg(trimLine(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug().Msg(trimLine(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Trace().Msg(trimLine(format, args...))
}

func trimLine(format string, args ...interface{}) string {
	return "badger: " + strings.TrimRight(fmt.Sprintf(format, args...), "\n")
}

// NewBadgerDB creates a new Badger database connection
func NewBadgerDB(logger arbor.ILogger, config *common.BadgerConfig) (*BadgerDB, error) {
	if config.ResetOnStartup {
		if _, err := os.Stat(config.Path); err == nil {
			logger.Debug().Str("path", config.Path).Msg("Deleting existing database (reset_on_startup=true)")
			if err := os.RemoveAll(config.Path); err != nil {
				logger.Warn().Err(err).Str("path", config.Path).Msg("Failed to delete database directory")
			}
		}
	}

	if err := os.MkdirAll(config.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	logger.Debug().Str("path", config.Path).Msg("Opening Badger database connection")

	store, err := badgerhold.Open(StoreOptions(config.Path, logger))
	if err != nil {
		logger.Error().Err(err).Str("path", config.Path).Msg("BadgerDB: Failed to open database")
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	logger.Debug().Str("path", config.Path).Msg("Badger database initialized")

	return &BadgerDB{
		store:  store,
		logger: logger,
		config: config,
	}, nil
}

// Store returns the underlying badgerhold store
func (b *BadgerDB) Store() *badgerhold.Store {
	return b.store
}

// Close closes the database connection
func (b *BadgerDB) Close() error {
	if b.store != nil {
		return b.store.Close()
	}
	return nil
}
