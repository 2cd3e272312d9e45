package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/claimscope/internal/common"
	"github.com/ternarybob/claimscope/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db         *BadgerDB
	jobs       interfaces.AnalysisJobStorage
	results    interfaces.StageResultStorage
	elements   interfaces.ClaimElementStorage
	masterData interfaces.MasterDataStorage
	kv         interfaces.KeyValueStorage
	logger     arbor.ILogger
}

// NewManager opens the database and builds every store on top of it
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := newManager(db, logger)
	logger.Info().Str("path", config.Path).Msg("Badger storage manager initialized")
	return manager, nil
}

func newManager(db *BadgerDB, logger arbor.ILogger) *Manager {
	return &Manager{
		db:         db,
		jobs:       NewJobStorage(db, logger),
		results:    NewStageResultStorage(db, logger),
		elements:   NewClaimElementStorage(db, logger),
		masterData: NewMasterDataStorage(db, logger),
		kv:         NewKVStorage(db, logger),
		logger:     logger,
	}
}

func (m *Manager) JobStorage() interfaces.AnalysisJobStorage {
	return m.jobs
}

func (m *Manager) ResultStorage() interfaces.StageResultStorage {
	return m.results
}

func (m *Manager) ClaimElementStorage() interfaces.ClaimElementStorage {
	return m.elements
}

func (m *Manager) MasterDataStorage() interfaces.MasterDataStorage {
	return m.masterData
}

// KeyValueStorage returns the KeyValue storage interface
func (m *Manager) KeyValueStorage() interfaces.KeyValueStorage {
	return m.kv
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
