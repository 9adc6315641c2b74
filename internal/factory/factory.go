package factory

import (
	"context"
	"fmt"

	"go-vision-lens/internal/config"
	"go-vision-lens/internal/storage"
	"go-vision-lens/internal/strategy"
)

// StorageType represents different types of cache storage backends
type StorageType string

const (
	// MemoryStorage keeps caches in process memory
	MemoryStorage StorageType = config.CacheBackendMemory
	// AzureStorage keeps caches in Azure Blob Storage
	AzureStorage StorageType = config.CacheBackendAzure
	// RedisStorage keeps caches in Redis hashes
	RedisStorage StorageType = config.CacheBackendRedis
)

// StorageFactory creates cache storage implementations
type StorageFactory interface {
	CreateStorage(ctx context.Context, storageType StorageType) (storage.CacheStorage, error)
}

// InstructionFactory creates instruction strategies
type InstructionFactory interface {
	CreateInstruction(mode string) (strategy.InstructionStrategy, error)
}

// storageFactory implements StorageFactory
type storageFactory struct {
	azure config.AzureConfig
	redis config.RedisConfig
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(cfg *config.Config) StorageFactory {
	return &storageFactory{
		azure: cfg.Azure,
		redis: cfg.Redis,
	}
}

// CreateStorage creates a storage implementation based on the specified type
func (f *storageFactory) CreateStorage(ctx context.Context, storageType StorageType) (storage.CacheStorage, error) {
	switch storageType {
	case MemoryStorage, "":
		return storage.NewMemoryStorage(), nil
	case AzureStorage:
		s, err := storage.NewAzureStorage(ctx, f.azure.Account, f.azure.Key, f.azure.Container)
		if err != nil {
			return nil, err
		}
		return s, nil
	case RedisStorage:
		s, err := storage.NewRedisStorage(ctx, f.redis.Addr, f.redis.Password, f.redis.DB)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

// instructionFactory implements InstructionFactory
type instructionFactory struct{}

// NewInstructionFactory creates a new instruction factory
func NewInstructionFactory() InstructionFactory {
	return &instructionFactory{}
}

// CreateInstruction creates the strategy for an instruction mode
func (f *instructionFactory) CreateInstruction(mode string) (strategy.InstructionStrategy, error) {
	return strategy.ForMode(mode)
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	StorageFactory     StorageFactory
	InstructionFactory InstructionFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(cfg *config.Config) *ComponentFactory {
	return &ComponentFactory{
		StorageFactory:     NewStorageFactory(cfg),
		InstructionFactory: NewInstructionFactory(),
	}
}
