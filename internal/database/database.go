package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/logsmarket001/api-fidelity-trust/internal/config"
	"github.com/logsmarket001/api-fidelity-trust/internal/repository"
)

type Database struct {
	MongoDB      *mongo.Database
	RedisDB      *redis.Client
	Repositories *Repositories
}

type Repositories struct {
	Account     repository.AccountRepository
	Transaction repository.TransactionRepository
	Stock       repository.StockRepository
	Chat        repository.ChatRepository
	Lock        repository.LockRepository
	Idempotency repository.IdempotencyRepository
	LockManager *repository.AccountLockManager
}

func Initialize(ctx context.Context, cfg *config.Config) (*Database, error) {
	mongoDB, err := initializeMongoDB(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MongoDB: %w", err)
	}

	redisDB, err := initializeRedis(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}

	repos := &Repositories{
		Account:     repository.NewAccountRepository(mongoDB),
		Transaction: repository.NewTransactionRepository(mongoDB),
		Stock:       repository.NewStockRepository(mongoDB),
		Chat:        repository.NewChatRepository(mongoDB),
		Lock:        repository.NewLockRepository(redisDB),
		Idempotency: repository.NewIdempotencyRepository(redisDB),
	}
	repos.LockManager = repository.NewAccountLockManager(repos.Lock)

	if err := createIndexes(ctx, repos); err != nil {
		return nil, fmt.Errorf("failed to create database indexes: %w", err)
	}

	return &Database{
		MongoDB:      mongoDB,
		RedisDB:      redisDB,
		Repositories: repos,
	}, nil
}

func initializeMongoDB(ctx context.Context, cfg config.DatabaseConfig) (*mongo.Database, error) {
	clientOptions := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(uint64(cfg.MaxPoolSize)).
		SetMinPoolSize(uint64(cfg.MinPoolSize)).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetServerSelectionTimeout(cfg.SelectionTimeout)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(cfg.Database), nil
}

func initializeRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

func createIndexes(ctx context.Context, repos *Repositories) error {
	if err := repos.Account.CreateIndexes(ctx); err != nil {
		return err
	}
	if err := repos.Transaction.CreateIndexes(ctx); err != nil {
		return err
	}
	if err := repos.Stock.CreateIndexes(ctx); err != nil {
		return err
	}
	return repos.Chat.CreateIndexes(ctx)
}

func (db *Database) Close(ctx context.Context) error {
	var errs []error

	if db.MongoDB != nil {
		if err := db.MongoDB.Client().Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to close MongoDB: %w", err))
		}
	}

	if db.RedisDB != nil {
		if err := db.RedisDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Redis: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing database connections: %v", errs)
	}

	return nil
}

func (db *Database) HealthCheck(ctx context.Context) error {
	if err := db.MongoDB.Client().Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("MongoDB health check failed: %w", err)
	}

	if _, err := db.RedisDB.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("Redis health check failed: %w", err)
	}

	return nil
}

// TxnRunner returns a runner that executes fn inside a mongo session
// transaction. The session context flows to every repository call made
// within fn.
func (db *Database) TxnRunner() *MongoTxnRunner {
	return &MongoTxnRunner{db: db.MongoDB}
}

type MongoTxnRunner struct {
	db *mongo.Database
}

func (r *MongoTxnRunner) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := r.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})

	return err
}
