package database

import (
	"context"
	"fmt"
	"time"

	"kpitracker/config"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Connection is an open MongoDB client bound to the application database.
type Connection struct {
	Client *mongo.Client
	DB     *mongo.Database
	// ReplicaSet reports whether multi-document transactions are available.
	ReplicaSet bool
}

func Connect(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*Connection, error) {
	clientOptions := options.Client().ApplyURI(cfg.MongoURI())
	if cfg.AppName != "" {
		clientOptions.SetAppName(cfg.AppName)
	}

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	log.Info("Connected to MongoDB", zap.String("database", cfg.Name))

	return &Connection{
		Client:     client,
		DB:         client.Database(cfg.Name),
		ReplicaSet: checkIfReplicaSet(ctx, client, log),
	}, nil
}

func (c *Connection) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx, nil)
}

func (c *Connection) Disconnect(ctx context.Context) error {
	return c.Client.Disconnect(ctx)
}

func checkIfReplicaSet(ctx context.Context, client *mongo.Client, log *zap.Logger) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var result bson.M
	if err := client.Database("admin").RunCommand(ctx, bson.M{"hello": 1}).Decode(&result); err != nil {
		log.Warn("Error checking replica set", zap.Error(err))
		return false
	}

	if setName, exists := result["setName"]; exists {
		log.Info("Part of replica set, batch assignments are transactional", zap.Any("set_name", setName))
		return true
	}

	log.Info("Not part of a replica set, batch assignments use ordered bulk writes")
	return false
}
