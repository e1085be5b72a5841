package database

import (
	"context"
	"fmt"
	"time"

	repository "kpitracker/repositories"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

func CreateIndexes(db *mongo.Database, log *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	assignmentIndexes := []mongo.IndexModel{
		// One document per (agent, KPI, period) even if a writer bypasses the composite _id.
		{
			Keys: bson.D{
				{Key: "agent_uid", Value: 1},
				{Key: "kpi_id", Value: 1},
				{Key: "period", Value: 1},
			},
			Options: options.Index().SetName("uniq_agent_kpi_period").SetUnique(true),
		},

		// Used by: ListByAgentPeriod
		{
			Keys: bson.D{
				{Key: "agent_uid", Value: 1},
				{Key: "period", Value: 1},
			},
			Options: options.Index().SetName("idx_agent_period"),
		},

		// Used by: SummarizePeriod aggregation pipeline
		{
			Keys:    bson.D{{Key: "period", Value: 1}, {Key: "kpi_id", Value: 1}},
			Options: options.Index().SetName("idx_period_kpi"),
		},
	}
	if _, err := db.Collection(repository.AssignmentCollection).Indexes().CreateMany(ctx, assignmentIndexes); err != nil {
		return fmt.Errorf("failed to create assignment indexes: %w", err)
	}

	// Used by: FindByCategory
	masterIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "category", Value: 1}},
		Options: options.Index().SetName("idx_category"),
	}
	if _, err := db.Collection(repository.MasterKPICollection).Indexes().CreateOne(ctx, masterIndex); err != nil {
		return fmt.Errorf("failed to create master KPI indexes: %w", err)
	}

	log.Info("KPI indexes created successfully")
	return nil
}
