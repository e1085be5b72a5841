package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kpitracker/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type assignmentRepository struct {
	collection    *mongo.Collection
	transactional bool
}

// NewAssignmentRepository returns the Mongo-backed assignment store. Batch
// writes run inside a transaction when transactional is set, which requires
// a replica set deployment.
func NewAssignmentRepository(db *mongo.Database, transactional bool) AssignmentRepository {
	return &assignmentRepository{
		collection:    db.Collection(AssignmentCollection),
		transactional: transactional,
	}
}

func (r *assignmentRepository) GetByKey(ctx context.Context, agentUID, kpiID, period string) (*models.Assignment, error) {
	var assignment models.Assignment
	err := r.collection.FindOne(ctx, bson.M{"_id": models.AssignmentID(agentUID, kpiID, period)}).Decode(&assignment)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *assignmentRepository) ListByAgentPeriod(ctx context.Context, agentUID, period string) ([]models.Assignment, error) {
	filter := bson.M{"agent_uid": agentUID, "period": period}
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "kpi_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	assignments := []models.Assignment{}
	if err = cursor.All(ctx, &assignments); err != nil {
		return nil, err
	}
	return assignments, nil
}

func (r *assignmentRepository) RecordSubmission(ctx context.Context, seed *models.Assignment, entry models.SubmissionEntry) (*models.Assignment, error) {
	now := entry.RecordedAt
	if now.IsZero() {
		now = time.Now()
	}
	update := bson.M{
		"$set": bson.M{
			"current_value":       entry.Value,
			"metadata.updated_at": now,
			"metadata.updated_by": entry.SubmittedByUID,
		},
		"$push": bson.M{
			"submission_history": entry,
		},
		"$setOnInsert": bson.M{
			"agent_uid":           seed.AgentUID,
			"kpi_id":              seed.KPIID,
			"period":              seed.Period,
			"kpi_name":            seed.KPIName,
			"description":         seed.Description,
			"monthly_target":      seed.MonthlyTarget,
			"reporting_format":    seed.ReportingFormat,
			"category":            seed.Category,
			"metadata.created_at": now,
			"metadata.created_by": entry.SubmittedByUID,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var updated models.Assignment
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": seed.ID}, update, opts).Decode(&updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *assignmentRepository) AssignBatch(ctx context.Context, assignments []models.Assignment) error {
	if len(assignments) == 0 {
		return nil
	}
	writes := make([]mongo.WriteModel, len(assignments))
	for i := range assignments {
		writes[i] = mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": assignments[i].ID}).
			SetReplacement(assignments[i]).
			SetUpsert(true)
	}

	if !r.transactional {
		_, err := r.collection.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(true))
		return err
	}
	return r.assignInTransaction(ctx, writes)
}

func (r *assignmentRepository) assignInTransaction(ctx context.Context, writes []mongo.WriteModel) error {
	session, err := r.collection.Database().Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	sessionCtx := mongo.NewSessionContext(ctx, session)
	if err := session.StartTransaction(); err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	if _, err := r.collection.BulkWrite(sessionCtx, writes, options.BulkWrite().SetOrdered(true)); err != nil {
		if abortErr := session.AbortTransaction(context.Background()); abortErr != nil {
			return fmt.Errorf("assignment write failed: %w (abort failed: %v)", err, abortErr)
		}
		return fmt.Errorf("assignment write failed: %w", err)
	}

	if err := session.CommitTransaction(sessionCtx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SummarizePeriod aggregates every assignment of period per KPI.
func (r *assignmentRepository) SummarizePeriod(ctx context.Context, period string) ([]models.KPISummary, error) {
	numericValue := bson.M{"$isNumber": "$current_value"}
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"period": period}}},

		bson.D{{Key: "$addFields", Value: bson.M{
			"submissions_count": bson.M{"$size": bson.M{"$ifNull": []interface{}{"$submission_history", []interface{}{}}}},
			"numeric_value": bson.M{
				"$cond": bson.M{"if": numericValue, "then": "$current_value", "else": 0},
			},
			"on_target": bson.M{
				"$cond": bson.M{
					"if": bson.M{"$and": []interface{}{
						numericValue,
						bson.M{"$isNumber": "$monthly_target"},
						bson.M{"$gt": []interface{}{"$monthly_target", 0}},
						bson.M{"$gte": []interface{}{"$current_value", "$monthly_target"}},
					}},
					"then": 1,
					"else": 0,
				},
			},
		}}},

		bson.D{{Key: "$group", Value: bson.M{
			"_id":              "$kpi_id",
			"kpi_name":         bson.M{"$first": "$kpi_name"},
			"category":         bson.M{"$first": "$category"},
			"agents_assigned":  bson.M{"$sum": 1},
			"submissions":      bson.M{"$sum": "$submissions_count"},
			"numeric_total":    bson.M{"$sum": "$numeric_value"},
			"agents_on_target": bson.M{"$sum": "$on_target"},
		}}},

		bson.D{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	results := []models.KPISummary{}
	if err = cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	return results, nil
}
