package repository

import (
	"context"
	"errors"

	"kpitracker/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type masterKPIRepository struct {
	collection *mongo.Collection
}

func NewMasterKPIRepository(db *mongo.Database) MasterKPIRepository {
	return &masterKPIRepository{
		collection: db.Collection(MasterKPICollection),
	}
}

func (r *masterKPIRepository) GetAll(ctx context.Context) ([]models.MasterKPI, error) {
	return r.find(ctx, bson.M{})
}

func (r *masterKPIRepository) GetByID(ctx context.Context, id string) (*models.MasterKPI, error) {
	var kpi models.MasterKPI
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&kpi)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &kpi, nil
}

func (r *masterKPIRepository) GetByIDs(ctx context.Context, ids []string) ([]models.MasterKPI, error) {
	if len(ids) == 0 {
		return []models.MasterKPI{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (r *masterKPIRepository) FindByCategory(ctx context.Context, category models.Category) ([]models.MasterKPI, error) {
	return r.find(ctx, bson.M{"category": category})
}

func (r *masterKPIRepository) find(ctx context.Context, filter bson.M) ([]models.MasterKPI, error) {
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	kpis := []models.MasterKPI{}
	if err = cursor.All(ctx, &kpis); err != nil {
		return nil, err
	}
	return kpis, nil
}

func (r *masterKPIRepository) Upsert(ctx context.Context, kpi *models.MasterKPI) error {
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": kpi.ID}, kpi, options.Replace().SetUpsert(true))
	return err
}

func (r *masterKPIRepository) Count(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{})
}

func (r *masterKPIRepository) InsertMany(ctx context.Context, kpis []models.MasterKPI) error {
	if len(kpis) == 0 {
		return nil
	}
	docs := make([]interface{}, len(kpis))
	for i := range kpis {
		docs[i] = kpis[i]
	}
	_, err := r.collection.InsertMany(ctx, docs)
	return err
}
