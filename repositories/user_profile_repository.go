package repository

import (
	"context"
	"errors"
	"time"

	"kpitracker/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type userProfileRepository struct {
	collection *mongo.Collection
}

func NewUserProfileRepository(db *mongo.Database) UserProfileRepository {
	return &userProfileRepository{
		collection: db.Collection(UserProfileCollection),
	}
}

func (r *userProfileRepository) GetByID(ctx context.Context, uid string) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := r.collection.FindOne(ctx, bson.M{"_id": uid}).Decode(&profile)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *userProfileRepository) GetByIDs(ctx context.Context, uids []string) (map[string]models.UserProfile, error) {
	profiles := make(map[string]models.UserProfile, len(uids))
	if len(uids) == 0 {
		return profiles, nil
	}

	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": uids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var profile models.UserProfile
		if err := cursor.Decode(&profile); err != nil {
			return nil, err
		}
		profiles[profile.UID] = profile
	}
	return profiles, cursor.Err()
}

func (r *userProfileRepository) Upsert(ctx context.Context, profile *models.UserProfile) error {
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": profile.UID}, profile, options.Replace().SetUpsert(true))
	return err
}

func (r *userProfileRepository) SetRole(ctx context.Context, uid string, role models.Role, updatedBy string) error {
	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			"role":                role,
			"metadata.updated_at": now,
			"metadata.updated_by": updatedBy,
		},
		"$setOnInsert": bson.M{
			"metadata.created_at": now,
			"metadata.created_by": updatedBy,
		},
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": uid}, update, options.Update().SetUpsert(true))
	return err
}
