package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"govjobs-semantic-platform/models"
	"govjobs-semantic-platform/utils"
)

// DocumentStore reads and updates job documents. Document content itself is
// produced upstream by the content processor; this layer never parses files.
type DocumentStore interface {
	GetDocument(ctx context.Context, id primitive.ObjectID) (*models.JobDocument, error)
	ListDocuments(ctx context.Context, limit int64, missingEmbeddingsOnly bool) ([]models.JobDocument, error)
	SetHasEmbeddings(ctx context.Context, id primitive.ObjectID, has bool) error
}

// MongoDocumentStore backs DocumentStore with the documents collection.
type MongoDocumentStore struct {
	col *mongo.Collection
}

func NewMongoDocumentStore(db *mongo.Database) *MongoDocumentStore {
	return &MongoDocumentStore{col: db.Collection("documents")}
}

func (s *MongoDocumentStore) GetDocument(ctx context.Context, id primitive.ObjectID) (*models.JobDocument, error) {
	var doc models.JobDocument
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, &utils.NotFoundError{Resource: "document", ID: id.Hex()}
		}
		return nil, err
	}
	return &doc, nil
}

// ListDocuments returns documents ordered by creation time, oldest first so
// backfill drains the oldest backlog before new arrivals.
func (s *MongoDocumentStore) ListDocuments(ctx context.Context, limit int64, missingEmbeddingsOnly bool) ([]models.JobDocument, error) {
	filter := bson.M{}
	if missingEmbeddingsOnly {
		filter["has_embeddings"] = bson.M{"$ne": true}
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []models.JobDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *MongoDocumentStore) SetHasEmbeddings(ctx context.Context, id primitive.ObjectID, has bool) error {
	_, err := s.col.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"has_embeddings": has,
			"updated_at":     time.Now(),
		}},
	)
	return err
}
