package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ConnectMongoDB(cfg *Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	// Test connection
	err = client.Ping(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	// Create indexes
	err = createIndexes(client, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to create indexes: %v", err)
	}

	return client, nil
}

func createIndexes(client *mongo.Client, dbName string) error {
	db := client.Database(dbName)

	// Documents collection indexes
	documentsCollection := db.Collection("documents")
	documentIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "classification", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "language", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "has_embeddings", Value: 1}},
		},
	}
	_, err := documentsCollection.Indexes().CreateMany(context.Background(), documentIndexes)
	if err != nil {
		return err
	}

	// Chunk collection indexes. chunk_index is unique per document; the text
	// index backs the lexical fallback search.
	chunksCollection := db.Collection("job_chunks")
	chunkIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "document_id", Value: 1}, {Key: "chunk_index", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "chunk_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "language", Value: 1}, {Key: "classification", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "text", Value: "text"}},
		},
	}
	_, err = chunksCollection.Indexes().CreateMany(context.Background(), chunkIndexes)
	if err != nil {
		return err
	}

	// Translation units: retrieval is always within a language pair.
	unitsCollection := db.Collection("translation_units")
	unitIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "source_lang", Value: 1}, {Key: "target_lang", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "project_id", Value: 1}},
		},
	}
	_, err = unitsCollection.Indexes().CreateMany(context.Background(), unitIndexes)
	if err != nil {
		return err
	}

	// Comparison cache: at most one result per (a, b, kind).
	comparisonsCollection := db.Collection("comparisons")
	comparisonIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "job_a_id", Value: 1},
				{Key: "job_b_id", Value: 1},
				{Key: "kind", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err = comparisonsCollection.Indexes().CreateMany(context.Background(), comparisonIndexes)
	if err != nil {
		return err
	}

	return nil
}
