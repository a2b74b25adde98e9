package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/stockbook/internal/domain/models"
)

const stockReportsCollection = "stock_reports"

// ReportArchive stores the daily stock reports.
type ReportArchive interface {
	SaveStockReport(ctx context.Context, report models.StockReport) error
}

// MongoDBRepository implements ReportArchive for MongoDB.
type MongoDBRepository struct {
	client   *mongo.Client
	dbName   string
	collName string
}

// NewMongoDBRepository creates a new MongoDB repository.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string) (*MongoDBRepository, error) {
	clientOptions := options.Client().ApplyURI(uri).SetServerSelectionTimeout(10 * time.Second)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoDBRepository{
		client:   client,
		dbName:   dbName,
		collName: stockReportsCollection,
	}, nil
}

// SaveStockReport upserts the report of its day, so a rerun replaces the earlier one.
func (r *MongoDBRepository) SaveStockReport(ctx context.Context, report models.StockReport) error {
	collection := r.client.Database(r.dbName).Collection(r.collName)
	filter := bson.M{"date": report.Date}
	opts := options.Replace().SetUpsert(true)
	if _, err := collection.ReplaceOne(ctx, filter, report, opts); err != nil {
		return fmt.Errorf("failed to save stock report: %w", err)
	}
	return nil
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
