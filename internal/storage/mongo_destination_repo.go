package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/annel0/mapcoord/internal/coord"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig contains connection settings for the MongoDB destination repository.
type MongoConfig struct {
	URI        string // e.g. mongodb://localhost:27017
	Database   string // e.g. mapcoord
	Collection string // e.g. teleport_destinations
}

// MongoDestinationRepo implements DestinationRepo on MongoDB.
// Documents: {item_id: int64, packed: int64}.
type MongoDestinationRepo struct {
	client     *mongo.Client
	collection *mongo.Collection
}

type destinationDoc struct {
	ItemID int64 `bson:"item_id"`
	Packed int64 `bson:"packed"`
}

// NewMongoDestinationRepo establishes connection and ensures the item_id index.
func NewMongoDestinationRepo(ctx context.Context, cfg MongoConfig) (*MongoDestinationRepo, error) {
	if cfg.URI == "" {
		cfg.URI = "mongodb://localhost:27017"
	}
	if cfg.Database == "" {
		cfg.Database = "mapcoord"
	}
	if cfg.Collection == "" {
		cfg.Collection = "teleport_destinations"
	}

	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(cctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}

	repo := &MongoDestinationRepo{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
	}

	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "item_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("item_id_unique"),
	}
	if _, err := repo.collection.Indexes().CreateOne(cctx, idx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	return repo, nil
}

// Save upserts the destination document.
func (m *MongoDestinationRepo) Save(ctx context.Context, itemID uint64, pos coord.Position) error {
	if err := validateDestination(itemID, pos); err != nil {
		return err
	}

	_, err := m.collection.UpdateOne(ctx,
		bson.M{"item_id": int64(itemID)},
		bson.M{"$set": bson.M{"packed": int64(coord.PackAbsolute(pos))}},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo save destination %d: %w", itemID, err)
	}
	return nil
}

// Load implements DestinationRepo.
func (m *MongoDestinationRepo) Load(ctx context.Context, itemID uint64) (coord.Position, bool, error) {
	if itemID == 0 {
		return coord.Position{}, false, fmt.Errorf("%w: %d", ErrInvalidItem, itemID)
	}

	var doc destinationDoc
	err := m.collection.FindOne(ctx, bson.M{"item_id": int64(itemID)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return coord.Position{}, false, nil
	}
	if err != nil {
		return coord.Position{}, false, fmt.Errorf("mongo load destination %d: %w", itemID, err)
	}
	return coord.UnpackAbsolute(coord.Packed(uint32(doc.Packed))), true, nil
}

// Delete implements DestinationRepo.
func (m *MongoDestinationRepo) Delete(ctx context.Context, itemID uint64) error {
	if itemID == 0 {
		return fmt.Errorf("%w: %d", ErrInvalidItem, itemID)
	}

	res, err := m.collection.DeleteOne(ctx, bson.M{"item_id": int64(itemID)})
	if err != nil {
		return fmt.Errorf("mongo delete destination %d: %w", itemID, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("предмет %d: %w", itemID, ErrNotFound)
	}
	return nil
}

// BatchSave issues one unordered bulk write of upserts.
func (m *MongoDestinationRepo) BatchSave(ctx context.Context, destinations map[uint64]coord.Position) error {
	if len(destinations) == 0 {
		return nil
	}
	if err := validateBatch(destinations); err != nil {
		return err
	}

	models := make([]mongo.WriteModel, 0, len(destinations))
	for itemID, pos := range destinations {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"item_id": int64(itemID)}).
			SetUpdate(bson.M{"$set": bson.M{"packed": int64(coord.PackAbsolute(pos))}}).
			SetUpsert(true))
	}

	if _, err := m.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("mongo batch save: %w", err)
	}
	return nil
}

// List implements DestinationRepo.
func (m *MongoDestinationRepo) List(ctx context.Context) (map[uint64]coord.Position, error) {
	cur, err := m.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("mongo list destinations: %w", err)
	}

	var docs []destinationDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo decode destinations: %w", err)
	}

	result := make(map[uint64]coord.Position, len(docs))
	for _, doc := range docs {
		result[uint64(doc.ItemID)] = coord.UnpackAbsolute(coord.Packed(uint32(doc.Packed)))
	}
	return result, nil
}

// Close disconnects the client.
func (m *MongoDestinationRepo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
