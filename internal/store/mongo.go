package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Aman-CERP/pdfqa/internal/document"
)

const (
	documentsCollection = "documents"
	ownersCollection    = "owners"
)

// MongoStore implements Store on MongoDB.
type MongoStore struct {
	client    *mongo.Client
	documents *mongo.Collection
	owners    *mongo.Collection
	now       func() time.Time
}

var _ Store = (*MongoStore)(nil)

// mongoDocument is the BSON shape of a document record.
type mongoDocument struct {
	ID                       string    `bson:"_id"`
	OwnerID                  string    `bson:"owner_id"`
	Filename                 string    `bson:"filename"`
	ExternalFileID           string    `bson:"external_file_id"`
	ExternalCollectionFileID string    `bson:"external_collection_file_id,omitempty"`
	Status                   string    `bson:"status"`
	IsActive                 bool      `bson:"is_active"`
	PageCount                *int      `bson:"page_count,omitempty"`
	SizeBytes                *int64    `bson:"size_bytes,omitempty"`
	CreatedAt                time.Time `bson:"created_at"`
	UpdatedAt                time.Time `bson:"updated_at"`
}

type mongoOwner struct {
	ID           string    `bson:"_id"`
	Name         string    `bson:"name"`
	CollectionID string    `bson:"collection_id,omitempty"`
	CreatedAt    time.Time `bson:"created_at"`
}

// NewMongoStore connects to uri and prepares the collections and indexes
// in database.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo uri is required")
	}
	if database == "" {
		database = "pdfqa"
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:    client,
		documents: db.Collection(documentsCollection),
		owners:    db.Collection(ownersCollection),
		now:       time.Now,
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.documents.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "external_file_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Create inserts a new record.
func (s *MongoStore) Create(ctx context.Context, rec *document.Record) error {
	now := s.now().UTC()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.Status == "" {
		rec.Status = document.StatusProcessing
	}
	rec.UpdatedAt = now

	if _, err := s.documents.InsertOne(ctx, toMongoDocument(rec)); err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// Get returns the record with the given id.
func (s *MongoStore) Get(ctx context.Context, id string) (*document.Record, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// FindByExternalFileID returns the record for a backend file id.
func (s *MongoStore) FindByExternalFileID(ctx context.Context, fileID string) (*document.Record, error) {
	return s.findOne(ctx, bson.M{"external_file_id": fileID})
}

// ListByOwner returns the owner's records, oldest first.
func (s *MongoStore) ListByOwner(ctx context.Context, ownerID string) ([]document.Record, error) {
	return s.find(ctx, bson.M{"owner_id": ownerID})
}

// ListByStatus returns every record in status, oldest first.
func (s *MongoStore) ListByStatus(ctx context.Context, status document.Status) ([]document.Record, error) {
	return s.find(ctx, bson.M{"status": string(status)})
}

// FindByExternalFileIDs resolves many backend file ids in one query.
func (s *MongoStore) FindByExternalFileIDs(ctx context.Context, fileIDs []string) ([]document.Record, error) {
	if len(fileIDs) == 0 {
		return nil, nil
	}
	return s.find(ctx, bson.M{"external_file_id": bson.M{"$in": fileIDs}})
}

// ToggleActive flips IsActive with a pipeline update and returns the
// updated record.
func (s *MongoStore) ToggleActive(ctx context.Context, id string) (*document.Record, error) {
	update := mongo.Pipeline{{{Key: "$set", Value: bson.D{
		{Key: "is_active", Value: bson.M{"$not": bson.A{"$is_active"}}},
		{Key: "updated_at", Value: s.now().UTC()},
	}}}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var md mongoDocument
	err := s.documents.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&md)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to toggle document: %w", err)
	}
	return fromMongoDocument(&md)
}

// SetMetadata records the page count. size is written only when no size
// is stored yet.
func (s *MongoStore) SetMetadata(ctx context.Context, id string, pages int, size int64) error {
	update := mongo.Pipeline{{{Key: "$set", Value: bson.D{
		{Key: "page_count", Value: pages},
		{Key: "size_bytes", Value: bson.M{"$ifNull": bson.A{"$size_bytes", size}}},
		{Key: "updated_at", Value: s.now().UTC()},
	}}}}

	res, err := s.documents.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update document metadata: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus performs a conditional status transition.
func (s *MongoStore) UpdateStatus(ctx context.Context, id string, from, to document.Status) (bool, error) {
	res, err := s.documents.UpdateOne(ctx,
		bson.M{"_id": id, "status": string(from)},
		bson.M{"$set": bson.M{"status": string(to), "updated_at": s.now().UTC()}})
	if err != nil {
		return false, fmt.Errorf("failed to update status: %w", err)
	}
	if res.MatchedCount > 0 {
		return true, nil
	}

	n, err := s.documents.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("failed to check document: %w", err)
	}
	if n == 0 {
		return false, ErrNotFound
	}
	return false, nil
}

// Delete removes a record.
func (s *MongoStore) Delete(ctx context.Context, id string) error {
	res, err := s.documents.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// GetOwner returns the owner with the given id.
func (s *MongoStore) GetOwner(ctx context.Context, id string) (*document.Owner, error) {
	var mo mongoOwner
	err := s.owners.FindOne(ctx, bson.M{"_id": id}).Decode(&mo)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get owner: %w", err)
	}
	return &document.Owner{
		ID:           mo.ID,
		Name:         mo.Name,
		CollectionID: mo.CollectionID,
		CreatedAt:    mo.CreatedAt.UTC(),
	}, nil
}

// UpsertOwner creates the owner or renames an existing one.
func (s *MongoStore) UpsertOwner(ctx context.Context, owner *document.Owner) error {
	if owner.CreatedAt.IsZero() {
		owner.CreatedAt = s.now().UTC()
	}

	onInsert := bson.M{"created_at": owner.CreatedAt}
	if owner.CollectionID != "" {
		onInsert["collection_id"] = owner.CollectionID
	}

	_, err := s.owners.UpdateOne(ctx,
		bson.M{"_id": owner.ID},
		bson.M{"$set": bson.M{"name": owner.Name}, "$setOnInsert": onInsert},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert owner: %w", err)
	}
	return nil
}

// SetCollection sets the collection id if the owner has none.
func (s *MongoStore) SetCollection(ctx context.Context, ownerID, collectionID string) (bool, error) {
	filter := bson.M{
		"_id": ownerID,
		"$or": bson.A{
			bson.M{"collection_id": bson.M{"$exists": false}},
			bson.M{"collection_id": ""},
		},
	}

	res, err := s.owners.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"collection_id": collectionID}})
	if err != nil {
		return false, fmt.Errorf("failed to set collection: %w", err)
	}
	if res.MatchedCount > 0 {
		return true, nil
	}

	if _, err := s.GetOwner(ctx, ownerID); err != nil {
		return false, err
	}
	return false, nil
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (*document.Record, error) {
	var md mongoDocument
	err := s.documents.FindOne(ctx, filter).Decode(&md)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find document: %w", err)
	}
	return fromMongoDocument(&md)
}

func (s *MongoStore) find(ctx context.Context, filter bson.M) ([]document.Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cur, err := s.documents.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer cur.Close(ctx)

	var out []document.Record
	for cur.Next(ctx) {
		var md mongoDocument
		if err := cur.Decode(&md); err != nil {
			return nil, fmt.Errorf("failed to decode document: %w", err)
		}
		rec, err := fromMongoDocument(&md)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return out, nil
}

func toMongoDocument(rec *document.Record) *mongoDocument {
	return &mongoDocument{
		ID:                       rec.ID,
		OwnerID:                  rec.OwnerID,
		Filename:                 rec.Filename,
		ExternalFileID:           rec.ExternalFileID,
		ExternalCollectionFileID: rec.ExternalCollectionFileID,
		Status:                   string(rec.Status),
		IsActive:                 rec.IsActive,
		PageCount:                rec.PageCount,
		SizeBytes:                rec.SizeBytes,
		CreatedAt:                rec.CreatedAt,
		UpdatedAt:                rec.UpdatedAt,
	}
}

func fromMongoDocument(md *mongoDocument) (*document.Record, error) {
	st, err := document.ParseStatus(md.Status)
	if err != nil {
		return nil, err
	}
	return &document.Record{
		ID:                       md.ID,
		OwnerID:                  md.OwnerID,
		Filename:                 md.Filename,
		ExternalFileID:           md.ExternalFileID,
		ExternalCollectionFileID: md.ExternalCollectionFileID,
		Status:                   st,
		IsActive:                 md.IsActive,
		PageCount:                md.PageCount,
		SizeBytes:                md.SizeBytes,
		CreatedAt:                md.CreatedAt.UTC(),
		UpdatedAt:                md.UpdatedAt.UTC(),
	}, nil
}
