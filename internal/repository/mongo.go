package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
)

// faceRegistration mirrors the documents the web backend writes to the
// faceregistrations collection.
type faceRegistration struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Name         string             `bson:"name"`
	FaceEncoding []float64          `bson:"faceEncoding"`
	RegisteredAt time.Time          `bson:"registeredAt"`
}

// MongoIdentityRepository reads and writes face registrations in MongoDB.
type MongoIdentityRepository struct {
	coll *mongo.Collection
}

func NewMongoIdentityRepository(coll *mongo.Collection) *MongoIdentityRepository {
	return &MongoIdentityRepository{coll: coll}
}

// ConnectMongo opens a client and returns the collection for registrations.
func ConnectMongo(ctx context.Context, uri, database, collection string) (*mongo.Client, *mongo.Collection, error) {
	clientOpts := options.Client().ApplyURI(uri)
	clientOpts.SetMinPoolSize(1)
	clientOpts.SetMaxPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}

	return client, client.Database(database).Collection(collection), nil
}

// FetchIdentities returns every registration, oldest first.
func (r *MongoIdentityRepository) FetchIdentities(ctx context.Context) ([]domain.Identity, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "registeredAt", Value: 1},
		{Key: "_id", Value: 1},
	})

	cursor, err := r.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find registrations: %w", err)
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	identities := make([]domain.Identity, 0)
	for cursor.Next(ctx) {
		var doc faceRegistration
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode registration: %w", err)
		}
		identities = append(identities, domain.Identity{
			ID:           doc.ID.Hex(),
			Name:         doc.Name,
			Embedding:    doc.FaceEncoding,
			RegisteredAt: doc.RegisteredAt,
		})
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate registrations: %w", err)
	}

	return identities, nil
}

// SaveIdentity inserts a registration document. Mongo assigns its own
// ObjectID, which becomes the identity id after the next sync.
func (r *MongoIdentityRepository) SaveIdentity(ctx context.Context, identity domain.Identity) error {
	registeredAt := identity.RegisteredAt
	if registeredAt.IsZero() {
		registeredAt = time.Now().UTC()
	}

	doc := faceRegistration{
		Name:         identity.Name,
		FaceEncoding: identity.Embedding,
		RegisteredAt: registeredAt,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert registration: %w", err)
	}

	return nil
}
