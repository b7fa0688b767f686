package infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"service-template/config"
	"service-template/example/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const examplesCollection = "examples"

// ConnectMongo abre o client e confirma com ping no primário.
func ConnectMongo(ctx context.Context, cfg config.Database, log zerolog.Logger) (*mongo.Client, error) {
	opts := options.Client().ApplyURI(cfg.URL)
	if cfg.MinPoolSize > 0 {
		opts.SetMinPoolSize(cfg.MinPoolSize)
	}
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		log.Error().Err(err).Msg("database_connection_failed")
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	log.Info().Str("database", cfg.Name).Msg("database_connected")
	return client, nil
}

type exampleDocument struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	Email     string    `bson:"email"`
	IsActive  bool      `bson:"is_active"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func toDocument(e *domain.Example) exampleDocument {
	return exampleDocument{
		ID:        e.ID.String(),
		Name:      e.Name,
		Email:     e.Email,
		IsActive:  e.IsActive,
		CreatedAt: e.CreatedAt.UTC(),
		UpdatedAt: e.UpdatedAt.UTC(),
	}
}

func (d exampleDocument) toEntity() (*domain.Example, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("document %q: %w", d.ID, err)
	}
	return &domain.Example{
		ID:        id,
		Name:      d.Name,
		Email:     d.Email,
		IsActive:  d.IsActive,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}, nil
}

type MongoRepository struct {
	coll *mongo.Collection
}

// NewMongoRepository garante o índice único de email antes de devolver o repositório.
func NewMongoRepository(ctx context.Context, db *mongo.Database) (*MongoRepository, error) {
	coll := db.Collection(examplesCollection)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_unique"),
	})
	if err != nil {
		return nil, fmt.Errorf("create email index: %w", err)
	}
	return &MongoRepository{coll: coll}, nil
}

func (r *MongoRepository) Create(ctx context.Context, e *domain.Example) error {
	_, err := r.coll.InsertOne(ctx, toDocument(e))
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: email %s already exists", domain.ErrAlreadyExists, e.Email)
	}
	return err
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.D) (*domain.Example, error) {
	var doc exampleDocument
	err := r.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toEntity()
}

func (r *MongoRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Example, error) {
	return r.findOne(ctx, bson.D{{Key: "_id", Value: id.String()}})
}

func (r *MongoRepository) GetByEmail(ctx context.Context, email string) (*domain.Example, error) {
	return r.findOne(ctx, bson.D{{Key: "email", Value: email}})
}

func (r *MongoRepository) List(ctx context.Context, skip, limit int) ([]*domain.Example, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))

	cur, err := r.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []exampleDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]*domain.Example, 0, len(docs))
	for _, d := range docs {
		e, err := d.toEntity()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *MongoRepository) Update(ctx context.Context, e *domain.Example) error {
	doc := toDocument(e)
	res, err := r.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: doc.ID}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "name", Value: doc.Name},
			{Key: "email", Value: doc.Email},
			{Key: "is_active", Value: doc.IsActive},
			{Key: "updated_at", Value: doc.UpdatedAt},
		}}},
	)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: email %s already exists", domain.ErrAlreadyExists, e.Email)
	}
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *MongoRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id.String()}})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *MongoRepository) Count(ctx context.Context) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.D{})
}
