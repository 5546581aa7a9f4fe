package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// FilesCollection is the MongoDB collection holding file records.
const FilesCollection = "files"

type mongoFile struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	Filename       string             `bson:"filename"`
	Path           string             `bson:"path"`
	Type           string             `bson:"type"`
	Size           int64              `bson:"size"`
	Alt            string             `bson:"alt,omitempty"`
	Description    string             `bson:"description,omitempty"`
	PassphraseCode string             `bson:"passphraseCode,omitempty"`
	UploadedAt     time.Time          `bson:"uploadedAt"`
}

func (m mongoFile) toFile() File {
	return File{
		ID:             m.ID.Hex(),
		Filename:       m.Filename,
		Path:           m.Path,
		Type:           m.Type,
		Size:           m.Size,
		Alt:            m.Alt,
		Description:    m.Description,
		PassphraseCode: m.PassphraseCode,
		UploadedAt:     m.UploadedAt,
	}
}

func newMongoFile(f *File) mongoFile {
	return mongoFile{
		Filename:       f.Filename,
		Path:           f.Path,
		Type:           f.Type,
		Size:           f.Size,
		Alt:            f.Alt,
		Description:    f.Description,
		PassphraseCode: f.PassphraseCode,
		UploadedAt:     f.UploadedAt.UTC(),
	}
}

// MongoStore keeps records in a MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// OpenMongo connects to uri, verifies connectivity and ensures the
// collection indexes exist.
func OpenMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("MONGODB_URI is empty")
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	s := NewMongoStore(client, database)
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// NewMongoStore wraps an already connected client.
func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection(FilesCollection),
	}
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "filename", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "passphraseCode", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	})
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Create(ctx context.Context, f *File) error {
	stampUploadedAt(f)
	res, err := s.coll.InsertOne(ctx, newMongoFile(f))
	if err != nil {
		return fmt.Errorf("insert file record: %w", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	f.ID = oid.Hex()
	return nil
}

func (s *MongoStore) List(ctx context.Context) ([]File, error) {
	cur, err := s.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find file records: %w", err)
	}
	var docs []mongoFile
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode file records: %w", err)
	}
	files := make([]File, 0, len(docs))
	for _, d := range docs {
		files = append(files, d.toFile())
	}
	return files, nil
}

func (s *MongoStore) FindByID(ctx context.Context, id string) (*File, error) {
	filter, err := idFilter(id)
	if err != nil {
		return nil, err
	}
	return decodeOne(s.coll.FindOne(ctx, filter))
}

func (s *MongoStore) FindOne(ctx context.Context, field Field, value string) (*File, error) {
	filter, err := fieldFilter(field, value)
	if err != nil {
		return nil, err
	}
	return decodeOne(s.coll.FindOne(ctx, filter))
}

func (s *MongoStore) DeleteByID(ctx context.Context, id string) (*File, error) {
	filter, err := idFilter(id)
	if err != nil {
		return nil, err
	}
	return decodeOne(s.coll.FindOneAndDelete(ctx, filter))
}

func (s *MongoStore) DeleteOne(ctx context.Context, field Field, value string) (*File, error) {
	filter, err := fieldFilter(field, value)
	if err != nil {
		return nil, err
	}
	return decodeOne(s.coll.FindOneAndDelete(ctx, filter))
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func idFilter(id string) (bson.M, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return bson.M{"_id": oid}, nil
}

func fieldFilter(field Field, value string) (bson.M, error) {
	if value == "" {
		return nil, ErrNotFound
	}
	switch field {
	case FieldFilename, FieldPath, FieldPassphrase:
		return bson.M{string(field): value}, nil
	default:
		return nil, fmt.Errorf("unsupported lookup field %q", field)
	}
}

func decodeOne(res *mongo.SingleResult) (*File, error) {
	var doc mongoFile
	if err := res.Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("decode file record: %w", err)
	}
	f := doc.toFile()
	return &f, nil
}
