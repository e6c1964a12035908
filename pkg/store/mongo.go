package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atomicdeploy/form-receipts/pkg/submission"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	mongoopts "go.mongodb.org/mongo-driver/mongo/options"
)

// MongoCollection is the collection submissions are kept in.
const MongoCollection = "formdatas"

// MongoStore keeps submissions in a MongoDB collection. Ids are ObjectID
// hex strings.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// mongoDoc is the stored document; the id is a native ObjectID.
type mongoDoc struct {
	ID        primitive.ObjectID `bson:"_id"`
	Name      string             `bson:"name"`
	Email     string             `bson:"email"`
	Phone     string             `bson:"phone"`
	Message   string             `bson:"message,omitempty"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (d mongoDoc) submission() submission.Submission {
	return submission.Submission{
		ID:        d.ID.Hex(),
		Name:      d.Name,
		Email:     d.Email,
		Phone:     d.Phone,
		Message:   d.Message,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

// NewMongoStore connects to uri and uses database.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("mongo store needs a connection URI")
	}
	if database == "" {
		database = "forms"
	}

	client, err := mongo.Connect(ctx, mongoopts.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to reach MongoDB: %w", err)
	}

	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection(MongoCollection),
	}, nil
}

// Create implements Store.
func (m *MongoStore) Create(ctx context.Context, in submission.Input) (submission.Submission, error) {
	in, err := prepare(in)
	if err != nil {
		return submission.Submission{}, err
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := mongoDoc{
		ID:        primitive.NewObjectID(),
		Name:      in.Name,
		Email:     in.Email,
		Phone:     in.Phone,
		Message:   in.Message,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := m.coll.InsertOne(ctx, doc); err != nil {
		return submission.Submission{}, fmt.Errorf("failed to insert submission: %w", err)
	}
	return doc.submission(), nil
}

// List implements Store.
func (m *MongoStore) List(ctx context.Context) ([]submission.Submission, error) {
	opts := mongoopts.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := m.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer cur.Close(ctx)

	var docs []mongoDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode submissions: %w", err)
	}

	subs := make([]submission.Submission, len(docs))
	for i, d := range docs {
		subs[i] = d.submission()
	}
	return subs, nil
}

// Get implements Store. Ids that are not valid ObjectIDs are reported as
// not found.
func (m *MongoStore) Get(ctx context.Context, id string) (submission.Submission, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return submission.Submission{}, ErrNotFound
	}

	var doc mongoDoc
	err = m.coll.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return submission.Submission{}, ErrNotFound
	}
	if err != nil {
		return submission.Submission{}, fmt.Errorf("failed to load submission: %w", err)
	}
	return doc.submission(), nil
}

// Close implements Store.
func (m *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
