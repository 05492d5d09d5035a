package db

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kube-rca/auth-api/internal/config"
	"github.com/kube-rca/auth-api/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	usersCollection        = "users"
	serverSelectionTimeout = 10 * time.Second
	srvScheme              = "mongodb+srv://"
)

// NewMongoClient connects and pings once so a bad URI fails at startup.
func NewMongoClient(ctx context.Context, cfg config.MongoConfig, log *zap.Logger) (*mongo.Client, error) {
	uri, err := buildMongoURI(cfg)
	if err != nil {
		return nil, err
	}

	log.Info("[db] Connecting to MongoDB",
		zap.Bool("srv", strings.HasPrefix(cfg.URI, srvScheme)),
		zap.Duration("server_selection_timeout", serverSelectionTimeout),
		zap.String("tls_allow_invalid_certificates", describeBool(cfg.TLSAllowInvalidCerts)),
		zap.String("tls_allow_invalid_hostnames", describeBool(cfg.TLSAllowInvalidHostnames)),
		zap.String("tls_ca_file", valueOrUnset(cfg.TLSCAFile)),
	)

	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(serverSelectionTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect mongodb: %w", err)
	}

	if err := pingMongo(ctx, client); err != nil {
		_ = client.Disconnect(context.Background())
		log.Error("[db] MongoDB connection failed",
			zap.Bool("tls_error", IsTLSError(err)),
			zap.String("code", ErrorCode(err)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	log.Info("[db] MongoDB connected successfully")
	return client, nil
}

// buildMongoURI folds the TLS knobs into the connection string. Non-SRV
// URIs get tls=true unless the URI already decides it.
func buildMongoURI(cfg config.MongoConfig) (string, error) {
	if cfg.URI == "" {
		return "", fmt.Errorf("MONGODB_URI environment variable is not set")
	}

	base, rawQuery, _ := strings.Cut(cfg.URI, "?")
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "", fmt.Errorf("invalid MONGODB_URI options: %w", err)
	}

	if cfg.TLSAllowInvalidCerts != nil {
		q.Set("tlsAllowInvalidCertificates", strconv.FormatBool(*cfg.TLSAllowInvalidCerts))
	}
	if cfg.TLSAllowInvalidHostnames != nil {
		q.Set("tlsAllowInvalidHostnames", strconv.FormatBool(*cfg.TLSAllowInvalidHostnames))
	}
	if cfg.TLSCAFile != "" {
		q.Set("tlsCAFile", cfg.TLSCAFile)
	}
	if !strings.HasPrefix(cfg.URI, srvScheme) && !q.Has("tls") && !q.Has("ssl") {
		q.Set("tls", "true")
	}
	if len(q) == 0 {
		return base, nil
	}
	return base + "?" + q.Encode(), nil
}

func pingMongo(ctx context.Context, client *mongo.Client) error {
	return client.Database("admin").RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err()
}

func describeBool(v *bool) string {
	if v == nil {
		return "(not set)"
	}
	return strconv.FormatBool(*v)
}

func valueOrUnset(v string) string {
	if v == "" {
		return "(not set)"
	}
	return v
}

type mongoUser struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"passwordHash,omitempty"`
	PasswordSalt string             `bson:"passwordSalt,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt"`
}

func (m mongoUser) toModel() *model.User {
	return &model.User{
		ID:           m.ID.Hex(),
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		PasswordSalt: m.PasswordSalt,
		CreatedAt:    m.CreatedAt,
	}
}

type MongoUserStore struct {
	client *mongo.Client
	users  *mongo.Collection
}

func NewMongoUserStore(client *mongo.Client, database string) *MongoUserStore {
	return &MongoUserStore{
		client: client,
		users:  client.Database(database).Collection(usersCollection),
	}
}

// EnsureIndexes creates the unique email index that backs duplicate detection.
func (s *MongoUserStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_unique"),
	})
	return err
}

func (s *MongoUserStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var doc mongoUser
	if err := s.users.FindOne(ctx, bson.M{"email": email}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return doc.toModel(), nil
}

// FindByID never loads the credential fields.
func (s *MongoUserStore) FindByID(ctx context.Context, id string) (*model.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrUserNotFound
	}

	opts := options.FindOne().SetProjection(bson.M{"passwordHash": 0, "passwordSalt": 0})
	var doc mongoUser
	if err := s.users.FindOne(ctx, bson.M{"_id": oid}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *MongoUserStore) Insert(ctx context.Context, user model.User) (string, error) {
	doc := mongoUser{
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		PasswordSalt: user.PasswordSalt,
		CreatedAt:    user.CreatedAt,
	}
	res, err := s.users.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", ErrDuplicateEmail
		}
		return "", err
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	return oid.Hex(), nil
}

func (s *MongoUserStore) Ping(ctx context.Context) error {
	return pingMongo(ctx, s.client)
}

func (s *MongoUserStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
