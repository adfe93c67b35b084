package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/englishadventure/user-service/internal/core/domain"
)

const (
	collectionAccounts = "accounts"
	collectionCounters = "counters"
	accountsSequence   = "accounts"
)

// AccountRepository stores accounts in MongoDB. Numeric ids come from a
// counters document incremented atomically on every insert.
type AccountRepository struct {
	col      *mongo.Collection
	counters *mongo.Collection
}

func NewAccountRepository(db *mongo.Database) *AccountRepository {
	return &AccountRepository{
		col:      db.Collection(collectionAccounts),
		counters: db.Collection(collectionCounters),
	}
}

type mongoAccount struct {
	ID            int64     `bson:"_id"`
	Username      string    `bson:"username"`
	Email         string    `bson:"email"`
	PasswordHash  string    `bson:"password_hash"`
	AvatarURL     string    `bson:"avatar_url,omitempty"`
	CharacterName string    `bson:"character_name,omitempty"`
	LanguageLevel string    `bson:"language_level"`
	Level         int       `bson:"level"`
	Experience    int64     `bson:"experience"`
	Coins         int64     `bson:"coins"`
	Version       int64     `bson:"version"`
	CreatedAt     time.Time `bson:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

func fromDomain(a *domain.Account) mongoAccount {
	return mongoAccount{
		ID:            a.ID,
		Username:      a.Username,
		Email:         a.Email,
		PasswordHash:  a.PasswordHash,
		AvatarURL:     a.AvatarURL,
		CharacterName: a.CharacterName,
		LanguageLevel: a.LanguageLevel,
		Level:         a.Level,
		Experience:    a.Experience,
		Coins:         a.Coins,
		Version:       a.Version,
		CreatedAt:     a.CreatedAt.UTC(),
		UpdatedAt:     a.UpdatedAt.UTC(),
	}
}

func (m mongoAccount) toDomain() *domain.Account {
	return &domain.Account{
		ID:            m.ID,
		Username:      m.Username,
		Email:         m.Email,
		PasswordHash:  m.PasswordHash,
		AvatarURL:     m.AvatarURL,
		CharacterName: m.CharacterName,
		LanguageLevel: m.LanguageLevel,
		Level:         m.Level,
		Experience:    m.Experience,
		Coins:         m.Coins,
		Version:       m.Version,
		CreatedAt:     m.CreatedAt.UTC(),
		UpdatedAt:     m.UpdatedAt.UTC(),
	}
}

// Create allocates the next id and inserts the account. A duplicate username
// or email reported by the unique indexes becomes domain.ErrAccountExists.
func (r *AccountRepository) Create(ctx context.Context, a *domain.Account) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	id, err := r.nextID(ctx)
	if err != nil {
		return nil, err
	}

	doc := fromDomain(a)
	doc.ID = id
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrAccountExists
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *AccountRepository) nextID(ctx context.Context) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": accountsSequence},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next account id: %w", err)
	}
	return counter.Seq, nil
}

func (r *AccountRepository) FindByID(ctx context.Context, id int64) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *AccountRepository) FindByUsername(ctx context.Context, username string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *AccountRepository) findOne(ctx context.Context, filter bson.M) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc mongoAccount
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return doc.toDomain(), nil
}

// Update replaces the mutable fields when the stored version matches
// a.Version, then bumps a.Version.
func (r *AccountRepository) Update(ctx context.Context, a *domain.Account) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	next := a.Version + 1
	update := bson.M{"$set": bson.M{
		"username":       a.Username,
		"email":          a.Email,
		"avatar_url":     a.AvatarURL,
		"character_name": a.CharacterName,
		"language_level": a.LanguageLevel,
		"level":          a.Level,
		"experience":     a.Experience,
		"coins":          a.Coins,
		"version":        next,
		"updated_at":     a.UpdatedAt.UTC(),
	}}

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": a.ID, "version": a.Version}, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrAccountExists
		}
		return fmt.Errorf("update account: %w", err)
	}

	if res.MatchedCount == 0 {
		n, err := r.col.CountDocuments(ctx, bson.M{"_id": a.ID})
		if err != nil {
			return fmt.Errorf("update account: %w", err)
		}
		if n == 0 {
			return domain.ErrAccountNotFound
		}
		return domain.ErrVersionConflict
	}

	a.Version = next
	return nil
}

// TopByExperience returns the leaderboard slice, experience descending and id
// ascending on ties.
func (r *AccountRepository) TopByExperience(ctx context.Context, limit int) ([]*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "experience", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))

	cur, err := r.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find top accounts: %w", err)
	}
	defer cur.Close(ctx)

	var docs []mongoAccount
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode top accounts: %w", err)
	}

	out := make([]*domain.Account, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

// EnsureIndexes creates the unique and leaderboard indexes on the accounts collection.
func (r *AccountRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_username")},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_email")},
		{Keys: bson.D{{Key: "experience", Value: -1}, {Key: "_id", Value: 1}}, Options: options.Index().SetName("leaderboard")},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
