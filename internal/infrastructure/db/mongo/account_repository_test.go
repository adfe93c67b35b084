package mongo

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/englishadventure/user-service/internal/core/domain"
)

const testNS = "test.accounts"

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func accountDoc(id int64, username string, xp int64, version int64) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "username", Value: username},
		{Key: "email", Value: username + "@example.com"},
		{Key: "password_hash", Value: "hash"},
		{Key: "language_level", Value: "A1"},
		{Key: "level", Value: int32(domain.LevelForExperience(xp))},
		{Key: "experience", Value: xp},
		{Key: "coins", Value: int64(100)},
		{Key: "version", Value: version},
		{Key: "created_at", Value: primitive.NewDateTimeFromTime(testNow)},
		{Key: "updated_at", Value: primitive.NewDateTimeFromTime(testNow)},
	}
}

func TestAccountRepository_Create(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("assigns sequence id", func(mt *mtest.T) {
		repo := NewAccountRepository(mt.DB)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
				{Key: "_id", Value: accountsSequence},
				{Key: "seq", Value: int64(7)},
			}}),
			mtest.CreateSuccessResponse(),
		)

		created, err := repo.Create(context.Background(), domain.NewAccount("ana", "ana@example.com", "hash", "", testNow))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if created.ID != 7 {
			t.Fatalf("expected id 7, got %d", created.ID)
		}
		if created.Coins != 100 || created.Version != 1 {
			t.Errorf("unexpected created account: %+v", created)
		}
	})

	mt.Run("duplicate key", func(mt *mtest.T) {
		repo := NewAccountRepository(mt.DB)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{{Key: "seq", Value: int64(8)}}}),
			mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate key error"}),
		)

		_, err := repo.Create(context.Background(), domain.NewAccount("ana", "ana@example.com", "hash", "", testNow))
		if !errors.Is(err, domain.ErrAccountExists) {
			t.Fatalf("expected ErrAccountExists, got %v", err)
		}
	})
}

func TestAccountRepository_Find(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("by username", func(mt *mtest.T) {
		repo := NewAccountRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testNS, mtest.FirstBatch, accountDoc(3, "ana", 250, 2)))

		a, err := repo.FindByUsername(context.Background(), "ana")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a.ID != 3 || a.Username != "ana" || a.Experience != 250 || a.Level != 3 || a.Version != 2 {
			t.Fatalf("unexpected account: %+v", a)
		}
		if !a.CreatedAt.Equal(testNow) {
			t.Errorf("expected createdAt %v, got %v", testNow, a.CreatedAt)
		}
	})

	mt.Run("not found", func(mt *mtest.T) {
		repo := NewAccountRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testNS, mtest.FirstBatch))

		if _, err := repo.FindByID(context.Background(), 99); !errors.Is(err, domain.ErrAccountNotFound) {
			t.Fatalf("expected ErrAccountNotFound, got %v", err)
		}
	})
}

func TestAccountRepository_Update(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("bumps version", func(mt *mtest.T) {
		repo := NewAccountRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		a := domain.NewAccount("ana", "ana@example.com", "hash", "", testNow)
		a.ID = 3
		if err := repo.Update(context.Background(), a); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a.Version != 2 {
			t.Fatalf("expected version 2, got %d", a.Version)
		}
	})

	mt.Run("stale version", func(mt *mtest.T) {
		repo := NewAccountRepository(mt.DB)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
			mtest.CreateCursorResponse(0, testNS, mtest.FirstBatch, bson.D{{Key: "n", Value: int32(1)}}),
		)

		a := domain.NewAccount("ana", "ana@example.com", "hash", "", testNow)
		a.ID = 3
		if err := repo.Update(context.Background(), a); !errors.Is(err, domain.ErrVersionConflict) {
			t.Fatalf("expected ErrVersionConflict, got %v", err)
		}
		if a.Version != 1 {
			t.Errorf("version must not change on conflict, got %d", a.Version)
		}
	})

	mt.Run("missing account", func(mt *mtest.T) {
		repo := NewAccountRepository(mt.DB)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
			mtest.CreateCursorResponse(0, testNS, mtest.FirstBatch),
		)

		a := domain.NewAccount("ana", "ana@example.com", "hash", "", testNow)
		a.ID = 42
		if err := repo.Update(context.Background(), a); !errors.Is(err, domain.ErrAccountNotFound) {
			t.Fatalf("expected ErrAccountNotFound, got %v", err)
		}
	})

	mt.Run("duplicate email", func(mt *mtest.T) {
		repo := NewAccountRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate key error"}))

		a := domain.NewAccount("ana", "taken@example.com", "hash", "", testNow)
		a.ID = 3
		if err := repo.Update(context.Background(), a); !errors.Is(err, domain.ErrAccountExists) {
			t.Fatalf("expected ErrAccountExists, got %v", err)
		}
	})
}

func TestAccountRepository_TopByExperience(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("decodes in order", func(mt *mtest.T) {
		repo := NewAccountRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testNS, mtest.FirstBatch,
			accountDoc(2, "bob", 900, 1),
			accountDoc(1, "ana", 300, 1),
			accountDoc(5, "eve", 300, 1),
		))

		top, err := repo.TopByExperience(context.Background(), 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(top) != 3 {
			t.Fatalf("expected 3 accounts, got %d", len(top))
		}
		if top[0].Username != "bob" || top[1].ID != 1 || top[2].ID != 5 {
			t.Fatalf("unexpected order: %v %v %v", top[0].ID, top[1].ID, top[2].ID)
		}
	})

	mt.Run("empty", func(mt *mtest.T) {
		repo := NewAccountRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testNS, mtest.FirstBatch))

		top, err := repo.TopByExperience(context.Background(), 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(top) != 0 {
			t.Fatalf("expected no accounts, got %d", len(top))
		}
	})
}
