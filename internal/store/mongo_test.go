package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/fairyhunter13/product-catalog-service/internal/catalog"
	"github.com/fairyhunter13/product-catalog-service/internal/model"
)

func ns(mt *mtest.T) string {
	return mt.Coll.Database().Name() + "." + mt.Coll.Name()
}

func stored(t testing.TB, p model.Product) bson.D {
	t.Helper()
	d, err := toDoc(p)
	require.NoError(t, err)
	raw, err := bson.Marshal(d)
	require.NoError(t, err)
	var out bson.D
	require.NoError(t, bson.Unmarshal(raw, &out))
	return out
}

func storedSample(id string, version int64) model.Product {
	p := sample("hammer", 10)
	p.ID = id
	p.SKU = "HAM-1"
	p.Version = version
	p.Images = []model.Image{{URL: "https://cdn/a", Thumbnail: "https://cdn/a", FileID: "f-1"}}
	p.CreatedAt = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	p.UpdatedAt = p.CreatedAt
	return p
}

func TestMongoCreate(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("assigns identity", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		s := NewMongo(mt.Coll, time.Second)

		p, err := s.Create(context.Background(), sample("hammer", 10))
		require.NoError(mt, err)
		require.True(mt, primitive.IsValidObjectID(p.ID))
		require.Equal(mt, int64(1), p.Version)
		require.False(mt, p.CreatedAt.IsZero())
		require.Equal(mt, p.CreatedAt, p.UpdatedAt)
	})

	mt.Run("duplicate sku", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: catalog.products index: sku_unique",
		}))
		s := NewMongo(mt.Coll, time.Second)

		p := sample("hammer", 10)
		p.SKU = "HAM-1"
		_, err := s.Create(context.Background(), p)
		require.ErrorIs(mt, err, catalog.ErrDuplicateKey)
	})

	mt.Run("invariant checked before write", func(mt *mtest.T) {
		s := NewMongo(mt.Coll, time.Second)
		p := sample("hammer", 10)
		p.Price.Amount = decimal.NewFromInt(-1)
		_, err := s.Create(context.Background(), p)
		require.ErrorIs(mt, err, ErrInvariant)
	})
}

func TestMongoGetByID(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	id := primitive.NewObjectID().Hex()

	mt.Run("found", func(mt *mtest.T) {
		want := storedSample(id, 3)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, stored(mt, want)))
		s := NewMongo(mt.Coll, time.Second)

		got, err := s.GetByID(context.Background(), id)
		require.NoError(mt, err)
		require.Equal(mt, id, got.ID)
		require.Equal(mt, int64(3), got.Version)
		require.True(mt, got.Price.Amount.Equal(decimal.NewFromInt(10)))
		require.Equal(mt, want.Images, got.Images)
		require.Equal(mt, want.CreatedAt, got.CreatedAt)
	})

	mt.Run("missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch))
		s := NewMongo(mt.Coll, time.Second)
		_, err := s.GetByID(context.Background(), id)
		require.ErrorIs(mt, err, catalog.ErrNoRecord)
	})

	mt.Run("malformed id", func(mt *mtest.T) {
		s := NewMongo(mt.Coll, time.Second)
		_, err := s.GetByID(context.Background(), "not-an-object-id")
		require.ErrorIs(mt, err, catalog.ErrNoRecord)
	})
}

func TestMongoUpdate(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	id := primitive.NewObjectID().Hex()

	mt.Run("returns after image", func(mt *mtest.T) {
		after := storedSample(id, 4)
		after.Stock = 0
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: stored(mt, after)}})
		s := NewMongo(mt.Coll, time.Second)

		next := storedSample(id, 3)
		next.Stock = 0
		got, err := s.Update(context.Background(), next, 3)
		require.NoError(mt, err)
		require.Equal(mt, int64(4), got.Version)
		require.Equal(mt, int64(0), got.Stock)
	})

	mt.Run("stale version", func(mt *mtest.T) {
		mt.AddMockResponses(
			bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: nil}},
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, bson.D{{Key: "n", Value: int32(1)}}),
		)
		s := NewMongo(mt.Coll, time.Second)
		_, err := s.Update(context.Background(), storedSample(id, 3), 3)
		require.ErrorIs(mt, err, catalog.ErrStaleVersion)
	})

	mt.Run("deleted meanwhile", func(mt *mtest.T) {
		mt.AddMockResponses(
			bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: nil}},
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch),
		)
		s := NewMongo(mt.Coll, time.Second)
		_, err := s.Update(context.Background(), storedSample(id, 3), 3)
		require.ErrorIs(mt, err, catalog.ErrNoRecord)
	})

	mt.Run("duplicate sku", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    11000,
			Name:    "DuplicateKey",
			Message: "E11000 duplicate key error",
		}))
		s := NewMongo(mt.Coll, time.Second)
		_, err := s.Update(context.Background(), storedSample(id, 3), 3)
		require.ErrorIs(mt, err, catalog.ErrDuplicateKey)
	})
}

func TestMongoDelete(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	id := primitive.NewObjectID().Hex()

	mt.Run("removed", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(1)}))
		require.NoError(mt, NewMongo(mt.Coll, time.Second).Delete(context.Background(), id))
	})

	mt.Run("missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(0)}))
		err := NewMongo(mt.Coll, time.Second).Delete(context.Background(), id)
		require.ErrorIs(mt, err, catalog.ErrNoRecord)
	})
}

func TestMongoSearch(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("decodes page", func(mt *mtest.T) {
		a := storedSample(primitive.NewObjectID().Hex(), 1)
		b := storedSample(primitive.NewObjectID().Hex(), 2)
		b.SKU = "HAM-2"
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, stored(mt, a), stored(mt, b)))

		got, err := NewMongo(mt.Coll, time.Second).Search(context.Background(), model.Filter{Query: "hammer"})
		require.NoError(mt, err)
		require.Len(mt, got, 2)
		require.Equal(mt, a.ID, got[0].ID)
		require.Equal(mt, "HAM-2", got[1].SKU)
	})

	mt.Run("indexes", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		require.NoError(mt, NewMongo(mt.Coll, time.Second).EnsureIndexes(context.Background()))
	})
}

func TestSearchFilter(t *testing.T) {
	floor := decimal.RequireFromString("9.99")
	ceil := decimal.NewFromInt(50)
	f, err := searchFilter(model.Filter{Query: "red hammer", Category: "tools", MinPrice: &floor, MaxPrice: &ceil})
	require.NoError(t, err)

	require.Equal(t, bson.M{"$search": "red hammer"}, f["$text"])
	require.Equal(t, "tools", f["category"])
	price, ok := f["price.amount"].(bson.M)
	require.True(t, ok)
	require.Equal(t, "9.99", price["$gte"].(primitive.Decimal128).String())
	require.Equal(t, "50", price["$lte"].(primitive.Decimal128).String())

	empty, err := searchFilter(model.Filter{})
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestDocumentRoundTripKeepsMoneyExact(t *testing.T) {
	p := storedSample(primitive.NewObjectID().Hex(), 2)
	p.Price.Amount = decimal.RequireFromString("1999.95")
	p.OriginalPrice = decimal.RequireFromString("0.10")
	d, err := toDoc(p)
	require.NoError(t, err)
	back, err := d.product()
	require.NoError(t, err)
	require.Equal(t, "1999.95", back.Price.Amount.String())
	require.True(t, back.OriginalPrice.Equal(decimal.RequireFromString("0.1")))
	require.Equal(t, p.ID, back.ID)
}
