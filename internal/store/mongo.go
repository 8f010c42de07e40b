package store

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fairyhunter13/product-catalog-service/internal/catalog"
	"github.com/fairyhunter13/product-catalog-service/internal/model"
)

// MongoConfig locates the products collection.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

// Mongo implements catalog.CatalogStore on a MongoDB collection.
type Mongo struct {
	client  *mongo.Client
	coll    *mongo.Collection
	timeout time.Duration
	now     func() time.Time
}

// ConnectMongo dials cfg.URI and pings the primary.
func ConnectMongo(ctx context.Context, cfg MongoConfig) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, errors.Wrap(err, "mongo connect")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "mongo ping")
	}
	m := NewMongo(client.Database(cfg.Database).Collection(cfg.Collection), cfg.Timeout)
	m.client = client
	return m, nil
}

// NewMongo wraps an existing collection. timeout bounds every call; zero
// leaves the caller's deadline alone.
func NewMongo(coll *mongo.Collection, timeout time.Duration) *Mongo {
	return &Mongo{coll: coll, timeout: timeout, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Mongo) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// EnsureIndexes creates the sku, text, category and seller indexes.
func (s *Mongo) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "sku", Value: 1}}, Options: options.Index().SetName("sku_unique").SetUnique(true).SetSparse(true)},
		{Keys: bson.D{{Key: "title", Value: "text"}, {Key: "description", Value: "text"}}, Options: options.Index().SetName("title_description_text")},
		{Keys: bson.D{{Key: "category", Value: 1}}, Options: options.Index().SetName("category")},
		{Keys: bson.D{{Key: "seller", Value: 1}}, Options: options.Index().SetName("seller")},
	})
	if err != nil {
		return errors.Wrap(err, "create indexes")
	}
	return nil
}

func (s *Mongo) Create(ctx context.Context, p model.Product) (model.Product, error) {
	if err := checkInvariants(p); err != nil {
		return model.Product{}, err
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	now := s.now().Truncate(time.Millisecond)
	p.ID = ""
	p.Version = 1
	p.CreatedAt = now
	p.UpdatedAt = now
	doc, err := toDoc(p)
	if err != nil {
		return model.Product{}, err
	}
	doc.ID = primitive.NewObjectID()
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.Product{}, duplicateSKU(p.SKU)
		}
		return model.Product{}, errors.Wrap(err, "insert product")
	}
	p.ID = doc.ID.Hex()
	return p, nil
}

func (s *Mongo) GetByID(ctx context.Context, id string) (model.Product, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return model.Product{}, catalog.ErrNoRecord
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var doc productDoc
	if err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.Product{}, catalog.ErrNoRecord
		}
		return model.Product{}, errors.Wrap(err, "find product")
	}
	return doc.product()
}

// Update replaces the mutable fields of p when the stored version equals
// expectedVersion and returns the stored after-image.
func (s *Mongo) Update(ctx context.Context, p model.Product, expectedVersion int64) (model.Product, error) {
	oid, err := primitive.ObjectIDFromHex(p.ID)
	if err != nil {
		return model.Product{}, catalog.ErrNoRecord
	}
	if err := checkInvariants(p); err != nil {
		return model.Product{}, err
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	doc, err := toDoc(p)
	if err != nil {
		return model.Product{}, err
	}
	set := doc.mutable()
	set["updatedAt"] = s.now().Truncate(time.Millisecond)
	update := bson.M{"$set": set, "$inc": bson.M{"version": 1}}
	if doc.SKU == "" {
		update["$unset"] = bson.M{"sku": ""}
	}

	var after productDoc
	err = s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": oid, "version": expectedVersion},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&after)
	switch {
	case err == nil:
		return after.product()
	case mongo.IsDuplicateKeyError(err):
		return model.Product{}, duplicateSKU(p.SKU)
	case !errors.Is(err, mongo.ErrNoDocuments):
		return model.Product{}, errors.Wrap(err, "update product")
	}

	n, err := s.coll.CountDocuments(ctx, bson.M{"_id": oid})
	if err != nil {
		return model.Product{}, errors.Wrap(err, "check product")
	}
	if n == 0 {
		return model.Product{}, catalog.ErrNoRecord
	}
	return model.Product{}, catalog.ErrStaleVersion
}

func (s *Mongo) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return catalog.ErrNoRecord
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return errors.Wrap(err, "delete product")
	}
	if res.DeletedCount == 0 {
		return catalog.ErrNoRecord
	}
	return nil
}

// Search runs f against the collection. A text query ranks by relevance,
// otherwise results come in insertion order.
func (s *Mongo) Search(ctx context.Context, f model.Filter) ([]model.Product, error) {
	f.Normalize()
	filter, err := searchFilter(f)
	if err != nil {
		return nil, err
	}
	opts := options.Find().SetSkip(f.Skip).SetLimit(f.Limit)
	if f.Query != "" {
		score := bson.M{"score": bson.M{"$meta": "textScore"}}
		opts.SetProjection(score).SetSort(score)
	} else {
		opts.SetSort(bson.D{{Key: "_id", Value: 1}})
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find products")
	}
	var docs []productDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decode products")
	}
	out := make([]model.Product, 0, len(docs))
	for _, d := range docs {
		p, err := d.product()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func searchFilter(f model.Filter) (bson.M, error) {
	filter := bson.M{}
	if f.Query != "" {
		filter["$text"] = bson.M{"$search": f.Query}
	}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	price := bson.M{}
	if f.MinPrice != nil {
		d, err := toDecimal128(*f.MinPrice)
		if err != nil {
			return nil, err
		}
		price["$gte"] = d
	}
	if f.MaxPrice != nil {
		d, err := toDecimal128(*f.MaxPrice)
		if err != nil {
			return nil, err
		}
		price["$lte"] = d
	}
	if len(price) > 0 {
		filter["price.amount"] = price
	}
	return filter, nil
}

func (s *Mongo) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	out, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, errors.Wrapf(err, "decimal %s", d)
	}
	return out, nil
}

func fromDecimal128(d primitive.Decimal128) (decimal.Decimal, error) {
	out, err := decimal.NewFromString(d.String())
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "decimal128 %s", d)
	}
	return out, nil
}
