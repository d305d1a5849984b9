// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/pdiddy/webshield/pkg/types"
)

// Mongo reads and writes collections on a MongoDB deployment.
type Mongo struct {
	client *mongo.Client
}

// DialMongo connects to cfg.URL and pings the primary. Any failure is a
// ConnectivityError; no retry is attempted.
func DialMongo(ctx context.Context, cfg types.MongoConfig) (*Mongo, error) {
	if cfg.URL == "" {
		return nil, &types.ConnectivityError{Target: "mongodb", Err: fmt.Errorf("no connection URL configured (set MONGO_DB_URL or the mongo-db-url secret)")}
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	opts := options.Client().
		ApplyURI(cfg.URL).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, &types.ConnectivityError{Target: "mongodb", Err: err}
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, &types.ConnectivityError{Target: "mongodb", Err: err}
	}
	return &Mongo{client: client}, nil
}

// Name returns "mongodb".
func (m *Mongo) Name() string { return "mongodb" }

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Fetch reads every document of database.collection.
func (m *Mongo) Fetch(ctx context.Context, database, collection string) (types.Dataset, error) {
	coll := m.client.Database(database).Collection(collection)
	cur, err := coll.Find(ctx, bson.D{})
	if err != nil {
		return types.Dataset{}, &types.ConnectivityError{Target: "mongodb", Err: fmt.Errorf("find %s.%s: %w", database, collection, err)}
	}
	var docs []bson.D
	if err := cur.All(ctx, &docs); err != nil {
		return types.Dataset{}, &types.ConnectivityError{Target: "mongodb", Err: fmt.Errorf("reading %s.%s: %w", database, collection, err)}
	}
	return FromDocuments(docs), nil
}

// Push inserts every record of d into database.collection and returns the
// number of documents inserted.
func (m *Mongo) Push(ctx context.Context, database, collection string, d types.Dataset) (int, error) {
	if d.Len() == 0 {
		return 0, nil
	}
	coll := m.client.Database(database).Collection(collection)
	res, err := coll.InsertMany(ctx, ToDocuments(d))
	if err != nil {
		return 0, &types.ConnectivityError{Target: "mongodb", Err: fmt.Errorf("insert into %s.%s: %w", database, collection, err)}
	}
	return len(res.InsertedIDs), nil
}

// FromDocuments converts documents into a Dataset. Columns appear in
// first-seen order, the _id field is dropped, numbers become float64, and the
// "na" placeholder becomes nil.
func FromDocuments(docs []bson.D) types.Dataset {
	var d types.Dataset
	seen := make(map[string]bool)
	for _, doc := range docs {
		rec := make(types.Record, len(doc))
		for _, e := range doc {
			if e.Key == IDColumn {
				continue
			}
			if !seen[e.Key] {
				seen[e.Key] = true
				d.Columns = append(d.Columns, e.Key)
			}
			rec[e.Key] = normalize(e.Value)
		}
		d.Records = append(d.Records, rec)
	}
	return d
}

// ToDocuments converts records into documents keyed in column order.
func ToDocuments(d types.Dataset) []interface{} {
	docs := make([]interface{}, 0, d.Len())
	for _, r := range d.Records {
		doc := make(bson.D, 0, len(d.Columns))
		for _, c := range d.Columns {
			doc = append(doc, bson.E{Key: c, Value: r[c]})
		}
		docs = append(docs, doc)
	}
	return docs
}

func normalize(v any) any {
	switch x := v.(type) {
	case nil, primitive.Null, primitive.Undefined:
		return nil
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case float64:
		return x
	case bool:
		if x {
			return 1.0
		}
		return 0.0
	case primitive.Decimal128:
		return types.ParseCell(x.String())
	case string:
		if types.IsMissing(x) {
			return nil
		}
		return x
	}
	return fmt.Sprint(v)
}
