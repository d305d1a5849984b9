// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pdiddy/webshield/pkg/types"
)

func TestFromDocuments(t *testing.T) {
	docs := []bson.D{
		{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "having_IP_Address", Value: int32(-1)}, {Key: "URL_Length", Value: "na"}, {Key: "Result", Value: int64(1)}},
		{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "having_IP_Address", Value: 1.0}, {Key: "URL_Length", Value: int32(0)}, {Key: "Result", Value: int64(-1)}},
	}

	d := FromDocuments(docs)
	assert.Equal(t, []string{"having_IP_Address", "URL_Length", "Result"}, d.Columns)
	require.Len(t, d.Records, 2)

	first := d.Records[0]
	_, hasID := first["_id"]
	assert.False(t, hasID)
	assert.Equal(t, -1.0, first["having_IP_Address"])
	assert.Nil(t, first["URL_Length"])
	assert.Equal(t, 1.0, first["Result"])
	assert.Equal(t, 0.0, d.Records[1]["URL_Length"])
}

func TestFromDocumentsUnionsColumns(t *testing.T) {
	docs := []bson.D{
		{{Key: "a", Value: int32(1)}},
		{{Key: "a", Value: int32(2)}, {Key: "b", Value: "x"}},
	}
	d := FromDocuments(docs)
	assert.Equal(t, []string{"a", "b"}, d.Columns)
	assert.Nil(t, d.Records[0]["b"])
	assert.Equal(t, "x", d.Records[1]["b"])
}

func TestToDocumentsKeepsColumnOrder(t *testing.T) {
	d := types.Dataset{
		Columns: []string{"z", "a"},
		Records: []types.Record{{"z": 1.0, "a": nil}},
	}
	docs := ToDocuments(d)
	require.Len(t, docs, 1)
	doc := docs[0].(bson.D)
	assert.Equal(t, "z", doc[0].Key)
	assert.Equal(t, "a", doc[1].Key)
	assert.Nil(t, doc[1].Value)
}

func TestCSVFetch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("_id,a,Result\n1,na,-1\n2,3,1\n"), 0o644))

	d, err := CSV{Path: path}.Fetch(context.Background(), "db", "coll")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "Result"}, d.Columns)
	assert.Nil(t, d.Records[0]["a"])
	assert.Equal(t, 3.0, d.Records[1]["a"])
}

func TestCSVFetchMissingFile(t *testing.T) {
	_, err := CSV{Path: filepath.Join(t.TempDir(), "none.csv")}.Fetch(context.Background(), "", "")
	var ce *types.ConnectivityError
	require.True(t, errors.As(err, &ce))
}

func TestDialMongoWithoutURL(t *testing.T) {
	_, err := DialMongo(context.Background(), types.MongoConfig{})
	var ce *types.ConnectivityError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "mongodb", ce.Target)
}

func TestNewRejectsUnknownKind(t *testing.T) {
	_, err := New(context.Background(), types.SourceConfig{Kind: "s3"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown source kind")

	_, err = New(context.Background(), types.SourceConfig{Kind: types.SourceCSV})
	require.Error(t, err)
}
