package databases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/pocket-infra-api/config"
	"github.com/linesmerrill/pocket-infra-api/databases"
	"github.com/linesmerrill/pocket-infra-api/databases/mocks"
	"github.com/linesmerrill/pocket-infra-api/models"
)

func strPtr(s string) *string { return &s }

func TestNewReportDatabase(t *testing.T) {
	t.Setenv("DB_URI", "mongodb://127.0.0.1:27017")
	t.Setenv("DB_NAME", "test")
	conf := config.New()

	dbClient, err := databases.NewClient(conf)
	assert.NoError(t, err)

	db := databases.NewDatabase(conf, dbClient)

	reportDB := databases.NewReportDatabase(db)

	assert.NotEmpty(t, reportDB)
}

func TestReportDatabase_FindOne(t *testing.T) {

	// define variables for interfaces
	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper
	var srHelperErr databases.SingleResultHelper
	var srHelperCorrect databases.SingleResultHelper

	// set interfaces implementation to mocked structures
	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}
	srHelperErr = &mocks.SingleResultHelper{}
	srHelperCorrect = &mocks.SingleResultHelper{}

	id := primitive.NewObjectID()

	srHelperErr.(*mocks.SingleResultHelper).
		On("Decode", mock.Anything).
		Return(errors.New("mocked-error"))

	srHelperCorrect.(*mocks.SingleResultHelper).
		On("Decode", mock.Anything).
		Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.Report)
		(*arg).ID = id
	})

	collectionHelper.(*mocks.CollectionHelper).
		On("FindOne", context.Background(), bson.M{"error": true}).
		Return(srHelperErr)

	collectionHelper.(*mocks.CollectionHelper).
		On("FindOne", context.Background(), bson.M{"error": false}).
		Return(srHelperCorrect)

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "reports").Return(collectionHelper)

	// Create new database with mocked Database interface
	reportDba := databases.NewReportDatabase(dbHelper)

	// Call method with defined filter, that in our mocked function returns
	// mocked-error
	report, err := reportDba.FindOne(context.Background(), bson.M{"error": true})

	assert.Empty(t, report)
	assert.EqualError(t, err, "mocked-error")

	// Now call the same function with different filter for correct
	// result
	report, err = reportDba.FindOne(context.Background(), bson.M{"error": false})

	assert.Equal(t, &models.Report{ID: id}, report)
	assert.NoError(t, err)
}

func TestReportDatabase_Find(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	cursorHelper := &mocks.CursorHelper{}

	cursorHelper.On("All", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(1).(*[]models.Report)
		*arg = []models.Report{{Title: "Pothole on Main St"}, {Title: "Broken signal"}}
	})
	cursorHelper.On("Close", mock.Anything).Return(nil)

	opts := databases.PageOptions(2, 0, bson.D{{Key: "createdAt", Value: -1}})
	collectionHelper.On("Find", context.Background(), bson.M{"category": "road"}, opts).Return(cursorHelper, nil)
	collectionHelper.On("Find", context.Background(), bson.M{"error": true}).Return(nil, errors.New("mocked-error"))
	dbHelper.On("Collection", "reports").Return(collectionHelper)

	reportDba := databases.NewReportDatabase(dbHelper)

	reports, err := reportDba.Find(context.Background(), bson.M{"category": "road"}, opts)
	assert.NoError(t, err)
	assert.Len(t, reports, 2)
	assert.Equal(t, "Broken signal", reports[1].Title)
	cursorHelper.AssertCalled(t, "Close", mock.Anything)

	reports, err = reportDba.Find(context.Background(), bson.M{"error": true})
	assert.Nil(t, reports)
	assert.EqualError(t, err, "mocked-error")
}

func TestReportDatabase_InsertOne(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	insertResult := &mocks.InsertOneResultHelper{}

	id := primitive.NewObjectID()
	insertResult.On("Decode").Return(id)

	good := models.Report{Title: "Pothole on Main St"}
	bad := models.Report{Title: "unreachable"}
	collectionHelper.On("InsertOne", context.Background(), good).Return(insertResult, nil)
	collectionHelper.On("InsertOne", context.Background(), bad).Return(nil, errors.New("mocked-error"))
	dbHelper.On("Collection", "reports").Return(collectionHelper)

	reportDba := databases.NewReportDatabase(dbHelper)

	got, err := reportDba.InsertOne(context.Background(), good)
	assert.NoError(t, err)
	assert.Equal(t, id, got)

	got, err = reportDba.InsertOne(context.Background(), bad)
	assert.EqualError(t, err, "mocked-error")
	assert.Equal(t, primitive.NilObjectID, got)
}

func TestReportDatabase_InsertOneUnexpectedIDType(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	insertResult := &mocks.InsertOneResultHelper{}

	insertResult.On("Decode").Return("not-an-object-id")
	collectionHelper.On("InsertOne", mock.Anything, mock.Anything).Return(insertResult, nil)
	dbHelper.On("Collection", "reports").Return(collectionHelper)

	_, err := databases.NewReportDatabase(dbHelper).InsertOne(context.Background(), models.Report{})
	assert.EqualError(t, err, "unexpected inserted id type string")
}

func TestReportDatabase_CountBy(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	cursorHelper := &mocks.CursorHelper{}

	cursorHelper.On("All", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(1).(*[]databases.GroupCount)
		*arg = []databases.GroupCount{
			{Key: strPtr("pending"), Count: 4},
			{Key: strPtr("resolved"), Count: 1},
			{Key: nil, Count: 2},
		}
	})
	cursorHelper.On("Close", mock.Anything).Return(nil)
	collectionHelper.On("Aggregate", mock.Anything, mock.Anything).Return(cursorHelper, nil)
	dbHelper.On("Collection", "reports").Return(collectionHelper)

	counts, err := databases.NewReportDatabase(dbHelper).CountBy(context.Background(), "status", nil)
	assert.NoError(t, err)
	assert.Equal(t, map[string]int64{"pending": 4, "resolved": 1, "": 2}, counts)
}

func TestReportDatabase_CountByAggregateError(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	collectionHelper.On("Aggregate", mock.Anything, mock.Anything).Return(nil, errors.New("mocked-error"))
	dbHelper.On("Collection", "reports").Return(collectionHelper)

	counts, err := databases.NewReportDatabase(dbHelper).CountBy(context.Background(), "category", bson.M{})
	assert.Nil(t, counts)
	assert.EqualError(t, err, "mocked-error")
}

func TestReportDatabase_FindOneAndUpdate(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	srHelperErr := &mocks.SingleResultHelper{}
	srHelperCorrect := &mocks.SingleResultHelper{}
	clientHelper := &mocks.ClientHelper{}

	id := primitive.NewObjectID()
	update := bson.M{"$inc": bson.M{"upvotes": 1}}

	srHelperErr.On("Decode", mock.Anything).Return(mongo.ErrNoDocuments)
	srHelperCorrect.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.Report)
		(*arg).ID = id
		(*arg).Upvotes = 3
	})
	collectionHelper.On("FindOneAndUpdate", mock.Anything, bson.M{"_id": id}, update, mock.Anything).Return(srHelperCorrect)
	collectionHelper.On("FindOneAndUpdate", mock.Anything, mock.Anything, update, mock.Anything).Return(srHelperErr)
	clientHelper.On("Ping", mock.Anything).Return(nil)
	dbHelper.On("Collection", "reports").Return(collectionHelper)
	dbHelper.On("Client").Return(clientHelper)

	reportDba := databases.NewReportDatabase(dbHelper)
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	report, err := reportDba.FindOneAndUpdate(context.Background(), bson.M{"_id": id}, update, opts)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), report.Upvotes)

	report, err = reportDba.FindOneAndUpdate(context.Background(), bson.M{"_id": primitive.NewObjectID()}, update, opts)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)

	assert.NoError(t, reportDba.Ping(context.Background()))
}

func TestPageOptions(t *testing.T) {
	opts := databases.PageOptions(25, 50, bson.D{{Key: "upvotes", Value: -1}})
	assert.Equal(t, int64(25), *opts.Limit)
	assert.Equal(t, int64(50), *opts.Skip)
	assert.Equal(t, bson.D{{Key: "upvotes", Value: -1}}, opts.Sort)
}
