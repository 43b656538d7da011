package databases

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoPaginate struct {
	limit  int64
	offset int64
}

func newMongoPaginate(limit, offset int64) *mongoPaginate {
	return &mongoPaginate{
		limit:  limit,
		offset: offset,
	}
}

func (mp *mongoPaginate) getPaginatedOpts() *options.FindOptions {
	l := mp.limit
	skip := mp.offset
	fOpt := options.FindOptions{Limit: &l, Skip: &skip}

	return &fOpt
}

// PageOptions returns find options for an offset based page in the given sort order
func PageOptions(limit, offset int64, sort bson.D) *options.FindOptions {
	return newMongoPaginate(limit, offset).getPaginatedOpts().SetSort(sort)
}
