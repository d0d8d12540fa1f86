package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestMarkReadFilter(t *testing.T) {
	filter := markReadFilter([]string{"m1", "m2"}, "reader")

	assert.Equal(t, bson.M{"$in": []string{"m1", "m2"}}, filter["_id"])
	assert.Equal(t, bson.M{"$ne": "reader"}, filter["senderId"])
	assert.Equal(t, false, filter["isDeleted"])
}
