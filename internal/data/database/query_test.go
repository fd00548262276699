package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildListQuery_BasicSelect(t *testing.T) {
	q, args := BuildListQuery(NewListQueryOptions("notification_deliveries"))
	assert.Equal(t, `SELECT * FROM "notification_deliveries"`, q)
	assert.Empty(t, args)
}

func TestBuildListQuery_Filtered(t *testing.T) {
	q, args := BuildListQuery(NewListQueryOptions("notification_deliveries",
		WithColumns("id", "event_type"),
		WithCondition(WhereCond("event_type", Equal, "validation_failed")),
		WithCondition(WhereCond("correlation_id", Equal, int64(7))),
		WithOrderBy("created_at", "desc"),
		WithLimit(50),
		WithOffset(0),
	))
	assert.Equal(t,
		`SELECT "id", "event_type" FROM "notification_deliveries" WHERE "event_type" = $1 AND "correlation_id" = $2 ORDER BY "created_at" DESC LIMIT $3 OFFSET $4`,
		q)
	assert.Equal(t, []any{"validation_failed", int64(7), 50, 0}, args)
}

func TestBuildListQuery_In(t *testing.T) {
	q, args := BuildListQuery(NewListQueryOptions("t",
		WithCondition(WhereCond("status", In, []string{"sent", "failed"})),
	))
	assert.Equal(t, `SELECT * FROM "t" WHERE "status" = ANY($1)`, q)
	assert.Equal(t, []any{[]string{"sent", "failed"}}, args)
}

func TestBuildListQuery_CountOnlyIgnoresPagination(t *testing.T) {
	q, args := BuildListQuery(NewListQueryOptions("t",
		WithCountOnly(),
		WithCondition(WhereCond("status", NotEqual, "sent")),
		WithOrderBy("created_at", "ASC"),
		WithLimit(10),
	))
	assert.Equal(t, `SELECT COUNT(*) FROM "t" WHERE "status" != $1`, q)
	assert.Equal(t, []any{"sent"}, args)
}

func TestBuildListQuery_SanitizesIdentifiers(t *testing.T) {
	q, _ := BuildListQuery(NewListQueryOptions(`t"; DROP TABLE x; --`,
		WithOrderBy("d.created_at", "sideways"),
	))
	assert.Equal(t, `SELECT * FROM "t""; DROP TABLE x; --" ORDER BY "d"."created_at"`, q)
}

func TestBuildListQuery_Nil(t *testing.T) {
	q, args := BuildListQuery(nil)
	assert.Empty(t, q)
	assert.Nil(t, args)
}
