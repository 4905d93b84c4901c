package main

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProduct(t *testing.T) {
	line := []byte(`{"parent_asin":"B0TEST","title":"Test Widget","price":"12.99",` +
		`"main_category":"Gadgets","stock_count":7,` +
		`"images":{"thumb":"t.jpg","hi_res":"h.jpg","ignored":"x"},"extra":null}`)

	rec, err := parseProduct(line)
	require.NoError(t, err)

	assert.Equal(t, "B0TEST", rec.ID)
	assert.Equal(t, "Test Widget", rec.Title)
	assert.True(t, decimal.RequireFromString("12.99").Equal(rec.Price))
	assert.Equal(t, "Gadgets", rec.Category)
	assert.Equal(t, 7, rec.Stock)
	assert.Equal(t, "t.jpg", rec.Thumb)
	assert.Equal(t, "h.jpg", rec.HiRes)
}

func TestParseProduct_NumericPrice(t *testing.T) {
	rec, err := parseProduct([]byte(`{"parent_asin":"B0TEST","title":"Widget","price":5.5}`))
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("5.5").Equal(rec.Price))
}

// fakeExec records inserts and reports duplicates the way the database's
// ON CONFLICT DO NOTHING does: zero rows affected for an id seen before.
type fakeExec struct {
	inserted map[string]int
	order    []string
}

func (f *fakeExec) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	id := args[0].(string)
	f.order = append(f.order, id)
	f.inserted[id]++
	if f.inserted[id] > 1 {
		return pgconn.NewCommandTag("INSERT 0 0"), nil
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func catalogRecord(id string) productRecord {
	return productRecord{
		ID:    id,
		Title: "Product " + id,
		Price: decimal.RequireFromString("9.99"),
		Stock: 1,
	}
}

func TestWriteProducts_EveryRecordReachesDatabase(t *testing.T) {
	// B0A repeats across files; dedupe must come from the database, so the
	// insert has to run for every single record. A skip before the insert
	// would drop a unique product whenever the filter false-positives.
	results := []fileResult{
		{records: []productRecord{catalogRecord("B0A"), catalogRecord("B0B")}},
		{records: []productRecord{catalogRecord("B0A"), catalogRecord("B0C")}},
	}

	db := &fakeExec{inserted: map[string]int{}}
	require.NoError(t, writeProducts(context.Background(), db, results))

	assert.Equal(t, []string{"B0A", "B0B", "B0A", "B0C"}, db.order)
	assert.Equal(t, 2, db.inserted["B0A"], "repeat occurrence still attempted, resolved by the database")
	assert.Equal(t, 1, db.inserted["B0B"])
	assert.Equal(t, 1, db.inserted["B0C"])
}

func TestParseProduct_Incomplete(t *testing.T) {
	for _, line := range []string{
		`{"title":"No ASIN","price":"1.00"}`,
		`{"parent_asin":"B0TEST","price":"1.00"}`,
		`{"parent_asin":"B0TEST","title":"No price"}`,
		`not json`,
	} {
		_, err := parseProduct([]byte(line))
		assert.Error(t, err, "line: %s", line)
	}
}
