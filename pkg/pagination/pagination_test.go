package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	in := Cursor{CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 123, time.UTC), ID: uuid.New()}
	out, err := ParseCursor(EncodeCursor(in))
	require.NoError(t, err)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
	assert.Equal(t, in.ID, out.ID)

	empty, err := ParseCursor(" ")
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = ParseCursor("!!!")
	assert.Error(t, err)
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, MaxLimit, NormalizeLimit(1000))
	assert.Equal(t, 11, LimitWithBuffer(10))
}

func TestParseParams(t *testing.T) {
	p, err := ParseParams("10", "abc")
	require.NoError(t, err)
	assert.Equal(t, Params{Limit: 10, Cursor: "abc"}, p)

	_, err = ParseParams("-1", "")
	assert.Error(t, err)
	_, err = ParseParams("ten", "")
	assert.Error(t, err)
}

func TestTrim(t *testing.T) {
	base := time.Now().UTC()
	rows := []Cursor{
		{CreatedAt: base, ID: uuid.New()},
		{CreatedAt: base.Add(-time.Minute), ID: uuid.New()},
		{CreatedAt: base.Add(-2 * time.Minute), ID: uuid.New()},
	}
	identity := func(c Cursor) Cursor { return c }

	page, next := Trim(rows, 2, identity)
	require.Len(t, page, 2)
	decoded, err := ParseCursor(next)
	require.NoError(t, err)
	assert.Equal(t, rows[1].ID, decoded.ID)

	page, next = Trim(rows, 5, identity)
	assert.Len(t, page, 3)
	assert.Empty(t, next)
}
