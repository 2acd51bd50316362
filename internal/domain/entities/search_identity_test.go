package entities

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSearchIdentity_SortsKeys(t *testing.T) {
	id := NewSearchIdentity([]FilterEntry{
		{Key: "platform", Value: "tiktok"},
		{Key: "country", Value: "US"},
		{Key: "minFollowers", Value: int64(1000)},
	})

	data, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, `{"country":"US","minFollowers":1000,"platform":"tiktok"}`, string(data))
	assert.Equal(t, "tiktok", id.Platform())

	v, ok := id.Int("minFollowers")
	assert.True(t, ok)
	assert.Equal(t, int64(1000), v)
}

func TestSearchIdentity_DefaultPlatform(t *testing.T) {
	assert.Equal(t, PlatformInstagram, NewSearchIdentity(nil).Platform())
}

func TestSearchIdentity_JSONRoundTrip(t *testing.T) {
	id := NewSearchIdentity([]FilterEntry{
		{Key: "category", Value: []string{"beauty", "fashion"}},
		{Key: "minEngagementRate", Value: 2.5},
		{Key: "minFollowers", Value: int64(5000)},
		{Key: "verified", Value: true},
	})

	data, err := json.Marshal(id)
	require.NoError(t, err)

	var decoded SearchIdentity
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, id.Equal(decoded))
}

func TestHasNextPage(t *testing.T) {
	cases := []struct {
		page, size, total int
		want              bool
	}{
		{1, 5, 12, true},
		{2, 5, 12, true},
		{3, 5, 12, false},
		{2, 5, 10, false},
		{1, 10, 0, false},
		{0, 10, 100, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HasNextPage(tc.page, tc.size, tc.total), "page=%d size=%d total=%d", tc.page, tc.size, tc.total)
	}
}

func TestSearchBatch_Window(t *testing.T) {
	batch := &SearchBatch{Offset: 50}
	for i := 0; i < 12; i++ {
		batch.Identities = append(batch.Identities, CreatorIdentity{Platform: "instagram", PlatformID: string(rune('a' + i))})
	}

	// page 11 of size 5 starts at offset 50
	w := batch.Window(Pagination{Page: 11, Size: 5})
	require.Len(t, w, 5)
	assert.Equal(t, "a", w[0].PlatformID)

	// page 13 starts at 60: only two identities remain in the batch
	w = batch.Window(Pagination{Page: 13, Size: 5})
	require.Len(t, w, 2)
	assert.Equal(t, "k", w[0].PlatformID)

	assert.Nil(t, batch.Window(Pagination{Page: 1, Size: 5}))
}
