package post

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePost = `{
	"id": 12345678901234567890,
	"platform": "Facebook",
	"type": "photo",
	"date": "2024-01-15 10:30:00",
	"updated": "2024-01-16 08:00:00",
	"postUrl": "https://www.facebook.com/123/posts/456",
	"message": "Check #this out #now",
	"title": "A title #now",
	"imageText": "caption",
	"account": {"id": 987, "handle": "newsroom"},
	"expandedLinks": [
		{"original": "https://bit.ly/x", "expanded": "https://example.com/story"},
		{"original": "https://bit.ly/y"},
		"not an object"
	],
	"media": [
		{"type": "photo", "url": "https://cdn.example.com/a.jpg", "full": "https://cdn.example.com/a_full.jpg"},
		{"type": "video", "url": "https://cdn.example.com/b.mp4"},
		{"type": "photo"}
	]
}`

func mustDecode(t *testing.T, s string) Payload {
	t.Helper()
	p, err := Decode([]byte(s))
	require.NoError(t, err)
	return p
}

func TestLookup(t *testing.T) {
	p := mustDecode(t, `{"a": 1, "b": {"c": 2, "d": null}, "e": "leaf", "f": [1, 2]}`)

	tests := []struct {
		name   string
		keys   []string
		wantOK bool
	}{
		{"top level", []string{"a"}, true},
		{"nested", []string{"b", "c"}, true},
		{"explicit null", []string{"b", "d"}, true},
		{"missing leaf", []string{"b", "k"}, false},
		{"missing root", []string{"x", "y"}, false},
		{"through string", []string{"e", "x"}, false},
		{"through number", []string{"a", "x"}, false},
		{"through array", []string{"f", "0"}, false},
		{"no keys", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := Lookup(p, tt.keys...)
			assert.Equal(t, tt.wantOK, ok)
		})
	}

	_, ok := Lookup(nil, "a")
	assert.False(t, ok)
}

func TestRecordAccessors(t *testing.T) {
	r := NewRecord(mustDecode(t, samplePost))

	id, ok := r.PostID()
	assert.True(t, ok)
	assert.Equal(t, "12345678901234567890", id)

	user, ok := r.UserID()
	assert.True(t, ok)
	assert.Equal(t, "987", user)

	handle, _ := r.Handle()
	assert.Equal(t, "newsroom", handle)
	platform, _ := r.Platform()
	assert.Equal(t, "Facebook", platform)
	postType, _ := r.PostType()
	assert.Equal(t, "photo", postType)
	link, _ := r.Permalink()
	assert.Equal(t, "https://www.facebook.com/123/posts/456", link)

	assert.Equal(t, []string{"https://example.com/story"}, r.URLs())
	assert.Equal(t, []Media{
		{URL: "https://cdn.example.com/a.jpg", Type: "photo", FullURL: "https://cdn.example.com/a_full.jpg"},
		{URL: "https://cdn.example.com/b.mp4", Type: "video"},
	}, r.Media())

	assert.Equal(t, "Facebook post from @newsroom (https://www.facebook.com/123/posts/456)", r.String())
}

func TestRecordMissingFields(t *testing.T) {
	r := NewRecord(Payload{"account": "not an object"})

	_, ok := r.PostID()
	assert.False(t, ok)
	_, ok = r.UserID()
	assert.False(t, ok)
	_, ok, err := r.Timestamp()
	assert.False(t, ok)
	assert.NoError(t, err)

	assert.Empty(t, r.Text())
	assert.Empty(t, r.TextFields())
	assert.Nil(t, r.URLs())
	assert.Nil(t, r.Media())
	assert.Nil(t, r.Hashtags())
	assert.Equal(t, "unknown post from @unknown (unknown)", r.String())
}

func TestTimestamp(t *testing.T) {
	r := NewRecord(mustDecode(t, samplePost))

	ts, ok, err := r.Timestamp()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1705314600), ts)

	updated, ok, err := r.UpdatedTimestamp()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1705392000), updated)
}

func TestTimestampMalformed(t *testing.T) {
	r := NewRecord(Payload{"date": "15/01/2024"})

	_, ok, err := r.Timestamp()
	assert.False(t, ok)
	require.Error(t, err)

	var tsErr *TimestampError
	require.True(t, errors.As(err, &tsErr))
	assert.Equal(t, "date", tsErr.Field)
	assert.Equal(t, "15/01/2024", tsErr.Value)
}

func TestText(t *testing.T) {
	r := NewRecord(mustDecode(t, samplePost))

	assert.Equal(t, "Check #this out #now A title #now caption", r.Text())
	assert.Equal(t, map[string]string{
		"message":   "Check #this out #now",
		"title":     "A title #now",
		"imageText": "caption",
	}, r.TextFields())

	cleaned := r.TextFields(WithCleaning(DefaultCleaner()))
	assert.Equal(t, "check this out now", cleaned["message"])
}

func TestHashtags(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"basic", "Check #this out #now", []string{"this", "now"}},
		{"duplicates", "#go #Go #go", []string{"go", "Go"}},
		{"bare hash", "# alone #", nil},
		{"mid word", "a#b c", nil},
		{"punctuation kept", "#news! now", []string{"news!"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRecord(Payload{"message": tt.text})
			assert.Equal(t, tt.want, r.Hashtags())
		})
	}
}

func TestHashtagsIgnoreDedicatedField(t *testing.T) {
	r := NewRecord(Payload{"message": "no tags here", "hashtags": []interface{}{"ignored"}})
	assert.Nil(t, r.Hashtags())
}

func TestDecodeInvalid(t *testing.T) {
	_, err := Decode([]byte(`[1, 2]`))
	assert.Error(t, err)
}
