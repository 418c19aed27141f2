package post

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the timestamp format used by the `date` and `updated` fields
const DateLayout = "2006-01-02 15:04:05"

// TextFieldNames lists the fields that make up a post's text, in output order
var TextFieldNames = []string{"message", "title", "description", "imageText"}

// TimestampError reports a date field that is present but cannot be parsed
type TimestampError struct {
	Field string
	Value string
	Err   error
}

func (e *TimestampError) Error() string {
	return fmt.Sprintf("malformed %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *TimestampError) Unwrap() error {
	return e.Err
}

// Media is one attachment of a post
type Media struct {
	URL     string `json:"url"`
	Type    string `json:"type"`
	FullURL string `json:"full,omitempty"`
}

// Record is a read-only view over a Payload. Missing fields are reported
// through the ok result and never cause an error.
type Record struct {
	payload Payload
}

// NewRecord wraps a payload
func NewRecord(p Payload) Record {
	return Record{payload: p}
}

// Payload returns the wrapped payload
func (r Record) Payload() Payload {
	return r.payload
}

// PostID returns the post id
func (r Record) PostID() (string, bool) {
	return LookupString(r.payload, "id")
}

// UserID returns the posting account id
func (r Record) UserID() (string, bool) {
	return LookupString(r.payload, "account", "id")
}

// Handle returns the posting account handle
func (r Record) Handle() (string, bool) {
	return LookupString(r.payload, "account", "handle")
}

// Platform returns the source platform, e.g. Facebook or Instagram
func (r Record) Platform() (string, bool) {
	return LookupString(r.payload, "platform")
}

// PostType returns the post type tag, e.g. photo or link
func (r Record) PostType() (string, bool) {
	return LookupString(r.payload, "type")
}

// Permalink returns the link to the post on its platform
func (r Record) Permalink() (string, bool) {
	return LookupString(r.payload, "postUrl")
}

// Timestamp returns the creation time in UTC epoch seconds.
// A present but unparseable date yields a *TimestampError.
func (r Record) Timestamp() (int64, bool, error) {
	return r.epoch("date")
}

// UpdatedTimestamp returns the last update time in UTC epoch seconds
func (r Record) UpdatedTimestamp() (int64, bool, error) {
	return r.epoch("updated")
}

func (r Record) epoch(field string) (int64, bool, error) {
	raw, ok := LookupString(r.payload, field)
	if !ok {
		return 0, false, nil
	}
	t, err := time.ParseInLocation(DateLayout, raw, time.UTC)
	if err != nil {
		return 0, false, &TimestampError{Field: field, Value: raw, Err: err}
	}
	return t.Unix(), true, nil
}

// TextOption adjusts how text fields are rendered
type TextOption func(*textOptions)

type textOptions struct {
	cleaner *Cleaner
}

// WithCleaning runs every text field through c
func WithCleaning(c *Cleaner) TextOption {
	return func(o *textOptions) {
		o.cleaner = c
	}
}

// TextFields returns the present text fields keyed by name
func (r Record) TextFields(opts ...TextOption) map[string]string {
	var o textOptions
	for _, opt := range opts {
		opt(&o)
	}

	fields := make(map[string]string)
	for _, name := range TextFieldNames {
		text, ok := LookupString(r.payload, name)
		if !ok {
			continue
		}
		if o.cleaner != nil {
			text = o.cleaner.Clean(text)
		}
		fields[name] = text
	}
	return fields
}

// Text joins the present text fields with single spaces
func (r Record) Text(opts ...TextOption) string {
	fields := r.TextFields(opts...)
	parts := make([]string, 0, len(fields))
	for _, name := range TextFieldNames {
		if text, ok := fields[name]; ok {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// Hashtags returns the distinct hashtags found in the raw text, without the
// leading '#', in the order they first appear. Dedicated hashtag fields in
// the payload are ignored.
func (r Record) Hashtags() []string {
	var tags []string
	seen := make(map[string]bool)
	for _, token := range strings.Fields(r.Text()) {
		if !strings.HasPrefix(token, "#") {
			continue
		}
		tag := token[1:]
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags
}

// URLs returns the expanded links of the post
func (r Record) URLs() []string {
	var urls []string
	for _, item := range r.objects("expandedLinks") {
		if u, ok := stringValue(item["expanded"]); ok && u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// Media returns the attachments of the post. Entries without a url are skipped.
func (r Record) Media() []Media {
	var media []Media
	for _, item := range r.objects("media") {
		u, ok := stringValue(item["url"])
		if !ok || u == "" {
			continue
		}
		m := Media{URL: u}
		m.Type, _ = stringValue(item["type"])
		m.FullURL, _ = stringValue(item["full"])
		media = append(media, m)
	}
	return media
}

// objects returns the elements of an array field that are objects
func (r Record) objects(field string) []map[string]interface{} {
	v, ok := Lookup(r.payload, field)
	if !ok {
		return nil
	}
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}

	out := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

func (r Record) String() string {
	platform, ok := r.Platform()
	if !ok {
		platform = "unknown"
	}
	handle, ok := r.Handle()
	if !ok {
		handle = "unknown"
	}
	link, ok := r.Permalink()
	if !ok {
		link = "unknown"
	}
	return fmt.Sprintf("%s post from @%s (%s)", platform, handle, link)
}
