package post

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultCleaner(t *testing.T) {
	c := DefaultCleaner()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "urls emails and phones",
			in:   "Visit https://example.com/a?b=1 NOW! Call 555-123-4567 or mail press@example.org.",
			want: "visit now call <PHONE> or mail",
		},
		{
			name: "accents and emoji",
			in:   "Café crème ☕🎉 Straße",
			want: "cafe creme strasse",
		},
		{
			name: "line breaks",
			in:   "first line\nsecond\r\nthird",
			want: "first line second third",
		},
		{
			name: "numbers kept by default",
			in:   "Top 10 in 2024",
			want: "top 10 in 2024",
		},
		{
			name: "smart quotes",
			in:   "“Quoted” — isn’t it",
			want: "quoted isnt it",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Clean(tt.in))
		})
	}
}

func TestCleanerOptionalTokens(t *testing.T) {
	c := &Cleaner{
		NoNumbers:       true,
		NoCurrency:      true,
		NoPunct:         true,
		ReplaceNumber:   "<NUMBER>",
		ReplaceCurrency: "<CUR>",
	}

	assert.Equal(t, "Costs <CUR><NUMBER> now", c.Clean("Costs $3.50, now!"))
}

func TestCleanerPunctReplacement(t *testing.T) {
	c := &Cleaner{NoPunct: true, ReplacePunct: " "}
	assert.Equal(t, "a b c", c.Clean("a,b.c"))
}

func TestCleanerZeroValueOnlyNormalizesSpace(t *testing.T) {
	c := &Cleaner{}
	assert.Equal(t, "Keep This, As-Is!", c.Clean("  Keep   This, As-Is!  "))
}
