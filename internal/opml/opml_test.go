package opml

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const nested = `<?xml version="1.0" encoding="UTF-8"?>
<opml version="2.0">
  <head><title>subs</title></head>
  <body>
    <outline text="Tech">
      <outline text="Go Blog" type="rss" xmlUrl="https://go.dev/blog/feed.atom"/>
      <outline text="Deep">
        <outline title="LWN" text="lwn" type="rss" xmlUrl="https://lwn.net/rss"/>
      </outline>
    </outline>
    <outline text="Top Level" type="rss" xmlUrl="https://example.com/rss"/>
  </body>
</opml>`

func TestParseFlattensGroups(t *testing.T) {
	subs, err := Parse(strings.NewReader(nested))
	require.NoError(t, err)
	require.Equal(t, []Subscription{
		{Title: "Go Blog", URL: "https://go.dev/blog/feed.atom"},
		{Title: "LWN", URL: "https://lwn.net/rss"},
		{Title: "Top Level", URL: "https://example.com/rss"},
	}, subs)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse(strings.NewReader("this is not xml <<<"))
	require.Error(t, err)
}

func TestExportRoundTrips(t *testing.T) {
	in := []Subscription{
		{Title: "Go Blog", URL: "https://go.dev/blog/feed.atom"},
		{Title: "LWN", URL: "https://lwn.net/rss"},
	}
	out, err := Export("perch subscriptions", in)
	require.NoError(t, err)

	back, err := Parse(bytes.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, in, back)
}
