// Package opml reads and writes OPML subscription lists for the local
// RSS view.
package opml

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"
)

// OPML represents the root of an OPML document.
type OPML struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    Head     `xml:"head"`
	Body    Body     `xml:"body"`
}

// Head contains OPML metadata.
type Head struct {
	Title       string `xml:"title,omitempty"`
	DateCreated string `xml:"dateCreated,omitempty"`
}

// Body contains the outlines.
type Body struct {
	Outlines []Outline `xml:"outline"`
}

// Outline represents a single outline element (group or feed).
type Outline struct {
	Text     string    `xml:"text,attr"`
	Title    string    `xml:"title,attr,omitempty"`
	Type     string    `xml:"type,attr,omitempty"`
	XMLURL   string    `xml:"xmlUrl,attr,omitempty"`
	HTMLURL  string    `xml:"htmlUrl,attr,omitempty"`
	Outlines []Outline `xml:"outline,omitempty"`
}

// Subscription is one subscribed feed. Grouping outlines are flattened
// away; the RSS view merges everything into a single list anyway.
type Subscription struct {
	Title string
	URL   string
}

// Parse reads an OPML document and returns the flattened subscriptions.
func Parse(r io.Reader) ([]Subscription, error) {
	var doc OPML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode opml: %w", err)
	}
	var subs []Subscription
	var walk func(outlines []Outline)
	walk = func(outlines []Outline) {
		for _, o := range outlines {
			if o.XMLURL != "" {
				title := o.Title
				if title == "" {
					title = o.Text
				}
				subs = append(subs, Subscription{Title: title, URL: o.XMLURL})
				continue
			}
			walk(o.Outlines)
		}
	}
	walk(doc.Body.Outlines)
	return subs, nil
}

// Export generates a flat OPML document from subscriptions.
func Export(title string, subs []Subscription) ([]byte, error) {
	doc := OPML{
		Version: "2.0",
		Head: Head{
			Title:       title,
			DateCreated: time.Now().Format(time.RFC1123Z),
		},
	}
	for _, s := range subs {
		doc.Body.Outlines = append(doc.Body.Outlines, Outline{
			Text:   s.Title,
			Title:  s.Title,
			Type:   "rss",
			XMLURL: s.URL,
		})
	}
	output, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), output...), nil
}
