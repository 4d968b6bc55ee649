package monitors

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Content is what a page contributes to a keyword check
type Content struct {
	Title string
	Text  string
}

// ExtractContent parses markup into the page title and one whitespace-normalized blob of visible text
func ExtractContent(body []byte) (*Content, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))

	if err != nil {
		return nil, &FetchError{Kind: FetchParse, Err: err}
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find("script, style, noscript, template").Remove()

	var parts []string

	for _, node := range doc.Nodes {
		collectText(node, &parts)
	}

	return &Content{
		Title: title,
		Text:  strings.Join(strings.Fields(strings.Join(parts, " ")), " "),
	}, nil
}

func collectText(node *html.Node, parts *[]string) {
	if node.Type == html.TextNode {
		if text := strings.TrimSpace(node.Data); text != "" {
			*parts = append(*parts, text)
		}
		return
	}

	for child := node.FirstChild; child != nil; child = child.NextSibling {
		collectText(child, parts)
	}
}
