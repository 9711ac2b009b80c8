package scraper

import (
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// ErrNoTable is returned when a fetched page contains no data table.
var ErrNoTable = errors.New("no table found in document")

// extractTable pulls the first HTML table out of the document as a header
// row plus data rows. Header cells come from <th> elements; rows without
// any <td> cells are skipped.
func extractTable(r io.Reader) (header []string, rows [][]string, err error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, nil, err
	}

	table := findFirst(doc, "table")
	if table == nil {
		return nil, nil, ErrNoTable
	}

	for _, tr := range findAll(table, "tr") {
		ths := findAll(tr, "th")
		if len(ths) > 0 && header == nil {
			for _, th := range ths {
				header = append(header, nodeText(th))
			}
			continue
		}

		var cells []string
		for _, td := range findAll(tr, "td") {
			cells = append(cells, nodeText(td))
		}
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	}

	if header == nil && len(rows) == 0 {
		return nil, nil, ErrNoTable
	}
	return header, rows, nil
}

func findFirst(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func findAll(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			out = append(out, c)
			continue
		}
		out = append(out, findAll(c, tag)...)
	}
	return out
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
