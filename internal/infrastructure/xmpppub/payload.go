package xmpppub

import (
	"encoding/xml"
	"time"

	"atompub/internal/domain/entity"

	"gosrc.io/xmpp/stanza"
)

const nsAtom = "http://www.w3.org/2005/Atom"

// atomEntryNode maps an Entry to the Atom payload published on the node.
// The mapping is fixed: title, published/updated when the timestamp is
// known, content (sanitized HTML) or plain-text summary, one alternate link
// plus any additional links, category terms, and the author name.
func atomEntryNode(e *entity.Entry) *stanza.Node {
	var nodes []stanza.Node

	nodes = append(nodes, textNode("title", e.Title))

	if e.HasPublished() {
		ts := e.Published.Format(time.RFC3339)
		nodes = append(nodes, textNode("published", ts), textNode("updated", ts))
	}

	if e.Content != "" {
		content := textNode("content", e.Content)
		content.Attrs = []xml.Attr{{Name: xml.Name{Local: "type"}, Value: "html"}}
		nodes = append(nodes, content)
	} else if e.Summary != "" {
		summary := textNode("summary", e.Summary)
		summary.Attrs = []xml.Attr{{Name: xml.Name{Local: "type"}, Value: "text"}}
		nodes = append(nodes, summary)
	}

	if e.Link != "" {
		nodes = append(nodes, linkNode(e.Link, "alternate"))
	}
	for _, link := range e.Links {
		if link == e.Link {
			continue
		}
		nodes = append(nodes, linkNode(link, ""))
	}

	for _, term := range e.Categories {
		nodes = append(nodes, stanza.Node{
			XMLName: xml.Name{Local: "category"},
			Attrs:   []xml.Attr{{Name: xml.Name{Local: "term"}, Value: term}},
		})
	}

	if e.Author != "" {
		nodes = append(nodes, stanza.Node{
			XMLName: xml.Name{Local: "author"},
			Nodes:   []stanza.Node{textNode("name", e.Author)},
		})
	}

	return &stanza.Node{
		XMLName: xml.Name{Space: nsAtom, Local: "entry"},
		Nodes:   nodes,
	}
}

func textNode(local, content string) stanza.Node {
	return stanza.Node{
		XMLName: xml.Name{Local: local},
		Content: content,
	}
}

func linkNode(href, rel string) stanza.Node {
	attrs := []xml.Attr{{Name: xml.Name{Local: "href"}, Value: href}}
	if rel != "" {
		attrs = append(attrs, xml.Attr{Name: xml.Name{Local: "rel"}, Value: rel})
	}
	return stanza.Node{
		XMLName: xml.Name{Local: "link"},
		Attrs:   attrs,
	}
}
