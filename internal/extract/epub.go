package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"

	"github.com/lecternaudio/lectern/internal/book"
)

const containerPath = "META-INF/container.xml"

// EPUB extracts spine documents in reading order. The table of contents
// comes from the EPUB 3 navigation document when present, otherwise from
// the EPUB 2 NCX.
type EPUB struct {
	logger *slog.Logger
}

// NewEPUB returns an EPUB extractor.
func NewEPUB(logger *slog.Logger) *EPUB {
	if logger == nil {
		logger = slog.Default()
	}
	return &EPUB{logger: logger}
}

// containerDoc is META-INF/container.xml, which locates the package file.
type containerDoc struct {
	XMLName   xml.Name `xml:"container"`
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

// opfDoc is the package document: metadata, manifest, and spine.
type opfDoc struct {
	XMLName xml.Name  `xml:"package"`
	Title   string    `xml:"metadata>title"`
	Creator string    `xml:"metadata>creator"`
	Items   []opfItem `xml:"manifest>item"`
	Spine   opfSpine  `xml:"spine"`
}

type opfItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

type opfSpine struct {
	TOC      string   `xml:"toc,attr"`
	ItemRefs []opfRef `xml:"itemref"`
}

type opfRef struct {
	IDRef  string `xml:"idref,attr"`
	Linear string `xml:"linear,attr"`
}

// ncxDoc is the EPUB 2 table of contents.
type ncxDoc struct {
	XMLName xml.Name  `xml:"ncx"`
	NavMap  ncxNavMap `xml:"navMap"`
}

type ncxNavMap struct {
	NavPoints []ncxNavPoint `xml:"navPoint"`
}

type ncxNavPoint struct {
	Label   string        `xml:"navLabel>text"`
	Content ncxContent    `xml:"content"`
	Kids    []ncxNavPoint `xml:"navPoint"`
}

type ncxContent struct {
	Src string `xml:"src,attr"`
}

// Extract reads the archive, walks the spine in order, and converts each
// content document to plain text. One unit per spine item.
func (e *EPUB) Extract(ctx context.Context, p string) (*Document, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, &Error{Format: book.FormatEPUB, Path: p, Err: fmt.Errorf("failed to open archive: %w", err)}
	}
	defer zr.Close()

	doc, err := e.extractArchive(ctx, &zr.Reader)
	if err != nil {
		return nil, &Error{Format: book.FormatEPUB, Path: p, Err: err}
	}

	e.logger.Info("extracted epub",
		"path", p,
		"title", doc.Title,
		"spine_items", len(doc.Units),
		"toc_entries", len(doc.TOC),
	)
	return doc, nil
}

func (e *EPUB) extractArchive(ctx context.Context, zr *zip.Reader) (*Document, error) {
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[path.Clean(f.Name)] = f
	}
	read := func(name string) ([]byte, error) {
		f, ok := files[path.Clean(name)]
		if !ok {
			return nil, fmt.Errorf("missing %s", name)
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}

	rootfile, err := rootfilePath(read)
	if err != nil {
		return nil, err
	}
	opfData, err := read(rootfile)
	if err != nil {
		return nil, err
	}
	var pkg opfDoc
	if err := xml.Unmarshal(opfData, &pkg); err != nil {
		return nil, fmt.Errorf("failed to parse package document: %w", err)
	}
	opfDir := path.Dir(rootfile)

	itemsByID := make(map[string]opfItem, len(pkg.Items))
	for _, item := range pkg.Items {
		itemsByID[item.ID] = item
	}

	var units []Unit
	unitByFile := make(map[string]int)
	for _, ref := range pkg.Spine.ItemRefs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if strings.EqualFold(ref.Linear, "no") {
			continue
		}
		item, ok := itemsByID[ref.IDRef]
		if !ok || !isHTMLMedia(item.MediaType) {
			continue
		}
		name := resolveHref(opfDir, item.Href)
		data, err := read(name)
		if err != nil {
			return nil, fmt.Errorf("spine item %s: %w", item.Href, err)
		}
		text, err := htmlText(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("spine item %s: %w", item.Href, err)
		}
		idx := len(units)
		units = append(units, Unit{Index: idx, Label: item.Href, Text: strings.TrimSpace(text)})
		unitByFile[name] = idx
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("no readable spine items")
	}

	doc := &Document{
		Format:        book.FormatEPUB,
		Title:         strings.TrimSpace(pkg.Title),
		Author:        strings.TrimSpace(pkg.Creator),
		Units:         units,
		TOC:           e.tableOfContents(&pkg, opfDir, read, unitByFile),
		UnitSeparator: "\n\n",
	}
	return doc, nil
}

// rootfilePath locates the package document via the OCF container.
func rootfilePath(read func(string) ([]byte, error)) (string, error) {
	data, err := read(containerPath)
	if err != nil {
		return "", err
	}
	var c containerDoc
	if err := xml.Unmarshal(data, &c); err != nil {
		return "", fmt.Errorf("failed to parse container: %w", err)
	}
	if len(c.Rootfiles) == 0 || c.Rootfiles[0].FullPath == "" {
		return "", fmt.Errorf("container has no rootfile")
	}
	return c.Rootfiles[0].FullPath, nil
}

// tableOfContents prefers the EPUB 3 navigation document, then falls back
// to the NCX. Entries that do not resolve to a spine unit are dropped.
func (e *EPUB) tableOfContents(pkg *opfDoc, opfDir string, read func(string) ([]byte, error), unitByFile map[string]int) []TOCEntry {
	if item, ok := findNavItem(pkg.Items); ok {
		name := resolveHref(opfDir, item.Href)
		if data, err := read(name); err == nil {
			if toc := mapAnchors(parseNavTOC(data), path.Dir(name), unitByFile); len(toc) > 0 {
				return toc
			}
		} else {
			e.logger.Debug("nav document unreadable", "href", item.Href, "error", err)
		}
	}

	if item, ok := findNCXItem(pkg); ok {
		name := resolveHref(opfDir, item.Href)
		data, err := read(name)
		if err != nil {
			e.logger.Debug("ncx unreadable", "href", item.Href, "error", err)
			return nil
		}
		var n ncxDoc
		if err := xml.Unmarshal(data, &n); err != nil {
			e.logger.Debug("ncx unparseable", "href", item.Href, "error", err)
			return nil
		}
		return mapAnchors(flattenNavPoints(n.NavMap.NavPoints, 0), path.Dir(name), unitByFile)
	}
	return nil
}

func findNavItem(items []opfItem) (opfItem, bool) {
	for _, item := range items {
		for _, prop := range strings.Fields(item.Properties) {
			if prop == "nav" {
				return item, true
			}
		}
	}
	return opfItem{}, false
}

func findNCXItem(pkg *opfDoc) (opfItem, bool) {
	if pkg.Spine.TOC != "" {
		for _, item := range pkg.Items {
			if item.ID == pkg.Spine.TOC {
				return item, true
			}
		}
	}
	for _, item := range pkg.Items {
		if item.MediaType == "application/x-dtbncx+xml" {
			return item, true
		}
	}
	return opfItem{}, false
}

// anchor is a raw TOC link before href resolution.
type anchor struct {
	title string
	href  string
	level int
}

// mapAnchors resolves anchor hrefs against their document's directory and
// keeps entries that land on an extracted spine unit.
func mapAnchors(anchors []anchor, baseDir string, unitByFile map[string]int) []TOCEntry {
	var toc []TOCEntry
	for _, a := range anchors {
		if a.title == "" || a.href == "" {
			continue
		}
		idx, ok := unitByFile[resolveHref(baseDir, a.href)]
		if !ok {
			continue
		}
		toc = append(toc, TOCEntry{Title: a.title, Unit: idx, Level: a.level})
	}
	return toc
}

// parseNavTOC pulls anchors out of the toc nav element. Nesting depth comes
// from ol levels.
func parseNavTOC(data []byte) []anchor {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	nav := findTOCNav(root)
	if nav == nil {
		return nil
	}

	var anchors []anchor
	var walk func(n *html.Node, level int)
	walk = func(n *html.Node, level int) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				switch c.Data {
				case "a":
					anchors = append(anchors, anchor{
						title: nodeText(c),
						href:  attrValue(c, "href"),
						level: level,
					})
					continue
				case "ol", "ul":
					walk(c, level+1)
					continue
				}
			}
			walk(c, level)
		}
	}
	walk(nav, -1)
	return anchors
}

// findTOCNav returns the nav element marked epub:type="toc", or the first
// nav element when none is marked.
func findTOCNav(root *html.Node) *html.Node {
	var first *html.Node
	var find func(n *html.Node) *html.Node
	find = func(n *html.Node) *html.Node {
		if n.Type == html.ElementNode && n.Data == "nav" {
			if first == nil {
				first = n
			}
			for _, t := range strings.Fields(attrValue(n, "epub:type")) {
				if t == "toc" {
					return n
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if found := find(c); found != nil {
				return found
			}
		}
		return nil
	}
	if nav := find(root); nav != nil {
		return nav
	}
	return first
}

func flattenNavPoints(points []ncxNavPoint, level int) []anchor {
	var anchors []anchor
	for _, np := range points {
		anchors = append(anchors, anchor{
			title: strings.TrimSpace(np.Label),
			href:  np.Content.Src,
			level: level,
		})
		if len(np.Kids) > 0 {
			anchors = append(anchors, flattenNavPoints(np.Kids, level+1)...)
		}
	}
	return anchors
}

// resolveHref joins an href to its base directory, dropping any fragment
// and percent encoding, yielding a cleaned archive path.
func resolveHref(baseDir, href string) string {
	href, _, _ = strings.Cut(href, "#")
	if u, err := url.PathUnescape(href); err == nil {
		href = u
	}
	return path.Clean(path.Join(baseDir, href))
}

// attrValue returns the value of the named attribute, or "" when absent.
func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func isHTMLMedia(mediaType string) bool {
	return strings.Contains(mediaType, "xhtml") || mediaType == "text/html"
}

// blockTags end a text run with a paragraph break when converting markup
// to plain text.
var blockTags = map[string]struct{}{
	"p": {}, "div": {}, "section": {}, "article": {}, "blockquote": {},
	"h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {},
	"li": {}, "tr": {}, "figcaption": {}, "header": {}, "footer": {},
}

// htmlText renders markup as plain text: block elements become paragraph
// breaks, br becomes a line break, script and style content is dropped.
func htmlText(r io.Reader) (string, error) {
	root, err := html.Parse(r)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "template":
				return
			case "br":
				b.WriteString("\n")
				return
			}
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode {
			if _, ok := blockTags[n.Data]; ok {
				b.WriteString("\n\n")
			}
		}
	}
	walk(root)
	return b.String(), nil
}

// nodeText concatenates the text descendants of n with whitespace folded.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
