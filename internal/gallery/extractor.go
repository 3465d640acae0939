// Package gallery turns the colour-variation wiki page into image descriptors.
//
// The page is a flat sequence of section headings, each followed by a gallery
// list holding one thumbnail per colour variation. The extractor walks the
// content root's direct children and pairs every heading with the first list
// after it that has exactly GallerySize thumbnails.
package gallery

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/user/colorvariant-harvester/internal/entity"
	"github.com/user/colorvariant-harvester/internal/repository"
	"github.com/user/colorvariant-harvester/pkg/utils"
)

// GallerySize is the number of thumbnails a list must hold to count as a gallery.
const GallerySize = 8

const (
	contentRootSelector = ".mw-parser-output"
	thumbnailSelector   = "li > div:nth-child(1) > div:nth-child(1) > div:nth-child(1) > a:nth-child(1) > img:nth-child(1)"
)

// Section headings that never name a group: notes, footnotes, external links.
var deniedHeadings = map[string]struct{}{
	"備考":    {},
	"脚注":    {},
	"外部リンク": {},
}

// Result is the output of one extraction.
type Result struct {
	Descriptors []entity.ImageDescriptor
	// Galleries is the number of lists accepted as galleries.
	Galleries int
	// SkippedLists counts lists under an active group that were not valid galleries.
	SkippedLists int
	// DroppedGroups lists headings that never got a gallery, in page order.
	DroppedGroups []string
}

// Groups returns the distinct group names in extraction order.
func (r *Result) Groups() []string {
	var groups []string
	seen := make(map[string]struct{})
	for _, d := range r.Descriptors {
		if _, ok := seen[d.Group]; ok {
			continue
		}
		seen[d.Group] = struct{}{}
		groups = append(groups, d.Group)
	}
	return groups
}

// Extractor finds galleries in a fetched page.
type Extractor struct {
	base   *url.URL
	logger *zap.Logger
}

// NewExtractor creates an extractor that resolves thumbnail sources against baseURL.
func NewExtractor(baseURL string, logger *zap.Logger) (*Extractor, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	return &Extractor{base: base, logger: logger}, nil
}

// Extract parses page and returns its image descriptors in document order.
func (e *Extractor) Extract(page []byte) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	root := doc.Find(contentRootSelector).First()
	if root.Length() == 0 {
		return nil, repository.ErrContentRootMissing
	}

	res := &Result{}
	group := ""

	root.Children().Each(func(_ int, child *goquery.Selection) {
		node := child.Get(0)

		if heading, ok := asHeading(child, node); ok {
			if group != "" {
				e.dropGroup(res, group)
			}
			group = headingText(heading)
			if _, denied := deniedHeadings[group]; denied {
				group = ""
				return
			}
			if group != "" {
				e.logger.Debug("found group", zap.String("group", group))
			}
			return
		}

		if node.DataAtom != atom.Ul || group == "" {
			return
		}

		descriptors, ok := e.collect(group, child)
		if !ok {
			res.SkippedLists++
			return
		}
		e.logger.Debug("found gallery", zap.String("group", group), zap.Int("images", len(descriptors)))
		res.Descriptors = append(res.Descriptors, descriptors...)
		res.Galleries++
		group = ""
	})

	if group != "" {
		e.dropGroup(res, group)
	}

	return res, nil
}

// collect turns a list into descriptors when it is a complete gallery.
func (e *Extractor) collect(group string, list *goquery.Selection) ([]entity.ImageDescriptor, bool) {
	thumbs := list.Find(thumbnailSelector)
	if thumbs.Length() != GallerySize {
		e.logger.Warn("list is not a gallery, skipping",
			zap.String("group", group),
			zap.Int("images", thumbs.Length()),
			zap.Int("expected", GallerySize),
		)
		return nil, false
	}

	descriptors := make([]entity.ImageDescriptor, 0, GallerySize)
	var bad error
	thumbs.EachWithBreak(func(i int, img *goquery.Selection) bool {
		src, exists := img.Attr("src")
		if !exists || strings.TrimSpace(src) == "" {
			bad = fmt.Errorf("image %d has no src", i+1)
			return false
		}
		abs, err := utils.ToAbsoluteURL(e.base, strings.TrimSpace(src))
		if err != nil {
			bad = fmt.Errorf("image %d: %w", i+1, err)
			return false
		}
		descriptors = append(descriptors, entity.ImageDescriptor{
			Group:     group,
			Index:     i + 1,
			SourceURL: abs,
		})
		return true
	})
	if bad != nil {
		e.logger.Warn("gallery has an unusable image, skipping", zap.String("group", group), zap.Error(bad))
		return nil, false
	}
	return descriptors, true
}

func (e *Extractor) dropGroup(res *Result, group string) {
	e.logger.Warn("no images found for group, skipping", zap.String("group", group))
	res.DroppedGroups = append(res.DroppedGroups, group)
}

// asHeading reports whether a content-root child is a section heading. Newer
// MediaWiki wraps the h2 in a div.mw-heading2.
func asHeading(s *goquery.Selection, node *html.Node) (*goquery.Selection, bool) {
	if node.Type != html.ElementNode {
		return nil, false
	}
	if node.DataAtom == atom.H2 {
		return s, true
	}
	if node.DataAtom == atom.Div && s.HasClass("mw-heading2") {
		if h2 := s.ChildrenFiltered("h2").First(); h2.Length() > 0 {
			return h2, true
		}
	}
	return nil, false
}

// headingText prefers the headline span and ignores the "[edit]" links.
func headingText(h *goquery.Selection) string {
	if headline := h.Find(".mw-headline").First(); headline.Length() > 0 {
		return strings.TrimSpace(headline.Text())
	}
	clean := h.Clone()
	clean.Find(".mw-editsection").Remove()
	return strings.TrimSpace(clean.Text())
}
