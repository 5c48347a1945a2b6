// Package layout turns a merged, deduplicated capture of a feed post into
// structured post and comment records using the feed's interface markers.
package layout

import (
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"slices"
	"strings"

	"github.com/MeKo-Tech/feedocr/internal/box"
)

// Options holds the geometric tolerances of the parser, in pixels.
type Options struct {
	RowTolerance    float64
	BoundaryMargin  float64
	HeightTolerance float64
	XTolerance      float64
	Logger          *slog.Logger
}

// DefaultOptions returns the tolerances tuned for desktop feed screenshots.
func DefaultOptions() Options {
	return Options{
		RowTolerance:    box.DefaultRowTolerance,
		BoundaryMargin:  10,
		HeightTolerance: 5,
		XTolerance:      50,
	}
}

// Parser extracts posts and comments for one locale.
type Parser struct {
	markers  Markers
	boundary *regexp.Regexp
	opts     Options
	logger   *slog.Logger
}

// NewParser validates the markers and returns a ready parser.
func NewParser(markers Markers, opts Options) (*Parser, error) {
	if err := markers.Validate(); err != nil {
		return nil, err
	}
	boundary, err := regexp.Compile(`^(?:` + markers.CommentsBoundary + `)$`)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", box.ErrInvalidPattern, markers.CommentsBoundary, err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{markers: markers, boundary: boundary, opts: opts, logger: logger}, nil
}

// Markers returns the marker set the parser was built with.
func (p *Parser) Markers() Markers { return p.markers }

// Parse extracts the post and every comment with content.
func (p *Parser) Parse(c box.Collection) Document {
	doc := Document{Post: p.ParsePost(c), Comments: []ParsedComment{}}
	for _, r := range p.FindCommentRegions(c) {
		if r.Comment != nil {
			doc.Comments = append(doc.Comments, *r.Comment)
		}
	}
	return doc
}

// ParsePost reads author, date and body from the boxes above the comments boundary.
// A capture without a boundary yields an empty post.
func (p *Parser) ParsePost(c box.Collection) ParsedPost {
	boundary, ok := c.FindFirstMatching(p.boundary)
	if !ok {
		p.logger.Debug("No comments boundary found")
		return ParsedPost{}
	}

	post := c.Above(boundary.Y1, p.opts.BoundaryMargin)
	p.logger.Debug("Found comments boundary", "y1", boundary.Y1, "post_boxes", post.Len())
	if post.Empty() {
		return ParsedPost{}
	}

	authorRow := post.TopRow(p.opts.RowTolerance)
	author := authorRow.ToSingleLine()
	if p.markers.Follow != "" {
		author = strings.ReplaceAll(author, p.markers.Follow, "")
	}
	author = strings.TrimSpace(author)

	rest := post.Without(authorRow)
	dateRow := rest.TopRow(p.opts.RowTolerance)
	body := rest.Without(dateRow)

	return ParsedPost{
		Author: author,
		Date:   dateRow.ToSingleLine(),
		Text:   body.ToReadableText(p.opts.RowTolerance),
	}
}

// FindCommentRegions slices the comments area into one region per reply button
// and parses each region that holds boxes.
func (p *Parser) FindCommentRegions(c box.Collection) []Region {
	candidates := c.FindAllContaining(p.markers.Reply)
	if candidates.Empty() {
		p.logger.Debug("No reply buttons found")
		return nil
	}

	buttons := p.consistentButtons(candidates)

	start, ok := c.FindFirstContaining(p.markers.MostRelevant)
	if !ok {
		p.logger.Debug("No comments sort marker found")
		return nil
	}

	sorted := buttons.Boxes()
	slices.SortStableFunc(sorted, func(a, b box.Box) int {
		switch {
		case a.Y2 < b.Y2:
			return -1
		case a.Y2 > b.Y2:
			return 1
		default:
			return 0
		}
	})

	var regions []Region
	currentY := start.Y2
	for _, button := range sorted {
		endY := button.Y2
		if endY <= currentY {
			continue
		}
		region := Region{StartY: currentY, EndY: endY, Marker: button}
		region.Boxes = c.SliceY(currentY, endY)

		if !region.Boxes.Empty() {
			top := region.Boxes.TopRow(p.opts.RowTolerance)
			top = top.Without(top.FindAllContaining(p.markers.Reply)).
				Filter(func(b box.Box) bool { return b.Key() != button.Key() })
			if footer, ok := top.FindFirstContaining(p.markers.ReplyCount); ok {
				region.StartY = footer.Y2
				region.Boxes = c.SliceY(region.StartY, endY)
			}
		}
		if !region.Boxes.Empty() {
			comment := p.ParseComment(region.Boxes)
			region.Comment = &comment
		}

		regions = append(regions, region)
		currentY = endY
	}

	p.logger.Debug("Comment regions",
		"reply_candidates", candidates.Len(), "reply_buttons", buttons.Len(), "regions", len(regions))
	return regions
}

// consistentButtons keeps reply buttons close to the median height and X1.
func (p *Parser) consistentButtons(candidates box.Collection) box.Collection {
	heights := make([]float64, 0, candidates.Len())
	xs := make([]float64, 0, candidates.Len())
	for _, b := range candidates.Boxes() {
		heights = append(heights, b.Height())
		xs = append(xs, b.X1)
	}
	medH, medX := median(heights), median(xs)
	return candidates.Filter(func(b box.Box) bool {
		return math.Abs(b.Height()-medH) <= p.opts.HeightTolerance &&
			math.Abs(b.X1-medX) <= p.opts.XTolerance
	})
}

// ParseComment reads username, date and body from one comment region.
func (p *Parser) ParseComment(c box.Collection) ParsedComment {
	if c.Empty() {
		return ParsedComment{}
	}
	tol := p.opts.RowTolerance
	return ParsedComment{
		Username: c.TopRow(tol).ToSingleLine(),
		Date:     c.BottomRow(tol).ExcludeTextMatching(p.markers.Chrome, false).ToSingleLine(),
		Text:     c.MiddleRows(tol).ToReadableText(tol),
	}
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	s := slices.Clone(vals)
	slices.Sort(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}
