package layout

import (
	"testing"

	"github.com/MeKo-Tech/feedocr/internal/box"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mk(text string, x1, y1, x2, y2 float64) box.Box {
	return box.Box{X1: x1, Y1: y1, X2: x2, Y2: y2, Text: text, Confidence: 0.9}
}

func newDutchParser(t *testing.T) *Parser {
	t.Helper()
	m, err := MarkersFor("nl")
	require.NoError(t, err)
	p, err := NewParser(m, DefaultOptions())
	require.NoError(t, err)
	return p
}

// dutchCapture is a merged capture of a post with two comments; the second
// comment sits below the reply-count footer of the first.
func dutchCapture() box.Collection {
	return box.MustCollection(
		mk("Jan Jansen", 300, 100, 380, 118),
		mk("Volgen", 390, 100, 440, 118),
		mk("3 uur", 300, 122, 340, 136),
		mk("Wat een dag", 300, 150, 400, 168),
		mk("geweldig", 410, 151, 480, 169),
		mk("Tweede regel", 300, 175, 420, 193),
		mk("12 opmerkingen", 300, 220, 420, 238),
		mk("Meest relevant", 300, 250, 420, 268),

		mk("Piet", 320, 280, 360, 296),
		mk("Mooie foto!", 320, 300, 420, 316),
		mk("2 d", 320, 320, 340, 334),
		mk("Leuk", 350, 320, 380, 334),
		mk("Beantwoorden", 390, 320, 480, 334),

		mk("3 antwoorden", 340, 340, 440, 354),
		mk("Klaas", 320, 360, 370, 376),
		mk("Helemaal mee eens", 320, 380, 480, 396),
		mk("1 u", 320, 400, 340, 414),
		mk("Leuk", 350, 400, 380, 414),
		mk("Beantwoorden", 390, 400, 480, 414),
	)
}

func TestParsePost(t *testing.T) {
	p := newDutchParser(t)

	post := p.ParsePost(dutchCapture())
	assert.Equal(t, "Jan Jansen", post.Author)
	assert.Equal(t, "3 uur", post.Date)
	assert.Equal(t, "Wat een dag geweldig Tweede regel", post.Text)
}

func TestParsePost_NoBoundary(t *testing.T) {
	p := newDutchParser(t)

	c := box.MustCollection(mk("Jan", 300, 100, 380, 118), mk("tekst", 300, 150, 380, 168))
	assert.Equal(t, ParsedPost{}, p.ParsePost(c))
	assert.Equal(t, ParsedPost{}, p.ParsePost(box.Collection{}))
}

func TestParsePost_NothingAboveBoundary(t *testing.T) {
	p := newDutchParser(t)

	c := box.MustCollection(mk("5 opmerkingen", 300, 300, 420, 318), mk("close", 300, 295, 420, 310))
	assert.Equal(t, ParsedPost{}, p.ParsePost(c), "boxes within the margin do not count")
}

func TestParsePost_AuthorOnly(t *testing.T) {
	p := newDutchParser(t)

	c := box.MustCollection(mk("Jan Volgen", 300, 100, 420, 118), mk("5 opmerkingen", 300, 300, 420, 318))
	assert.Equal(t, ParsedPost{Author: "Jan"}, p.ParsePost(c))
}

func TestParsePost_AuthorKeepsInnerSpacing(t *testing.T) {
	p := newDutchParser(t)

	c := box.MustCollection(
		mk("Jan  de Vries", 300, 100, 420, 118),
		mk("Volgen", 430, 100, 480, 118),
		mk("5 opmerkingen", 300, 300, 420, 318),
	)
	assert.Equal(t, "Jan  de Vries", p.ParsePost(c).Author, "only surrounding whitespace is trimmed")
}

func TestFindCommentRegions(t *testing.T) {
	p := newDutchParser(t)

	regions := p.FindCommentRegions(dutchCapture())
	require.Len(t, regions, 2)

	assert.InDelta(t, 268, regions[0].StartY, 1e-9)
	assert.InDelta(t, 334, regions[0].EndY, 1e-9)
	require.NotNil(t, regions[0].Comment)
	assert.Equal(t, ParsedComment{Username: "Piet", Date: "2 d", Text: "Mooie foto!"}, *regions[0].Comment)

	assert.InDelta(t, 354, regions[1].StartY, 1e-9, "start moves below the reply-count footer")
	assert.InDelta(t, 414, regions[1].EndY, 1e-9)
	require.NotNil(t, regions[1].Comment)
	assert.Equal(t, ParsedComment{Username: "Klaas", Date: "1 u", Text: "Helemaal mee eens"}, *regions[1].Comment)
}

func TestFindCommentRegions_Bounds(t *testing.T) {
	p := newDutchParser(t)

	c := box.MustCollection(
		mk("Meest relevant", 300, 80, 420, 100),
		mk("Beantwoorden", 390, 136, 480, 150),
		mk("Beantwoorden", 392, 206, 482, 220),
	)

	regions := p.FindCommentRegions(c)
	require.Len(t, regions, 2)
	assert.Equal(t, [2]float64{100, 150}, [2]float64{regions[0].StartY, regions[0].EndY})
	assert.Equal(t, [2]float64{150, 220}, [2]float64{regions[1].StartY, regions[1].EndY})
}

func TestFindCommentRegions_FiltersInconsistentButtons(t *testing.T) {
	p := newDutchParser(t)

	c := box.MustCollection(
		mk("Meest relevant", 300, 80, 420, 100),
		mk("Beantwoorden", 390, 136, 480, 150),
		mk("Ik zal het beantwoorden morgen", 300, 160, 600, 190),
		mk("Beantwoorden", 390, 206, 480, 220),
		mk("Beantwoorden", 391, 286, 481, 300),
	)

	regions := p.FindCommentRegions(c)
	require.Len(t, regions, 3)
	for _, r := range regions {
		assert.InDelta(t, 14, r.Marker.Height(), 1e-9)
	}
}

func TestFindCommentRegions_MissingMarkers(t *testing.T) {
	p := newDutchParser(t)

	noButtons := box.MustCollection(mk("Meest relevant", 300, 80, 420, 100))
	assert.Empty(t, p.FindCommentRegions(noButtons))

	noSort := box.MustCollection(mk("Beantwoorden", 390, 136, 480, 150))
	assert.Empty(t, p.FindCommentRegions(noSort))
}

func TestFindCommentRegions_SkipsButtonsAboveStart(t *testing.T) {
	p := newDutchParser(t)

	c := box.MustCollection(
		mk("Beantwoorden", 390, 50, 480, 64),
		mk("Meest relevant", 300, 80, 420, 100),
		mk("Beantwoorden", 390, 136, 480, 150),
	)
	regions := p.FindCommentRegions(c)
	require.Len(t, regions, 1)
	assert.InDelta(t, 100, regions[0].StartY, 1e-9)
}

func TestFindCommentRegions_RegionWithoutBoxes(t *testing.T) {
	p := newDutchParser(t)

	// The second button starts above the previous region's end, so its own
	// slice holds nothing.
	c := box.MustCollection(
		mk("Meest relevant", 300, 80, 420, 100),
		mk("Beantwoorden", 390, 136, 480, 150),
		mk("Beantwoorden", 390, 140, 480, 154),
	)
	regions := p.FindCommentRegions(c)
	require.Len(t, regions, 2)
	assert.Nil(t, regions[1].Comment)
	assert.True(t, regions[1].Boxes.Empty())

	doc := p.Parse(c)
	assert.Len(t, doc.Comments, 1)
}

func TestFindCommentRegions_ReplyButtonIsNotAFooter(t *testing.T) {
	p := newDutchParser(t)

	// "beantwoorden" contains the reply-count marker "antwoord".
	c := box.MustCollection(
		mk("Meest relevant", 300, 80, 420, 100),
		mk("Anna", 320, 120, 360, 136),
		mk("Top!", 370, 120, 410, 136),
		mk("Beantwoorden", 420, 122, 510, 136),
	)
	regions := p.FindCommentRegions(c)
	require.Len(t, regions, 1)
	assert.Equal(t, [2]float64{100, 136}, [2]float64{regions[0].StartY, regions[0].EndY})
	assert.Equal(t, 3, regions[0].Boxes.Len())
	require.NotNil(t, regions[0].Comment)
}

func TestParse_OneLineComment(t *testing.T) {
	tests := []struct {
		locale   string
		start    string
		text     string
		button   string
		username string
		date     string
	}{
		{locale: "nl", start: "Meest relevant", text: "Top!", button: "Beantwoorden",
			username: "Anna Top! Beantwoorden", date: "Anna Top!"},
		{locale: "en", start: "Most relevant", text: "Nice!", button: "Reply",
			username: "Anna Nice! Reply", date: "Anna Nice!"},
	}

	for _, tt := range tests {
		t.Run(tt.locale, func(t *testing.T) {
			m, err := MarkersFor(tt.locale)
			require.NoError(t, err)
			p, err := NewParser(m, DefaultOptions())
			require.NoError(t, err)

			c := box.MustCollection(
				mk(tt.start, 300, 80, 420, 100),
				mk("Anna", 320, 120, 360, 136),
				mk(tt.text, 370, 120, 410, 136),
				mk(tt.button, 420, 122, 510, 136),
			)
			doc := p.Parse(c)
			require.Len(t, doc.Comments, 1, "a comment on a single row is kept")
			assert.Equal(t, ParsedComment{Username: tt.username, Date: tt.date}, doc.Comments[0])
		})
	}
}

func TestParseComment(t *testing.T) {
	p := newDutchParser(t)

	assert.Equal(t, ParsedComment{}, p.ParseComment(box.Collection{}))

	single := box.MustCollection(mk("Anna", 320, 280, 360, 296), mk("Beantwoorden", 390, 282, 480, 296))
	got := p.ParseComment(single)
	assert.Equal(t, "Anna Beantwoorden", got.Username, "top and bottom rows coincide")
	assert.Equal(t, "Anna", got.Date)
	assert.Empty(t, got.Text)

	edited := box.MustCollection(
		mk("Bob", 320, 280, 360, 296),
		mk("eerste", 320, 300, 380, 316),
		mk("tweede", 320, 320, 380, 336),
		mk("5 d", 320, 340, 340, 354),
		mk("Bewerkt", 350, 340, 400, 354),
	)
	assert.Equal(t, ParsedComment{Username: "Bob", Date: "5 d", Text: "eerste tweede"}, p.ParseComment(edited))
}

func TestParse(t *testing.T) {
	p := newDutchParser(t)

	doc := p.Parse(dutchCapture())
	assert.Equal(t, "Jan Jansen", doc.Post.Author)
	require.Len(t, doc.Comments, 2)
	assert.Equal(t, "Piet", doc.Comments[0].Username)
	assert.Equal(t, "Klaas", doc.Comments[1].Username)

	empty := p.Parse(box.Collection{})
	assert.NotNil(t, empty.Comments, "comments serialize as an empty list")
	assert.Empty(t, empty.Comments)
}

func TestNewParser_InvalidBoundary(t *testing.T) {
	m, err := MarkersFor("nl")
	require.NoError(t, err)
	m.CommentsBoundary = `(\d+`

	_, err = NewParser(m, DefaultOptions())
	require.Error(t, err)
}

func TestMedian(t *testing.T) {
	assert.InDelta(t, 0, median(nil), 1e-9)
	assert.InDelta(t, 3, median([]float64{5, 1, 3}), 1e-9)
	assert.InDelta(t, 2.5, median([]float64{4, 1, 3, 2}), 1e-9)
}
