package testutil

import "testing"

// Frame geometry of DutchFeed: two 1100x600 screenshots, the second scrolled
// 300px down.
const (
	FeedWidth       = 1100
	FeedFrameHeight = 600
)

// FeedScrolls are the scroll positions of the DutchFeed screenshots.
var FeedScrolls = []int{0, 300}

// DutchFeed is a post by Jan Jansen followed by five comments. Every line
// lies inside the default viewport of the frame it first appears in.
func DutchFeed() FeedPage {
	return FeedPage{
		Width:  FeedWidth,
		Height: 1000,
		Lines: []Line{
			{"Jan Jansen", 300, 100}, {"Volgen", 390, 100},
			{"3 uur", 300, 122},
			{"Wat een dag", 300, 150},
			{"12 opmerkingen", 300, 220},
			{"Meest relevant", 300, 250},

			{"Piet", 320, 280},
			{"Mooie foto!", 320, 300},
			{"2 d", 320, 320}, {"Leuk", 350, 320}, {"Beantwoorden", 390, 320},

			{"Klaas", 320, 380},
			{"Helemaal mee eens", 320, 400},
			{"1 u", 320, 420}, {"Beantwoorden", 390, 420},

			{"Anna", 320, 480},
			{"Zeker weten", 320, 500},
			{"5 u", 320, 520}, {"Beantwoorden", 390, 520},

			{"Bram", 320, 600},
			{"Prachtig uitzicht hier", 320, 620},
			{"6 u", 320, 640}, {"Beantwoorden", 390, 640},

			{"Cor", 320, 700},
			{"Waar is dit genomen?", 320, 720},
			{"7 u", 320, 740}, {"Beantwoorden", 390, 740},
		},
	}
}

// DutchFeedComments lists the (username, date, text) of every comment of
// DutchFeed in order.
var DutchFeedComments = [][3]string{
	{"Piet", "2 d", "Mooie foto!"},
	{"Klaas", "1 u", "Helemaal mee eens"},
	{"Anna", "5 u", "Zeker weten"},
	{"Bram", "6 u", "Prachtig uitzicht hier"},
	{"Cor", "7 u", "Waar is dit genomen?"},
}

// WriteDutchFeed writes the DutchFeed screenshots and sidecars into dir.
func WriteDutchFeed(t *testing.T, dir string) []string {
	t.Helper()
	return WriteSequence(t, dir, DutchFeed(), FeedScrolls, FeedFrameHeight)
}
