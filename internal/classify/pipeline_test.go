package classify

import (
	"context"
	"testing"
	"time"

	"sjsage522/consoledealworker/internal/listing"
	"sjsage522/consoledealworker/internal/vision"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubImage struct {
	judgment vision.Judgment
	delay    time.Duration
	calls    int
}

func (s *stubImage) Classify(ctx context.Context, imageRef string) (vision.Judgment, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return vision.Judgment{}, ctx.Err()
		}
	}
	return s.judgment, nil
}

func raw(title, price string) listing.RawListing {
	return listing.RawListing{
		Title:     title,
		PriceText: price,
		Link:      "https://example.com/item/" + title,
		Platform:  "Craigslist",
	}
}

func TestScenarioAcceptedConsole(t *testing.T) {
	p := newTestPipeline(t, Options{DescriptionScan: true})

	c := p.Classify(context.Background(), raw("Nintendo Game Boy Advance SP Console - works great", "$45"))
	require.True(t, c.IsAccepted(), "rejected: %v", c.Rejection)
	assert.Equal(t, "gba sp", c.Category)
	assert.True(t, dollars("80").Equal(c.Threshold))
	assert.True(t, dollars("45").Equal(c.Price))
	assert.Nil(t, c.Rejection)
	assert.Nil(t, c.Image)
}

func TestScenarioShellOnly(t *testing.T) {
	p := newTestPipeline(t, Options{DescriptionScan: true})

	c := p.Classify(context.Background(), raw("3DS XL shell only, no motherboard", "$20"))
	assert.False(t, c.IsAccepted())
	require.NotNil(t, c.Rejection)
	assert.Equal(t, listing.ReasonExclusionMatch, c.Rejection.Reason)
	assert.Contains(t, c.Rejection.Detail, "shell only")
}

func TestScenarioGamesLot(t *testing.T) {
	p := newTestPipeline(t, Options{DescriptionScan: true})

	// Bare "ds" is not a category alias, so this title stops at resolution
	r := raw("Lot of 5 DS games", "$15")
	r.Description = "5 ds games, cartridge only, no console"
	c := p.Classify(context.Background(), r)
	require.NotNil(t, c.Rejection)
	assert.Equal(t, listing.ReasonUnknownCategory, c.Rejection.Reason)

	// A games title that resolves is caught by the likelihood filter
	r.Title = "Nintendo DS games lot"
	c = p.Classify(context.Background(), r)
	require.NotNil(t, c.Rejection)
	assert.Equal(t, listing.ReasonLikelyNotConsole, c.Rejection.Reason)

	// With a resolvable title the description scanner is what rejects it
	r.Title = "Nintendo DS Lite lot"
	r.PriceText = "$25"
	c = p.Classify(context.Background(), r)
	require.NotNil(t, c.Rejection)
	assert.Equal(t, listing.ReasonDescriptionRejected, c.Rejection.Reason)

	// The scan can be switched off per run
	p = newTestPipeline(t, Options{DescriptionScan: false})
	c = p.Classify(context.Background(), r)
	assert.True(t, c.IsAccepted(), "rejected: %v", c.Rejection)
}

func TestScenarioImageTimeoutFailsOpen(t *testing.T) {
	slow := &stubImage{delay: time.Second}
	p := newTestPipeline(t, Options{
		ImageDetection: true,
		Image:          vision.NewFailOpen(slow, 20*time.Millisecond),
	})

	r := raw("Nintendo Game Boy Advance SP Console", "$45")
	r.ImageRef = "https://img.example.com/sp.jpg"
	c := p.Classify(context.Background(), r)

	require.True(t, c.IsAccepted(), "rejected: %v", c.Rejection)
	require.NotNil(t, c.Image)
	assert.True(t, c.Image.Unverified)
	assert.True(t, c.Unverified())
	assert.Equal(t, string(vision.VerdictIndeterminate), c.Image.Verdict)
}

func TestImageStage(t *testing.T) {
	r := raw("Nintendo Game Boy Advance SP Console", "$45")
	r.ImageRef = "https://img.example.com/sp.jpg"

	rejecting := &stubImage{judgment: vision.Judgment{Verdict: vision.VerdictReject, GameScore: 3}}
	p := newTestPipeline(t, Options{ImageDetection: true, Image: rejecting})
	c := p.Classify(context.Background(), r)
	require.NotNil(t, c.Rejection)
	assert.Equal(t, listing.ReasonImageRejected, c.Rejection.Reason)

	accepting := &stubImage{judgment: vision.Judgment{Verdict: vision.VerdictAccept, ConsoleScore: 3}}
	p = newTestPipeline(t, Options{ImageDetection: true, Image: accepting})
	c = p.Classify(context.Background(), r)
	assert.True(t, c.IsAccepted())
	assert.False(t, c.Unverified())

	// Disabled detection or a missing image never calls the classifier
	idle := &stubImage{judgment: vision.Judgment{Verdict: vision.VerdictReject}}
	p = newTestPipeline(t, Options{ImageDetection: false, Image: idle})
	assert.True(t, p.Classify(context.Background(), r).IsAccepted())
	p = newTestPipeline(t, Options{ImageDetection: true, Image: idle})
	r.ImageRef = ""
	assert.True(t, p.Classify(context.Background(), r).IsAccepted())
	assert.Equal(t, 0, idle.calls)
}

func TestImageStageWithoutCredential(t *testing.T) {
	r := raw("Nintendo Game Boy Advance SP Console", "$45")
	r.ImageRef = "https://img.example.com/sp.jpg"

	// A keyless Cloud Vision client behind FailOpen
	keyless := vision.NewFailOpen(vision.NewGoogleVision("", "", nil), time.Second)
	p := newTestPipeline(t, Options{ImageDetection: true, Image: keyless})
	c := p.Classify(context.Background(), r)
	require.True(t, c.IsAccepted(), "rejected: %v", c.Rejection)
	require.NotNil(t, c.Image)
	assert.True(t, c.Unverified())
	assert.Equal(t, string(vision.VerdictIndeterminate), c.Image.Verdict)

	// Detection on with no classifier at all
	p = newTestPipeline(t, Options{ImageDetection: true})
	c = p.Classify(context.Background(), r)
	require.True(t, c.IsAccepted(), "rejected: %v", c.Rejection)
	require.NotNil(t, c.Image)
	assert.True(t, c.Unverified())

	// Detection off leaves the listing verified
	p = newTestPipeline(t, Options{ImageDetection: false})
	c = p.Classify(context.Background(), r)
	assert.True(t, c.IsAccepted())
	assert.Nil(t, c.Image)
	assert.False(t, c.Unverified())
}

func TestCeilingBoundary(t *testing.T) {
	p := newTestPipeline(t, Options{})

	c := p.Classify(context.Background(), raw("GBA SP console", "$80.00"))
	assert.True(t, c.IsAccepted(), "rejected: %v", c.Rejection)

	c = p.Classify(context.Background(), raw("GBA SP console", "$80.01"))
	require.NotNil(t, c.Rejection)
	assert.Equal(t, listing.ReasonOverThreshold, c.Rejection.Reason)
}

func TestRejectsWithoutPriceOrCategory(t *testing.T) {
	p := newTestPipeline(t, Options{})

	for _, price := range []string{"", "Free", "make offer"} {
		c := p.Classify(context.Background(), raw("GBA SP console", price))
		require.NotNil(t, c.Rejection)
		assert.Equal(t, listing.ReasonUnparseablePrice, c.Rejection.Reason)
	}

	c := p.Classify(context.Background(), raw("PlayStation 2 slim console", "$40"))
	require.NotNil(t, c.Rejection)
	assert.Equal(t, listing.ReasonUnknownCategory, c.Rejection.Reason)
	assert.Empty(t, c.Category)

	c = p.Classify(context.Background(), listing.RawListing{Title: "GBA SP", PriceText: "$40", Platform: "Mercari"})
	require.NotNil(t, c.Rejection)
	assert.Equal(t, listing.ReasonInvalidListing, c.Rejection.Reason)
}

func TestClassifyIsIdempotent(t *testing.T) {
	p := newTestPipeline(t, Options{DescriptionScan: true})
	inputs := []listing.RawListing{
		raw("Nintendo Game Boy Advance SP Console", "$45"),
		raw("3DS XL shell only, no motherboard", "$20"),
		raw("Wii console", "$200"),
	}

	for _, in := range inputs {
		first := p.Classify(context.Background(), in)
		second := p.Classify(context.Background(), in)
		assert.Equal(t, first, second)
	}
}

func TestClassifyBatchReport(t *testing.T) {
	p := newTestPipeline(t, Options{DescriptionScan: true})
	batch := []listing.RawListing{
		raw("Nintendo Game Boy Advance SP Console", "$45"),
		raw("3DS XL shell only, no motherboard", "$20"),
		raw("Wii console", "$200"),
		{Title: "", PriceText: "$10", Link: "x", Platform: "OfferUp"},
		raw("New 3DS XL console", "$140"),
	}

	r := p.ClassifyBatch(context.Background(), batch)
	require.Len(t, r.Listings, 5)
	assert.Equal(t, 2, r.Accepted)
	assert.Equal(t, 2, r.Rejected)
	assert.Equal(t, 1, r.Errored)
	assert.Equal(t, 1, r.Reasons[listing.ReasonExclusionMatch])
	assert.Equal(t, 1, r.Reasons[listing.ReasonOverThreshold])
	assert.Len(t, r.RejectionLog, 3)

	accepted := r.AcceptedListings()
	require.Len(t, accepted, 2)
	assert.Equal(t, "gba sp", accepted[0].Category)
	assert.Equal(t, "3ds xl", accepted[1].Category)
}

type panickingImage struct{}

func (panickingImage) Classify(ctx context.Context, imageRef string) (vision.Judgment, error) {
	panic("boom")
}

func TestClassifyBatchSurvivesPanics(t *testing.T) {
	p := newTestPipeline(t, Options{ImageDetection: true, Image: panickingImage{}})

	bad := raw("GBA SP console", "$45")
	bad.ImageRef = "https://img.example.com/x.jpg"
	good := raw("Game Boy Color console", "$35")

	r := p.ClassifyBatch(context.Background(), []listing.RawListing{bad, good})
	assert.Equal(t, 1, r.Errored)
	assert.Equal(t, 1, r.Accepted)
	assert.True(t, r.Listings[1].IsAccepted())
}
