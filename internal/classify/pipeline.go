// Package classify decides which marketplace listings are genuine consoles
// priced under their category ceiling.
//
// A listing moves through price parsing, category resolution, the ceiling
// check, the console-likelihood filter, the exclusion filter, the optional
// description scan and the optional image check. The first stage to object
// rejects the listing with a reason from listing.Reason.
package classify

import (
	"context"
	"fmt"
	"strings"

	"sjsage522/consoledealworker/config"
	"sjsage522/consoledealworker/internal/listing"
	"sjsage522/consoledealworker/internal/vision"
	"sjsage522/consoledealworker/logger"
)

// Options are the run-scoped switches of a pipeline
type Options struct {
	// Thresholds overrides category ceilings by category name
	Thresholds      map[string]float64
	DescriptionScan bool
	ImageDetection  bool
	// Image is consulted only when ImageDetection is set. It should already
	// be wrapped in vision.FailOpen. A nil Image with detection on marks
	// listings with images as unverified.
	Image vision.Classifier
}

// OptionsFromSettings maps operator settings onto pipeline options
func OptionsFromSettings(s config.Settings, image vision.Classifier) Options {
	return Options{
		Thresholds:      s.Thresholds,
		DescriptionScan: s.DescriptionScan,
		ImageDetection:  s.AIDetection,
		Image:           image,
	}
}

// Pipeline classifies raw listings. It holds no mutable state, so one
// pipeline can classify any number of batches.
type Pipeline struct {
	resolver    *Resolver
	filters     Chain
	description *DescriptionScanner
	opts        Options
}

// New compiles a pipeline from the filter tables and run options
func New(f *config.Filters, opts Options) (*Pipeline, error) {
	likelihood, err := NewLikelihoodFilter(f.Likelihood)
	if err != nil {
		return nil, err
	}
	exclusion, err := NewExclusionFilter(f.Exclusion)
	if err != nil {
		return nil, err
	}
	description, err := NewDescriptionScanner(f.Description)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		resolver:    NewResolver(f.Categories, opts.Thresholds),
		filters:     Chain{likelihood, exclusion},
		description: description,
		opts:        opts,
	}, nil
}

// Resolver exposes the category table the pipeline resolves against
func (p *Pipeline) Resolver() *Resolver {
	return p.resolver
}

// Classify runs one listing through every stage
func (p *Pipeline) Classify(ctx context.Context, raw listing.RawListing) listing.ClassifiedListing {
	out := listing.ClassifiedListing{RawListing: raw, Decision: listing.Rejected}

	if strings.TrimSpace(raw.Title) == "" || strings.TrimSpace(raw.Link) == "" {
		out.Rejection = listing.Reject(listing.ReasonInvalidListing, "missing title or link")
		return out
	}

	price, ok := ParsePrice(raw.PriceText)
	if !ok {
		out.Rejection = listing.Reject(listing.ReasonUnparseablePrice, "no price in %q", raw.PriceText)
		return out
	}
	out.Price = price

	category, ok := p.resolver.Resolve(raw.Title)
	if !ok {
		out.Rejection = listing.Reject(listing.ReasonUnknownCategory, "no category alias in title")
		return out
	}
	out.Category = category.Name
	out.Threshold = category.Ceiling

	if !category.Within(price) {
		out.Rejection = listing.Reject(listing.ReasonOverThreshold, "$%s over $%s ceiling for %s",
			price.StringFixed(2), category.Ceiling.StringFixed(2), category.Name)
		return out
	}

	candidate := Candidate{
		Title:    strings.ToLower(raw.Title),
		Price:    price,
		Category: category,
	}
	if rej := p.filters.Check(candidate); rej != nil {
		out.Rejection = rej
		return out
	}

	if p.opts.DescriptionScan {
		if rej := p.description.Scan(raw.Description); rej != nil {
			out.Rejection = rej
			return out
		}
	}

	if p.opts.ImageDetection && raw.ImageRef != "" {
		judgment := p.classifyImage(ctx, raw.ImageRef)
		out.Image = judgment
		if judgment.Verdict == string(vision.VerdictReject) {
			out.Rejection = listing.Reject(listing.ReasonImageRejected, "console %d vs game %d",
				judgment.ConsoleScore, judgment.GameScore)
			return out
		}
	}

	out.Decision = listing.Accepted
	return out
}

func (p *Pipeline) classifyImage(ctx context.Context, imageRef string) *listing.ImageJudgment {
	var j vision.Judgment
	if p.opts.Image == nil {
		j = vision.Judgment{Verdict: vision.VerdictIndeterminate, Cause: vision.ErrNoCredential.Error()}
	} else {
		var err error
		if j, err = p.opts.Image.Classify(ctx, imageRef); err != nil {
			j = vision.Judgment{Verdict: vision.VerdictIndeterminate, Cause: err.Error()}
		}
	}
	return &listing.ImageJudgment{
		Verdict:      string(j.Verdict),
		ConsoleScore: j.ConsoleScore,
		GameScore:    j.GameScore,
		Labels:       j.Labels,
		Unverified:   j.Verdict == vision.VerdictIndeterminate,
	}
}

// Report summarizes a classified batch for operators
type Report struct {
	// Listings holds every input in input order
	Listings []listing.ClassifiedListing
	Accepted int
	Rejected int
	Errored  int
	Reasons  map[listing.Reason]int
	// RejectionLog is one audit line per rejected or errored listing
	RejectionLog []string
}

// AcceptedListings returns accepted listings in input order
func (r *Report) AcceptedListings() []listing.ClassifiedListing {
	out := make([]listing.ClassifiedListing, 0, r.Accepted)
	for _, l := range r.Listings {
		if l.IsAccepted() {
			out = append(out, l)
		}
	}
	return out
}

// ClassifyBatch classifies every listing. A listing that fails in an
// unexpected way is counted as errored; the rest of the batch continues.
func (p *Pipeline) ClassifyBatch(ctx context.Context, raws []listing.RawListing) *Report {
	r := &Report{
		Listings: make([]listing.ClassifiedListing, 0, len(raws)),
		Reasons:  make(map[listing.Reason]int),
	}
	log := logger.ForPipeline()

	for _, raw := range raws {
		c, err := p.safeClassify(ctx, raw)
		if err != nil {
			c = listing.ClassifiedListing{
				RawListing: raw,
				Decision:   listing.Rejected,
				Rejection:  listing.Reject(listing.ReasonInvalidListing, "%v", err),
			}
		}
		r.Listings = append(r.Listings, c)

		switch {
		case c.IsAccepted():
			r.Accepted++
			log.Debug().
				Str("platform", c.Platform).
				Str("category", c.Category).
				Str("price", c.Price.StringFixed(2)).
				Bool("unverified", c.Unverified()).
				Msg("Accepted listing")
		case c.Rejection.Reason == listing.ReasonInvalidListing:
			r.Errored++
			r.Reasons[c.Rejection.Reason]++
			r.RejectionLog = append(r.RejectionLog, fmt.Sprintf("[%s] %s: %s", c.Platform, c.Title, c.Rejection))
		default:
			r.Rejected++
			r.Reasons[c.Rejection.Reason]++
			r.RejectionLog = append(r.RejectionLog, fmt.Sprintf("[%s] %s: %s", c.Platform, c.Title, c.Rejection))
		}
	}

	log.Info().
		Int("total", len(raws)).
		Int("accepted", r.Accepted).
		Int("rejected", r.Rejected).
		Int("errored", r.Errored).
		Msg("Classified batch")

	return r
}

func (p *Pipeline) safeClassify(ctx context.Context, raw listing.RawListing) (c listing.ClassifiedListing, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("classification panicked: %v", rec)
		}
	}()
	return p.Classify(ctx, raw), nil
}
