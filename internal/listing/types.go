// Package listing holds the records that flow from sources through the
// classification pipeline to the alert channel.
package listing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// IdentitySeparator joins platform and link into a seen-set key
const IdentitySeparator = "_"

// RawListing is a marketplace post as harvested by a source
type RawListing struct {
	Title       string `json:"title"`
	PriceText   string `json:"price_text,omitempty"`
	Link        string `json:"link"`
	Platform    string `json:"platform"`
	Description string `json:"description,omitempty"`
	ImageRef    string `json:"image_ref,omitempty"`
}

// Identity returns the key used to remember that a listing was notified
func (r RawListing) Identity() string {
	return r.Platform + IdentitySeparator + r.Link
}

// Decision is the outcome of classifying one listing
type Decision string

const (
	Accepted Decision = "accepted"
	Rejected Decision = "rejected"
)

// Reason is the closed taxonomy of rejection causes
type Reason string

const (
	ReasonInvalidListing      Reason = "invalid_listing"
	ReasonUnparseablePrice    Reason = "unparseable_price"
	ReasonUnknownCategory     Reason = "unknown_category"
	ReasonOverThreshold       Reason = "over_threshold"
	ReasonLikelyNotConsole    Reason = "likely_not_console"
	ReasonExclusionMatch      Reason = "exclusion_match"
	ReasonDescriptionRejected Reason = "description_rejected"
	ReasonImageRejected       Reason = "image_rejected"
)

// Rejection explains why a listing was rejected
type Rejection struct {
	Reason Reason `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

func (r Rejection) String() string {
	if r.Detail == "" {
		return string(r.Reason)
	}
	return fmt.Sprintf("%s: %s", r.Reason, r.Detail)
}

// Reject builds a rejection with a formatted detail
func Reject(reason Reason, format string, args ...interface{}) *Rejection {
	return &Rejection{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// ImageJudgment records what the image stage concluded
type ImageJudgment struct {
	Verdict      string   `json:"verdict"`
	ConsoleScore int      `json:"console_score"`
	GameScore    int      `json:"game_score"`
	Labels       []string `json:"labels,omitempty"`
	// Unverified is set when the classifier was unavailable and the listing
	// was let through without a real judgment.
	Unverified bool `json:"unverified"`
}

// ClassifiedListing is a RawListing plus everything the pipeline decided
type ClassifiedListing struct {
	RawListing
	Price     decimal.Decimal `json:"price"`
	Category  string          `json:"category,omitempty"`
	Threshold decimal.Decimal `json:"threshold"`
	Decision  Decision        `json:"decision"`
	Rejection *Rejection      `json:"rejection,omitempty"`
	Image     *ImageJudgment  `json:"image,omitempty"`
}

// IsAccepted reports whether the listing passed every stage
func (c ClassifiedListing) IsAccepted() bool {
	return c.Decision == Accepted
}

// Unverified reports whether acceptance relied on a failed-open image check
func (c ClassifiedListing) Unverified() bool {
	return c.Image != nil && c.Image.Unverified
}

// Alert is the message published for a newly accepted listing
type Alert struct {
	Title      string `json:"title"`
	Price      string `json:"price"`
	Threshold  string `json:"threshold"`
	Platform   string `json:"platform"`
	Category   string `json:"category"`
	Link       string `json:"link"`
	ImageRef   string `json:"image_ref,omitempty"`
	Unverified bool   `json:"unverified"`
}

// NewAlert renders an accepted listing for the alert channel
func NewAlert(c ClassifiedListing) Alert {
	return Alert{
		Title:      c.Title,
		Price:      c.Price.StringFixed(2),
		Threshold:  c.Threshold.StringFixed(2),
		Platform:   c.Platform,
		Category:   c.Category,
		Link:       c.Link,
		ImageRef:   c.ImageRef,
		Unverified: c.Unverified(),
	}
}
