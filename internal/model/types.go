package model

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Author is the sender recorded on a feed entry.
type Author struct {
	Name  string `xml:"name" json:"name"`
	Email string `xml:"email" json:"email"`
}

// MessageID is the archive URL that identifies one message.
type MessageID struct {
	Href string `xml:"href,attr" json:"href"`
}

// Patch holds the metadata of one mailed patch as it appears in the archive
// feed. Version, NumberInSeries and TotalInSeries are derived from the title
// tag ("[PATCH v2 1/3]") and are not part of the feed itself.
type Patch struct {
	Title          string     `xml:"title" json:"title"`
	Author         Author     `xml:"author" json:"author"`
	Version        int        `xml:"-" json:"version"`
	NumberInSeries int        `xml:"-" json:"number_in_series"`
	TotalInSeries  int        `xml:"-" json:"total_in_series"`
	Updated        string     `xml:"updated" json:"updated"`
	MessageID      MessageID  `xml:"link" json:"message_id"`
	InReplyTo      *MessageID `xml:"http://purl.org/syndication/thread/1.0 in-reply-to" json:"in_reply_to,omitempty"`
}

// ID returns the message URL of the patch.
func (p Patch) ID() string { return p.MessageID.Href }

// IsCoverLetter reports whether the patch is the 0/N message of a series.
func (p Patch) IsCoverLetter() bool { return p.NumberInSeries == 0 }

// SeriesLabel renders the version and position, e.g. "v2 1/3".
func (p Patch) SeriesLabel() string {
	return fmt.Sprintf("v%d %d/%d", p.Version, p.NumberInSeries, p.TotalInSeries)
}

// PatchFeed is one page of the archive's Atom feed.
type PatchFeed struct {
	Patches []Patch `xml:"entry"`
}

// MailingList is one entry of the archive's list directory.
type MailingList struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// SortMailingLists orders lists by name in place.
func SortMailingLists(lists []MailingList) {
	sort.SliceStable(lists, func(i, j int) bool {
		return lists[i].Name < lists[j].Name
	})
}

// SeriesSet is a set of patch numbers. It marshals as a sorted JSON array.
type SeriesSet map[int]struct{}

func NewSeriesSet(nums ...int) SeriesSet {
	s := make(SeriesSet, len(nums))
	for _, n := range nums {
		s[n] = struct{}{}
	}
	return s
}

func (s SeriesSet) Add(n int) { s[n] = struct{}{} }

func (s SeriesSet) Has(n int) bool {
	_, ok := s[n]
	return ok
}

// Sorted returns the members in ascending order.
func (s SeriesSet) Sorted() []int {
	out := make([]int, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

func (s SeriesSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *SeriesSet) UnmarshalJSON(data []byte) error {
	var nums []int
	if err := json.Unmarshal(data, &nums); err != nil {
		return err
	}
	*s = NewSeriesSet(nums...)
	return nil
}

// ReviewedPatchsets maps a key (the representative patch's message URL) to
// the patch numbers already replied to.
type ReviewedPatchsets map[string]SeriesSet
