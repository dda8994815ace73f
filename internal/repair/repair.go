// Package repair finds placeholder media left by earlier passes and replaces it
// from a classified bucket.
//
// Repair is two-tier. Placeholder positions are first patched, in list order,
// with bucket videos the list does not already hold, so curated entries survive
// and nothing is duplicated. If the bucket runs out of such videos before every
// placeholder is patched, the whole video list is replaced with the bucket's
// canonical list. A list with no real entry has nothing to preserve and is
// replaced outright.
package repair

import (
	"strings"

	"github.com/p-n-ai/pai-curator/internal/catalog"
	"github.com/p-n-ai/pai-curator/internal/curriculum"
)

// Outcome describes what Repair did to a record.
type Outcome int

const (
	OutcomeUnchanged Outcome = iota
	OutcomeSelective
	OutcomeFullReplace
	OutcomeNoRule
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSelective:
		return "selective"
	case OutcomeFullReplace:
		return "full_replace"
	case OutcomeNoRule:
		return "no_rule"
	default:
		return "unchanged"
	}
}

// Detector recognizes the placeholder sentinel.
type Detector struct {
	sentinel string
}

// NewDetector creates a detector for the given sentinel identifier.
func NewDetector(sentinel string) *Detector {
	return &Detector{sentinel: sentinel}
}

// IsPlaceholder reports whether url carries the sentinel.
func (d *Detector) IsPlaceholder(url string) bool {
	return d.sentinel != "" && strings.Contains(url, d.sentinel)
}

// HasPlaceholder reports whether any video URL or the top-level videoUrl carries the sentinel.
func (d *Detector) HasPlaceholder(rec *curriculum.TopicRecord) bool {
	return d.IsPlaceholder(rec.VideoURL) || d.anyPlaceholder(rec.Materials.Videos)
}

// Repair fixes rec in place. bucket may be nil when classification failed, in
// which case rec is left untouched and OutcomeNoRule is returned.
func (d *Detector) Repair(rec *curriculum.TopicRecord, bucket *catalog.Bucket) Outcome {
	if !d.HasPlaceholder(rec) {
		return OutcomeUnchanged
	}
	if bucket == nil {
		return OutcomeNoRule
	}

	if !d.hasReal(rec.Materials.Videos) {
		rec.Materials.Videos = append([]curriculum.MediaRef(nil), bucket.Videos...)
		d.syncVideoURL(rec)
		return OutcomeFullReplace
	}

	// Positional iteration: two identical placeholder entries are still two
	// positions, and each takes the next unused candidate.
	candidates := d.candidates(rec.Materials.Videos, bucket.Videos)
	videos := append([]curriculum.MediaRef(nil), rec.Materials.Videos...)
	next := 0
	for i := range videos {
		if !d.IsPlaceholder(videos[i].URL) {
			continue
		}
		if next == len(candidates) {
			break
		}
		videos[i] = candidates[next]
		next++
	}

	outcome := OutcomeSelective
	if d.anyPlaceholder(videos) {
		videos = append([]curriculum.MediaRef(nil), bucket.Videos...)
		outcome = OutcomeFullReplace
	}

	rec.Materials.Videos = videos
	d.syncVideoURL(rec)
	return outcome
}

// candidates returns the bucket videos that are real and not already in the
// list, in bucket order.
func (d *Detector) candidates(list, canonical []curriculum.MediaRef) []curriculum.MediaRef {
	present := make(map[string]struct{}, len(list))
	for _, v := range list {
		present[v.URL] = struct{}{}
	}
	var out []curriculum.MediaRef
	for _, v := range canonical {
		if v.URL == "" || d.IsPlaceholder(v.URL) {
			continue
		}
		if _, dup := present[v.URL]; dup {
			continue
		}
		present[v.URL] = struct{}{}
		out = append(out, v)
	}
	return out
}

// syncVideoURL points videoUrl at the first real video, leaving it alone when
// there is none.
func (d *Detector) syncVideoURL(rec *curriculum.TopicRecord) {
	if url, ok := d.firstReal(rec.Materials.Videos); ok {
		rec.VideoURL = url
	}
}

func (d *Detector) anyPlaceholder(refs []curriculum.MediaRef) bool {
	for _, r := range refs {
		if d.IsPlaceholder(r.URL) {
			return true
		}
	}
	return false
}

func (d *Detector) hasReal(refs []curriculum.MediaRef) bool {
	_, ok := d.firstReal(refs)
	return ok
}

func (d *Detector) firstReal(refs []curriculum.MediaRef) (string, bool) {
	for _, r := range refs {
		if r.URL != "" && !d.IsPlaceholder(r.URL) {
			return r.URL, true
		}
	}
	return "", false
}
