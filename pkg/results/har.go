package results

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/chromedp/cdproto/har"
	"github.com/sre-norns/skuld/pkg/catalog"
)

const (
	harVersion     = "1.2"
	harCreatorName = "skuld"
)

// ExportHAR renders measurements of the given kind as a HAR log: one page per URL
// with the load time in pageTimings.onLoad.
func (s *Store) ExportHAR(kind Kind, startedAt time.Time) har.HAR {
	urls := s.URLs(kind)
	pages := make([]*har.Page, 0, len(urls))

	for i, url := range urls {
		millis, _ := s.Lookup(kind, url)
		pages = append(pages, &har.Page{
			StartedDateTime: startedAt.UTC().Format(time.RFC3339Nano),
			ID:              fmt.Sprintf("page_%d", i+1),
			Title:           url,
			PageTimings: &har.PageTimings{
				OnLoad: float64(millis),
			},
			Comment: kind.String(),
		})
	}

	return har.HAR{
		Log: &har.Log{
			Version: harVersion,
			Creator: &har.Creator{
				Name:    harCreatorName,
				Version: moduleVersion(),
			},
			Pages:   pages,
			Entries: []*har.Entry{},
			Comment: kind.String(),
		},
	}
}

// WriteHAR encodes measurements of the given kind as HAR JSON.
func (s *Store) WriteHAR(w io.Writer, kind Kind, startedAt time.Time) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(s.ExportHAR(kind, startedAt)); err != nil {
		return fmt.Errorf("failed to marshal HAR log: %w", err)
	}

	return nil
}

func UnmarshalHAR(reader io.Reader) (har.HAR, error) {
	var harLog har.HAR

	dec := json.NewDecoder(reader)
	if err := dec.Decode(&harLog); err != nil {
		return harLog, fmt.Errorf("failed to unmarshal HAR log: %w", err)
	}

	return harLog, nil
}

// ImportHAR loads page timings from a HAR log as measurements of the given kind.
// Pages are identified by title, falling back to the page ID; pages without an onLoad
// timing are skipped. Returns the number of imported pages.
func (s *Store) ImportHAR(reader io.Reader, kind Kind) (int, error) {
	harLog, err := UnmarshalHAR(reader)
	if err != nil {
		return 0, err
	}

	if harLog.Log == nil {
		return 0, fmt.Errorf("HAR file has no log section")
	}

	imported := 0
	for _, page := range harLog.Log.Pages {
		if page == nil || page.PageTimings == nil || page.PageTimings.OnLoad <= 0 {
			continue
		}

		url := page.Title
		if url == "" {
			url = page.ID
		}
		if url == "" {
			continue
		}

		s.Put(kind, catalog.Normalize(url), int64(page.PageTimings.OnLoad))
		imported++
	}

	return imported, nil
}
