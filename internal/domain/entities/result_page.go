package entities

import (
	"time"
)

// ResultPage is one cached page of a search, unique on (SearchID, PageNumber)
type ResultPage struct {
	SearchID           string               `json:"search_id" db:"search_id"`
	PageNumber         int                  `json:"page_number" db:"page_number"`
	PageSize           int                  `json:"page_size" db:"page_size"`
	InfluencerIDs      []string             `json:"influencer_ids" db:"influencer_ids"`
	InfluencersData    []*InfluencerProfile `json:"influencers_data" db:"influencers_data"`
	TotalResultsInPage int                  `json:"total_results_in_page" db:"total_results_in_page"`
	TotalAvailable     int                  `json:"total_available" db:"total_available"`
	HasNextPage        bool                 `json:"has_next_page" db:"has_next_page"`
	UpdatedAt          time.Time            `json:"updated_at" db:"updated_at"`
}

// HasNextPage reports whether another page exists after page, given the
// provider-reported total. The deduplicated page length plays no part.
func HasNextPage(page, size, totalAvailable int) bool {
	if page <= 0 || size <= 0 {
		return false
	}
	return page*size < totalAvailable
}

// SearchBatch is one provider response: a run of identities starting at
// Offset in the provider's full result list.
type SearchBatch struct {
	Identities     []CreatorIdentity `json:"identities"`
	Offset         int               `json:"offset"`
	TotalAvailable int               `json:"totalAvailable"`
	// TotalEstimated is set when the provider omitted its total and
	// TotalAvailable was inferred from the batch being full.
	TotalEstimated bool `json:"totalEstimated"`
	CreditsUsed    int  `json:"creditsUsed"`
}

// Window returns the identities of the page p, clipped to the batch
func (b *SearchBatch) Window(p Pagination) []CreatorIdentity {
	start := p.Offset() - b.Offset
	if start < 0 || start >= len(b.Identities) {
		return nil
	}
	end := start + p.Size
	if end > len(b.Identities) {
		end = len(b.Identities)
	}
	out := make([]CreatorIdentity, end-start)
	copy(out, b.Identities[start:end])
	return out
}
