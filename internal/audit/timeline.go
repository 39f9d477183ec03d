package audit

import "time"

// TimelineFilters menampung filter dasar untuk audit timeline.
// To bersifat eksklusif.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	Actor    string
	Type     string
	Page     int
	PageSize int
}

// TimelineRow mewakili satu baris audit timeline.
type TimelineRow struct {
	ID          string    `json:"id"`
	At          time.Time `json:"timestamp"`
	Actor       string    `json:"actorUid"`
	Type        string    `json:"type"`
	TargetID    string    `json:"targetUid"`
	TargetEmail string    `json:"targetEmail"`
	Modules     []string  `json:"modules"`
	Role        string    `json:"role,omitempty"`
	Active      *bool     `json:"active,omitempty"`
}

// PagingInfo menyimpan metadata pagination sederhana.
type PagingInfo struct {
	Page     int  `json:"page"`
	HasNext  bool `json:"hasNext"`
	PageSize int  `json:"pageSize"`
	PrevPage int  `json:"prevPage,omitempty"`
	NextPage int  `json:"nextPage,omitempty"`
}

// EventQuery is the storage-level form of a timeline request. Limit <= 0
// returns every matching event.
type EventQuery struct {
	From   time.Time
	To     time.Time
	Actor  string
	Type   string
	Offset int
	Limit  int
}
