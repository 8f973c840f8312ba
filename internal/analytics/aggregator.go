package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/maintrack/internal/models"
)

// RequestReader is the read side of the request store.
type RequestReader interface {
	GetAll() []models.MaintenanceRequest
}

// GroupCount is one bucket of a grouped count.
type GroupCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// TeamCount is a team's request count and its share of all requests.
type TeamCount struct {
	TeamID   string          `json:"team_id"`
	TeamName string          `json:"team_name"`
	Count    int             `json:"count"`
	Share    float64         `json:"share"`
	Percent  decimal.Decimal `json:"percent"`
}

// RequestView is a request with its overdue flag attached.
type RequestView struct {
	models.MaintenanceRequest
	Overdue bool `json:"overdue"`
}

// CalendarDay lists the requests scheduled on one UTC date.
type CalendarDay struct {
	Date     string        `json:"date"`
	Requests []RequestView `json:"requests"`
}

// EquipmentSummary is an equipment record with the number of its open requests.
type EquipmentSummary struct {
	models.Equipment
	OpenRequestCount int `json:"open_request_count"`
}

// AggregateSnapshot is the dashboard summary. It is derived on every call.
type AggregateSnapshot struct {
	StageCounts       map[models.Stage]int       `json:"stage_counts"`
	TeamCounts        []TeamCount                `json:"team_counts"`
	OverdueCount      int                        `json:"overdue_count"`
	TotalRequests     int                        `json:"total_requests"`
	RequestTypes      map[models.RequestType]int `json:"request_types"`
	TotalEquipment    int                        `json:"total_equipment"`
	UnusableEquipment int                        `json:"unusable_equipment"`
	GeneratedAt       time.Time                  `json:"generated_at"`
}

// Aggregator derives statistics from the current store contents. Nothing is cached:
// every method reads the store afresh.
type Aggregator struct {
	requests RequestReader
	now      func() time.Time
}

// NewAggregator returns an Aggregator reading from requests. now defaults to time.Now.
func NewAggregator(requests RequestReader, now func() time.Time) *Aggregator {
	if now == nil {
		now = time.Now
	}
	return &Aggregator{requests: requests, now: now}
}

// StageCounts counts requests per stage. Every stage is present.
func (a *Aggregator) StageCounts() map[models.Stage]int {
	return stageCounts(a.requests.GetAll())
}

// RequestTypeCounts counts corrective and preventive requests.
func (a *Aggregator) RequestTypeCounts() map[models.RequestType]int {
	return requestTypeCounts(a.requests.GetAll())
}

// OverdueCount counts requests that are overdue now.
func (a *Aggregator) OverdueCount() int {
	return overdueCount(a.requests.GetAll(), a.now())
}

// ByCategory counts requests per equipment category, skipping requests without one.
// Buckets appear in order of first occurrence.
func (a *Aggregator) ByCategory() []GroupCount {
	return groupBy(a.requests.GetAll(), func(r models.MaintenanceRequest) string { return r.EquipmentCategory })
}

// ByTeam counts requests per team name, skipping unassigned requests.
func (a *Aggregator) ByTeam() []GroupCount {
	return groupBy(a.requests.GetAll(), func(r models.MaintenanceRequest) string { return r.TeamName })
}

// TeamCounts counts requests per team id with each team's share of all requests.
// Roster teams come first, in roster order, and are reported even with no requests;
// teams only known from requests follow in order of first occurrence.
func (a *Aggregator) TeamCounts(roster ...models.Team) []TeamCount {
	return teamCounts(a.requests.GetAll(), roster)
}

// WithOverdue returns every request with its overdue flag.
func (a *Aggregator) WithOverdue(f models.RequestFilter) []RequestView {
	now := a.now()
	var out []RequestView
	for _, r := range a.requests.GetAll() {
		if f.Match(r) {
			out = append(out, RequestView{MaintenanceRequest: r, Overdue: r.Overdue(now)})
		}
	}
	if out == nil {
		out = []RequestView{}
	}
	return out
}

// OpenRequestsByEquipment counts non-terminal requests per equipment id.
func (a *Aggregator) OpenRequestsByEquipment() map[string]int {
	out := map[string]int{}
	for _, r := range a.requests.GetAll() {
		if !r.Stage.IsTerminal() {
			out[r.EquipmentID]++
		}
	}
	return out
}

// EquipmentSummaries attaches open request counts to equipment.
func (a *Aggregator) EquipmentSummaries(equipment []models.Equipment) []EquipmentSummary {
	open := a.OpenRequestsByEquipment()
	out := make([]EquipmentSummary, 0, len(equipment))
	for _, eq := range equipment {
		out = append(out, EquipmentSummary{Equipment: eq, OpenRequestCount: open[eq.ID]})
	}
	return out
}

// CalendarDays groups scheduled requests by UTC date, earliest first. An empty
// requestType includes every type.
func (a *Aggregator) CalendarDays(requestType models.RequestType) []CalendarDay {
	now := a.now()
	byDay := map[string][]RequestView{}
	for _, r := range a.requests.GetAll() {
		if r.ScheduledDate == nil {
			continue
		}
		if requestType != "" && r.RequestType != requestType {
			continue
		}
		key := models.DateOf(*r.ScheduledDate).Format(time.DateOnly)
		byDay[key] = append(byDay[key], RequestView{MaintenanceRequest: r, Overdue: r.Overdue(now)})
	}

	days := make([]CalendarDay, 0, len(byDay))
	for date, reqs := range byDay {
		days = append(days, CalendarDay{Date: date, Requests: reqs})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })
	return days
}

// Snapshot computes the full dashboard summary from a single read of the store.
func (a *Aggregator) Snapshot(equipment []models.Equipment, roster []models.Team) AggregateSnapshot {
	now := a.now()
	all := a.requests.GetAll()

	unusable := 0
	for _, eq := range equipment {
		if !eq.IsUsable {
			unusable++
		}
	}

	return AggregateSnapshot{
		StageCounts:       stageCounts(all),
		TeamCounts:        teamCounts(all, roster),
		OverdueCount:      overdueCount(all, now),
		TotalRequests:     len(all),
		RequestTypes:      requestTypeCounts(all),
		TotalEquipment:    len(equipment),
		UnusableEquipment: unusable,
		GeneratedAt:       now.UTC(),
	}
}

func stageCounts(all []models.MaintenanceRequest) map[models.Stage]int {
	counts := make(map[models.Stage]int, 4)
	for _, s := range models.AllStages() {
		counts[s] = 0
	}
	for _, r := range all {
		if _, ok := counts[r.Stage]; ok {
			counts[r.Stage]++
		}
	}
	return counts
}

func requestTypeCounts(all []models.MaintenanceRequest) map[models.RequestType]int {
	counts := map[models.RequestType]int{
		models.RequestTypeCorrective: 0,
		models.RequestTypePreventive: 0,
	}
	for _, r := range all {
		if _, ok := counts[r.RequestType]; ok {
			counts[r.RequestType]++
		}
	}
	return counts
}

func overdueCount(all []models.MaintenanceRequest, now time.Time) int {
	n := 0
	for _, r := range all {
		if r.Overdue(now) {
			n++
		}
	}
	return n
}

func groupBy(all []models.MaintenanceRequest, key func(models.MaintenanceRequest) string) []GroupCount {
	out := []GroupCount{}
	pos := map[string]int{}
	for _, r := range all {
		k := key(r)
		if k == "" {
			continue
		}
		i, ok := pos[k]
		if !ok {
			i = len(out)
			pos[k] = i
			out = append(out, GroupCount{Key: k})
		}
		out[i].Count++
	}
	return out
}

func teamCounts(all []models.MaintenanceRequest, roster []models.Team) []TeamCount {
	out := make([]TeamCount, 0, len(roster))
	pos := map[string]int{}
	for _, t := range roster {
		if _, dup := pos[t.ID]; dup || t.ID == "" {
			continue
		}
		pos[t.ID] = len(out)
		out = append(out, TeamCount{TeamID: t.ID, TeamName: t.Name})
	}
	for _, r := range all {
		if r.TeamID == "" {
			continue
		}
		i, ok := pos[r.TeamID]
		if !ok {
			i = len(out)
			pos[r.TeamID] = i
			out = append(out, TeamCount{TeamID: r.TeamID, TeamName: r.TeamName})
		}
		if out[i].TeamName == "" {
			out[i].TeamName = r.TeamName
		}
		out[i].Count++
	}

	total := len(all)
	for i := range out {
		out[i].Share, out[i].Percent = share(out[i].Count, total)
	}
	return out
}

// share returns count/total and the matching percentage rounded to one place.
// A zero total yields a zero share.
func share(count, total int) (float64, decimal.Decimal) {
	if total == 0 {
		return 0, decimal.Zero
	}
	pct := decimal.NewFromInt(int64(count)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(1)
	return float64(count) / float64(total), pct
}
