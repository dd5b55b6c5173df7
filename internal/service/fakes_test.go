package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- outcomes ---------------------------------------------------------------

type outcomeRow struct {
	status      domain.EventStatus
	outcome     *domain.Outcome
	finalizedAt time.Time
}

type memOutcomes struct {
	mu   sync.Mutex
	rows map[domain.EventID]*outcomeRow
	now  func() time.Time
}

func newMemOutcomes() *memOutcomes {
	return &memOutcomes{rows: map[domain.EventID]*outcomeRow{}, now: time.Now}
}

func (m *memOutcomes) Pin(_ context.Context, o domain.Outcome) (domain.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[o.EventID]
	if !ok {
		cp := o
		m.rows[o.EventID] = &outcomeRow{status: domain.EventStatusScheduled, outcome: &cp, finalizedAt: m.now()}
		return o, nil
	}
	if row.outcome == nil {
		return domain.Outcome{}, fmt.Errorf("mem outcome %s: %w", o.EventID, domain.ErrEventVoided)
	}
	return *row.outcome, nil
}

func (m *memOutcomes) Pinned(_ context.Context, id domain.EventID) (domain.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return domain.Outcome{}, fmt.Errorf("mem outcome %s: %w", id, domain.ErrNotFound)
	}
	if row.outcome == nil {
		return domain.Outcome{}, fmt.Errorf("mem outcome %s: %w", id, domain.ErrEventVoided)
	}
	return *row.outcome, nil
}

func (m *memOutcomes) Save(_ context.Context, o domain.Outcome) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.rows[o.EventID]; ok {
		if row.status != domain.EventStatusScheduled {
			return false, nil
		}
		row.status = domain.EventStatusFinal
		row.finalizedAt = m.now()
		return true, nil
	}
	cp := o
	m.rows[o.EventID] = &outcomeRow{status: domain.EventStatusFinal, outcome: &cp, finalizedAt: m.now()}
	return true, nil
}

func (m *memOutcomes) Get(_ context.Context, id domain.EventID) (domain.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || row.status == domain.EventStatusScheduled {
		return domain.Outcome{}, fmt.Errorf("mem outcome %s: %w", id, domain.ErrNotFound)
	}
	if row.outcome == nil {
		return domain.Outcome{}, fmt.Errorf("mem outcome %s: %w", id, domain.ErrEventVoided)
	}
	return *row.outcome, nil
}

func (m *memOutcomes) Status(_ context.Context, id domain.EventID) (domain.EventStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.rows[id]; ok {
		return row.status, nil
	}
	return domain.EventStatusScheduled, nil
}

func (m *memOutcomes) MarkVoid(_ context.Context, id domain.EventID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.rows[id]; ok {
		row.status = domain.EventStatusVoid
		return nil
	}
	m.rows[id] = &outcomeRow{status: domain.EventStatusVoid}
	return nil
}

func (m *memOutcomes) ListFinalized(_ context.Context, opts domain.ListOpts) ([]domain.EventID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	type item struct {
		id domain.EventID
		at time.Time
	}
	var items []item
	for id, row := range m.rows {
		if row.status != domain.EventStatusFinal {
			continue
		}
		if opts.Since != nil && row.finalizedAt.Before(*opts.Since) {
			continue
		}
		items = append(items, item{id, row.finalizedAt})
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].at.Equal(items[j].at) {
			return items[i].at.Before(items[j].at)
		}
		return items[i].id.String() < items[j].id.String()
	})
	var ids []domain.EventID
	for i, it := range items {
		if i < opts.Offset {
			continue
		}
		if opts.Limit > 0 && len(ids) == opts.Limit {
			break
		}
		ids = append(ids, it.id)
	}
	return ids, nil
}

func (m *memOutcomes) Prune(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, row := range m.rows {
		if row.status == domain.EventStatusFinal && row.finalizedAt.Before(before) {
			delete(m.rows, id)
			n++
		}
	}
	return n, nil
}

type memOutcomeCache struct {
	mu sync.Mutex
	m  map[domain.EventID]domain.Outcome
}

func newMemOutcomeCache() *memOutcomeCache {
	return &memOutcomeCache{m: map[domain.EventID]domain.Outcome{}}
}

func (c *memOutcomeCache) Set(_ context.Context, o domain.Outcome) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[o.EventID] = o
	return nil
}

func (c *memOutcomeCache) Get(_ context.Context, id domain.EventID) (domain.Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.m[id]
	if !ok {
		return domain.Outcome{}, domain.ErrNotFound
	}
	return o, nil
}

func (c *memOutcomeCache) Invalidate(_ context.Context, id domain.EventID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, id)
	return nil
}

type memArchive struct {
	mu      sync.Mutex
	m       map[domain.EventID]domain.Outcome
	bundles [][]domain.Outcome
	failPut bool
}

func newMemArchive() *memArchive { return &memArchive{m: map[domain.EventID]domain.Outcome{}} }

func (a *memArchive) Put(_ context.Context, o domain.Outcome) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failPut {
		return fmt.Errorf("archive unavailable")
	}
	a.m[o.EventID] = o
	return nil
}

func (a *memArchive) Get(_ context.Context, id domain.EventID) (domain.Outcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	o, ok := a.m[id]
	if !ok {
		return domain.Outcome{}, fmt.Errorf("mem archive %s: %w", id, domain.ErrNotFound)
	}
	return o, nil
}

func (a *memArchive) PutBundle(_ context.Context, outcomes []domain.Outcome, at time.Time) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bundles = append(a.bundles, outcomes)
	return "bundles/" + at.Format("20060102T150405") + ".jsonl", nil
}

// --- roster -----------------------------------------------------------------

type memRoster struct {
	pool     []domain.Participant
	national []domain.Participant
}

func testRoster() *memRoster {
	regions := []string{"North", "South", "East", "West"}
	var pool []domain.Participant
	for i := 0; i < 12; i++ {
		pool = append(pool, domain.Participant{
			Name:   fmt.Sprintf("Team %02d", i),
			Region: regions[i%len(regions)],
			Ranked: i%3 == 0,
		})
	}
	// Two-member region that cannot field a match on its own.
	pool = append(pool,
		domain.Participant{Name: "Islander A", Region: "Isles"},
		domain.Participant{Name: "Islander B", Region: "Isles"},
	)
	return &memRoster{pool: pool}
}

func (r *memRoster) ListParticipants(context.Context, string) ([]domain.Participant, error) {
	return append([]domain.Participant(nil), r.pool...), nil
}

func (r *memRoster) NationalPool(context.Context) ([]domain.Participant, error) {
	return append([]domain.Participant(nil), r.national...), nil
}

type memStrengths struct {
	mu sync.Mutex
	m  map[string]float64
}

func (s *memStrengths) Snapshot(context.Context) (map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]float64, len(s.m))
	for k, v := range s.m {
		out[k] = v
	}
	return out, nil
}

func (s *memStrengths) Upsert(_ context.Context, name string, strength float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = map[string]float64{}
	}
	s.m[name] = strength
	return nil
}

// --- markets ----------------------------------------------------------------

func copyMarkets(in []domain.Market) []domain.Market {
	out := make([]domain.Market, len(in))
	for i, m := range in {
		m.Selections = append([]domain.Selection(nil), m.Selections...)
		out[i] = m
	}
	return out
}

type memMarkets struct {
	mu       sync.Mutex
	m        map[domain.EventID][]domain.Market
	saveCall int
}

func newMemMarkets() *memMarkets { return &memMarkets{m: map[domain.EventID][]domain.Market{}} }

func (s *memMarkets) SaveAll(_ context.Context, markets []domain.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCall++
	for _, mk := range copyMarkets(markets) {
		exists := false
		for _, cur := range s.m[mk.EventID] {
			if cur.Name == mk.Name {
				exists = true
				break
			}
		}
		if !exists {
			s.m[mk.EventID] = append(s.m[mk.EventID], mk)
		}
	}
	return nil
}

func (s *memMarkets) ListByEvent(_ context.Context, id domain.EventID) ([]domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyMarkets(s.m[id]), nil
}

func (s *memMarkets) Get(_ context.Context, id domain.EventID, name string) (domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.m[id] {
		if m.Name == name {
			return copyMarkets([]domain.Market{m})[0], nil
		}
	}
	return domain.Market{}, domain.ErrNotFound
}

func (s *memMarkets) UpdatePrices(_ context.Context, m domain.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cur := range s.m[m.EventID] {
		if cur.Name != m.Name {
			continue
		}
		if cur.Status != domain.MarketStatusOpen {
			return domain.ErrMarketLocked
		}
		s.m[m.EventID][i].Selections = append([]domain.Selection(nil), m.Selections...)
		s.m[m.EventID][i].UpdatedAt = m.UpdatedAt
		return nil
	}
	return domain.ErrMarketLocked
}

func (s *memMarkets) SetStatus(_ context.Context, id domain.EventID, status domain.MarketStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cur := range s.m[id] {
		switch {
		case status == domain.MarketStatusLocked && cur.Status == domain.MarketStatusOpen,
			status == domain.MarketStatusSettled && cur.Status != domain.MarketStatusSettled:
			s.m[id][i].Status = status
		}
	}
	return nil
}

func (s *memMarkets) ListOpen(_ context.Context, limit int) ([]domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Market
	for _, ms := range s.m {
		for _, m := range ms {
			if m.Status == domain.MarketStatusOpen {
				out = append(out, m)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EventID != out[j].EventID {
			return out[i].EventID.String() < out[j].EventID.String()
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return copyMarkets(out), nil
}

func (s *memMarkets) statuses(id domain.EventID) map[domain.MarketStatus]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[domain.MarketStatus]int{}
	for _, m := range s.m[id] {
		out[m.Status]++
	}
	return out
}

type memMarketCache struct {
	mu sync.Mutex
	m  map[domain.EventID][]domain.Market
}

func newMemMarketCache() *memMarketCache {
	return &memMarketCache{m: map[domain.EventID][]domain.Market{}}
}

func (c *memMarketCache) SetMarkets(_ context.Context, id domain.EventID, markets []domain.Market) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[id] = copyMarkets(markets)
	return nil
}

func (c *memMarketCache) GetMarkets(_ context.Context, id domain.EventID) ([]domain.Market, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ms, ok := c.m[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyMarkets(ms), nil
}

func (c *memMarketCache) Invalidate(_ context.Context, id domain.EventID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, id)
	return nil
}

type memStakes struct {
	mu sync.Mutex
	m  map[domain.EventID]map[string]map[string]float64
}

func newMemStakes() *memStakes {
	return &memStakes{m: map[domain.EventID]map[string]map[string]float64{}}
}

func (s *memStakes) Add(_ context.Context, id domain.EventID, market, selection string, stake float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m[id] == nil {
		s.m[id] = map[string]map[string]float64{}
	}
	if s.m[id][market] == nil {
		s.m[id][market] = map[string]float64{}
	}
	s.m[id][market][selection] += stake
	return nil
}

func (s *memStakes) Totals(_ context.Context, id domain.EventID, market string) (map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]float64{}
	for k, v := range s.m[id][market] {
		out[k] = v
	}
	return out, nil
}

func (s *memStakes) Clear(_ context.Context, id domain.EventID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, id)
	return nil
}

// --- bets -------------------------------------------------------------------

func copyBet(b domain.Bet) domain.Bet {
	b.Legs = append([]domain.Leg(nil), b.Legs...)
	return b
}

type memBets struct {
	mu     sync.Mutex
	m      map[string]domain.Bet
	order  []string
	ledger []domain.LedgerEntry
	writes int
}

func newMemBets() *memBets { return &memBets{m: map[string]domain.Bet{}} }

func (s *memBets) Create(_ context.Context, bet domain.Bet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[bet.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.m[bet.ID] = copyBet(bet)
	s.order = append(s.order, bet.ID)
	return nil
}

func (s *memBets) GetByID(_ context.Context, id string) (domain.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.m[id]
	if !ok {
		return domain.Bet{}, domain.ErrNotFound
	}
	return copyBet(b), nil
}

func (s *memBets) ListByUser(_ context.Context, userID string, _ domain.ListOpts) ([]domain.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Bet
	for i := len(s.order) - 1; i >= 0; i-- {
		if b := s.m[s.order[i]]; b.UserID == userID {
			out = append(out, copyBet(b))
		}
	}
	return out, nil
}

func (s *memBets) ListPendingByEvent(_ context.Context, id domain.EventID, after domain.BetCursor, limit int) ([]domain.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Bet
	for _, bid := range s.order {
		b := s.m[bid]
		if b.Status != domain.BetStatusPending {
			continue
		}
		if !after.IsZero() && !after.Less(domain.CursorOf(b)) {
			continue
		}
		for _, l := range b.Legs {
			if l.EventID == id && l.Status == domain.LegStatusPending {
				out = append(out, copyBet(b))
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return domain.CursorOf(out[i]).Less(domain.CursorOf(out[j]))
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memBets) PendingEventIDs(_ context.Context, limit int) ([]domain.EventID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[domain.EventID]bool{}
	var out []domain.EventID
	for _, bid := range s.order {
		for _, l := range s.m[bid].Legs {
			if l.Status == domain.LegStatusPending && !seen[l.EventID] {
				seen[l.EventID] = true
				out = append(out, l.EventID)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Round < out[j].Round })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memBets) ApplySettlement(_ context.Context, bet domain.Bet, entries []domain.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.m[bet.ID]
	if !ok || cur.Version != bet.Version {
		return domain.ErrStaleWrite
	}
	bet = copyBet(bet)
	bet.Version++
	s.m[bet.ID] = bet
	s.writes++
	for _, e := range entries {
		dup := false
		for _, have := range s.ledger {
			if have.BetID == e.BetID {
				dup = true
			}
		}
		if !dup {
			s.ledger = append(s.ledger, e)
		}
	}
	return nil
}

func (s *memBets) ledgerFor(betID string) []domain.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.LedgerEntry
	for _, e := range s.ledger {
		if e.BetID == betID {
			out = append(out, e)
		}
	}
	return out
}

type memOverrides struct {
	mu sync.Mutex
	m  []domain.ManualOverride
}

func (s *memOverrides) Set(_ context.Context, o domain.ManualOverride) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cur := range s.m {
		if cur.EventID == o.EventID && cur.Market == o.Market {
			s.m[i] = o
			return nil
		}
	}
	s.m = append(s.m, o)
	return nil
}

func (s *memOverrides) ListByEvent(_ context.Context, id domain.EventID) ([]domain.ManualOverride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ManualOverride
	for _, o := range s.m {
		if o.EventID == id {
			out = append(out, o)
		}
	}
	return out, nil
}

// --- infrastructure ---------------------------------------------------------

type memLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMemLocks() *memLocks { return &memLocks{held: map[string]bool{}} }

func (l *memLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, domain.ErrLockHeld
	}
	l.held[key] = true
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}

type memAudit struct {
	mu     sync.Mutex
	events []string
}

func (a *memAudit) Log(_ context.Context, event string, _ map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *memAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func (a *memAudit) has(event string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, e := range a.events {
		if e == event {
			return true
		}
	}
	return false
}

type published struct {
	channel string
	payload string
}

type memBus struct {
	mu        sync.Mutex
	published []published
	streams   map[string][]string
}

func newMemBus() *memBus { return &memBus{streams: map[string][]string{}} }

func (b *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, published{channel, string(payload)})
	return nil
}

func (b *memBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return make(chan []byte), nil
}

func (b *memBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streams[stream] = append(b.streams[stream], string(payload))
	return nil
}

func (b *memBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func (b *memBus) count(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, p := range b.published {
		if p.channel == channel {
			n++
		}
	}
	return n
}

type memAlerter struct {
	mu     sync.Mutex
	alerts []string
}

func (a *memAlerter) Notify(_ context.Context, event, title, message string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, event+": "+title+": "+message)
	return nil
}

func (a *memAlerter) count(event string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, s := range a.alerts {
		if strings.HasPrefix(s, event+":") {
			n++
		}
	}
	return n
}
