package repository

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"social-casino/internal/model"
)

// MemoryStore is an in-process Store. Units of work run one at a time
// against a copy of the data that replaces the original only on success.
type MemoryStore struct {
	mu   sync.Mutex
	data *memData
}

type friendKey struct{ a, b int64 }

type memData struct {
	wallets      map[int64]*model.Wallet
	transactions []*model.Transaction
	profiles     map[int64]*model.Profile
	tables       map[string]*model.GameTable
	sessions     map[uuid.UUID]*model.GameSession
	friendBets   map[uuid.UUID]*model.FriendBet
	settings     *model.FriendBetSettings
	friendships  map[friendKey]*model.Friendship
	adminLogs    []*model.AdminLog
	scheduled    map[string]*model.ScheduledRound
	tournaments  map[uuid.UUID]*model.Tournament
	wheelSpins   map[wheelKey]*model.WheelSpin
}

type wheelKey struct {
	userID int64
	day    time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: &memData{
		wallets:     make(map[int64]*model.Wallet),
		profiles:    make(map[int64]*model.Profile),
		tables:      make(map[string]*model.GameTable),
		sessions:    make(map[uuid.UUID]*model.GameSession),
		friendBets:  make(map[uuid.UUID]*model.FriendBet),
		friendships: make(map[friendKey]*model.Friendship),
		scheduled:   make(map[string]*model.ScheduledRound),
		tournaments: make(map[uuid.UUID]*model.Tournament),
		wheelSpins:  make(map[wheelKey]*model.WheelSpin),
	}}
}

// InTx runs fn against a working copy and commits it if fn succeeds.
func (s *MemoryStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.data.clone()
	if err := fn(&memTx{d: work}); err != nil {
		return err
	}
	s.data = work
	return nil
}

// clone copies the containers. Records are replaced, never mutated in
// place, so sharing record pointers between copies is safe.
func (d *memData) clone() *memData {
	return &memData{
		wallets:      maps.Clone(d.wallets),
		transactions: append([]*model.Transaction(nil), d.transactions...),
		profiles:     maps.Clone(d.profiles),
		tables:       maps.Clone(d.tables),
		sessions:     maps.Clone(d.sessions),
		friendBets:   maps.Clone(d.friendBets),
		settings:     d.settings,
		friendships:  maps.Clone(d.friendships),
		adminLogs:    append([]*model.AdminLog(nil), d.adminLogs...),
		scheduled:    maps.Clone(d.scheduled),
		tournaments:  maps.Clone(d.tournaments),
		wheelSpins:   maps.Clone(d.wheelSpins),
	}
}

type memTx struct {
	d *memData
}

func (t *memTx) GetWallet(_ context.Context, userID int64) (*model.Wallet, error) {
	w, ok := t.d.wallets[userID]
	if !ok {
		return nil, ErrNotFound
	}
	c := *w
	return &c, nil
}

func (t *memTx) CreateWallet(_ context.Context, w *model.Wallet) error {
	if _, ok := t.d.wallets[w.UserID]; ok {
		return ErrDuplicate
	}
	c := *w
	t.d.wallets[w.UserID] = &c
	return nil
}

func (t *memTx) UpdateWallet(_ context.Context, w *model.Wallet) error {
	if _, ok := t.d.wallets[w.UserID]; !ok {
		return ErrNotFound
	}
	c := *w
	t.d.wallets[w.UserID] = &c
	return nil
}

func (t *memTx) AppendTransaction(_ context.Context, tx *model.Transaction) error {
	c := *tx
	t.d.transactions = append(t.d.transactions, &c)
	return nil
}

func (t *memTx) ListTransactions(_ context.Context, userID int64, limit int) ([]*model.Transaction, error) {
	var out []*model.Transaction
	for i := len(t.d.transactions) - 1; i >= 0; i-- {
		tx := t.d.transactions[i]
		if tx.UserID != userID {
			continue
		}
		c := *tx
		out = append(out, &c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (t *memTx) SumTransactions(_ context.Context, userID int64) (int64, error) {
	var sum int64
	for _, tx := range t.d.transactions {
		if tx.UserID == userID {
			sum += tx.Amount
		}
	}
	return sum, nil
}

func (t *memTx) GetProfile(_ context.Context, userID int64) (*model.Profile, error) {
	p, ok := t.d.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	c := *p
	return &c, nil
}

func (t *memTx) GetProfileByUsername(_ context.Context, username string) (*model.Profile, error) {
	for _, p := range t.d.profiles {
		if p.Username == username {
			c := *p
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memTx) CreateProfile(ctx context.Context, p *model.Profile) error {
	if _, ok := t.d.profiles[p.UserID]; ok {
		return ErrDuplicate
	}
	if _, err := t.GetProfileByUsername(ctx, p.Username); err == nil {
		return ErrDuplicate
	}
	c := *p
	t.d.profiles[p.UserID] = &c
	return nil
}

func (t *memTx) GetTable(_ context.Context, id string) (*model.GameTable, error) {
	tb, ok := t.d.tables[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *tb
	return &c, nil
}

func (t *memTx) ListTables(_ context.Context, activeOnly bool) ([]*model.GameTable, error) {
	var out []*model.GameTable
	for _, tb := range t.d.tables {
		if activeOnly && !tb.IsActive {
			continue
		}
		c := *tb
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) UpsertTable(_ context.Context, tb *model.GameTable) error {
	c := *tb
	t.d.tables[tb.ID] = &c
	return nil
}

func (t *memTx) GetSession(_ context.Context, id uuid.UUID) (*model.GameSession, error) {
	s, ok := t.d.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (t *memTx) CurrentSession(_ context.Context, tableID string) (*model.GameSession, error) {
	for _, s := range t.d.sessions {
		if s.TableID == tableID && s.Status != model.StatusFinished {
			return s.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (t *memTx) LatestRoundNumber(_ context.Context, tableID string) (int, error) {
	latest := 0
	for _, s := range t.d.sessions {
		if s.TableID == tableID && s.RoundNumber > latest {
			latest = s.RoundNumber
		}
	}
	return latest, nil
}

func (t *memTx) CreateSession(ctx context.Context, s *model.GameSession) error {
	if _, ok := t.d.sessions[s.ID]; ok {
		return ErrDuplicate
	}
	if s.Status != model.StatusFinished {
		if _, err := t.CurrentSession(ctx, s.TableID); err == nil {
			return ErrDuplicate
		}
	}
	t.d.sessions[s.ID] = s.Clone()
	return nil
}

func (t *memTx) UpdateSession(_ context.Context, s *model.GameSession) error {
	if _, ok := t.d.sessions[s.ID]; !ok {
		return ErrNotFound
	}
	t.d.sessions[s.ID] = s.Clone()
	return nil
}

func (t *memTx) GetFriendBet(_ context.Context, id uuid.UUID) (*model.FriendBet, error) {
	b, ok := t.d.friendBets[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *b
	return &c, nil
}

func (t *memTx) CreateFriendBet(_ context.Context, b *model.FriendBet) error {
	if _, ok := t.d.friendBets[b.ID]; ok {
		return ErrDuplicate
	}
	if b.Status == model.FriendBetActive {
		for _, o := range t.d.friendBets {
			if o.Status == model.FriendBetActive && o.BettorID == b.BettorID &&
				o.TargetID == b.TargetID && o.SessionID == b.SessionID {
				return ErrDuplicate
			}
		}
	}
	c := *b
	t.d.friendBets[b.ID] = &c
	return nil
}

func (t *memTx) UpdateFriendBet(_ context.Context, b *model.FriendBet) error {
	if _, ok := t.d.friendBets[b.ID]; !ok {
		return ErrNotFound
	}
	c := *b
	t.d.friendBets[b.ID] = &c
	return nil
}

func (t *memTx) ListFriendBets(_ context.Context, f FriendBetFilter) ([]*model.FriendBet, error) {
	var out []*model.FriendBet
	for _, b := range t.d.friendBets {
		if f.match(b) {
			c := *b
			out = append(out, &c)
		}
	}
	sortFriendBets(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (t *memTx) ListStaleFriendBets(_ context.Context, limit int) ([]*model.FriendBet, error) {
	var out []*model.FriendBet
	for _, b := range t.d.friendBets {
		if b.Status != model.FriendBetActive {
			continue
		}
		if s, ok := t.d.sessions[b.SessionID]; ok && s.Status == model.StatusFinished {
			c := *b
			out = append(out, &c)
		}
	}
	sortFriendBets(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortFriendBets(bets []*model.FriendBet) {
	sort.Slice(bets, func(i, j int) bool {
		if !bets[i].CreatedAt.Equal(bets[j].CreatedAt) {
			return bets[i].CreatedAt.After(bets[j].CreatedAt)
		}
		return bets[i].ID.String() < bets[j].ID.String()
	})
}

func (t *memTx) GetFriendBetSettings(_ context.Context) (*model.FriendBetSettings, error) {
	if t.d.settings == nil {
		return nil, ErrNotFound
	}
	c := *t.d.settings
	return &c, nil
}

func (t *memTx) SaveFriendBetSettings(_ context.Context, s *model.FriendBetSettings) error {
	c := *s
	t.d.settings = &c
	return nil
}

func (t *memTx) AreFriends(_ context.Context, a, b int64) (bool, error) {
	for _, k := range []friendKey{{a, b}, {b, a}} {
		if f, ok := t.d.friendships[k]; ok && f.Status == model.FriendshipAccepted {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) GetFriendship(_ context.Context, requesterID, addresseeID int64) (*model.Friendship, error) {
	f, ok := t.d.friendships[friendKey{requesterID, addresseeID}]
	if !ok {
		return nil, ErrNotFound
	}
	c := *f
	return &c, nil
}

func (t *memTx) UpsertFriendship(_ context.Context, f *model.Friendship) error {
	c := *f
	t.d.friendships[friendKey{f.RequesterID, f.AddresseeID}] = &c
	return nil
}

func (t *memTx) AppendAdminLog(_ context.Context, l *model.AdminLog) error {
	c := *l
	t.d.adminLogs = append(t.d.adminLogs, &c)
	return nil
}

func (t *memTx) ListAdminLogs(_ context.Context, limit int) ([]*model.AdminLog, error) {
	var out []*model.AdminLog
	for i := len(t.d.adminLogs) - 1; i >= 0; i-- {
		c := *t.d.adminLogs[i]
		out = append(out, &c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (t *memTx) UpsertScheduledRound(_ context.Context, r *model.ScheduledRound) error {
	c := *r
	t.d.scheduled[r.TableID] = &c
	return nil
}

func (t *memTx) DeleteScheduledRound(_ context.Context, tableID string) error {
	delete(t.d.scheduled, tableID)
	return nil
}

func (t *memTx) ListScheduledRounds(_ context.Context) ([]*model.ScheduledRound, error) {
	out := make([]*model.ScheduledRound, 0, len(t.d.scheduled))
	for _, r := range t.d.scheduled {
		c := *r
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.Before(out[j].DueAt) })
	return out, nil
}

func (t *memTx) GetTournament(_ context.Context, id uuid.UUID) (*model.Tournament, error) {
	tr, ok := t.d.tournaments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return tr.Clone(), nil
}

func (t *memTx) CreateTournament(_ context.Context, tr *model.Tournament) error {
	if _, ok := t.d.tournaments[tr.ID]; ok {
		return ErrDuplicate
	}
	t.d.tournaments[tr.ID] = tr.Clone()
	return nil
}

func (t *memTx) UpdateTournament(_ context.Context, tr *model.Tournament) error {
	if _, ok := t.d.tournaments[tr.ID]; !ok {
		return ErrNotFound
	}
	t.d.tournaments[tr.ID] = tr.Clone()
	return nil
}

func (t *memTx) ListOpenTournaments(_ context.Context) ([]*model.Tournament, error) {
	var out []*model.Tournament
	for _, tr := range t.d.tournaments {
		if tr.Status != model.TournamentFinished {
			out = append(out, tr.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (t *memTx) GetWheelSpin(_ context.Context, userID int64, day time.Time) (*model.WheelSpin, error) {
	sp, ok := t.d.wheelSpins[wheelKey{userID, model.SpinDay(day)}]
	if !ok {
		return nil, ErrNotFound
	}
	c := *sp
	return &c, nil
}

func (t *memTx) CreateWheelSpin(_ context.Context, sp *model.WheelSpin) error {
	key := wheelKey{sp.UserID, model.SpinDay(sp.Day)}
	if _, ok := t.d.wheelSpins[key]; ok {
		return ErrDuplicate
	}
	c := *sp
	t.d.wheelSpins[key] = &c
	return nil
}
