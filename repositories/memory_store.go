package repositories

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/football-investment/practice-booking-system-sub003/models"
)

// MemoryStore keeps all state in process. Transactions work on a deep copy taken
// under a store-wide lock and swap it in on success, so they serialize like
// SERIALIZABLE transactions would.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

type memState struct {
	nextID int

	competitions map[int]*models.Competition
	enrollments  map[int]*models.Enrollment
	matches      map[int]*models.Match
	rankings     map[int][]*models.Ranking
	rewards      map[string]*models.RewardTransaction
	rewardSlots  map[string]struct{}
	achievements map[string]*models.Achievement
	tasks        map[string]*models.GenerationTask
}

func newMemState() *memState {
	return &memState{
		competitions: make(map[int]*models.Competition),
		enrollments:  make(map[int]*models.Enrollment),
		matches:      make(map[int]*models.Match),
		rankings:     make(map[int][]*models.Ranking),
		rewards:      make(map[string]*models.RewardTransaction),
		rewardSlots:  make(map[string]struct{}),
		achievements: make(map[string]*models.Achievement),
		tasks:        make(map[string]*models.GenerationTask),
	}
}

func (s *memState) id() int {
	s.nextID++
	return s.nextID
}

func (s *memState) clone() *memState {
	out := newMemState()
	out.nextID = s.nextID
	for k, v := range s.competitions {
		out.competitions[k] = cloneCompetition(v)
	}
	for k, v := range s.enrollments {
		out.enrollments[k] = cloneEnrollment(v)
	}
	for k, v := range s.matches {
		out.matches[k] = v.Clone()
	}
	for k, v := range s.rankings {
		set := make([]*models.Ranking, len(v))
		for i, rk := range v {
			c := *rk
			set[i] = &c
		}
		out.rankings[k] = set
	}
	for k, v := range s.rewards {
		c := *v
		out.rewards[k] = &c
	}
	for k := range s.rewardSlots {
		out.rewardSlots[k] = struct{}{}
	}
	for k, v := range s.achievements {
		c := *v
		out.achievements[k] = &c
	}
	for k, v := range s.tasks {
		out.tasks[k] = cloneTask(v)
	}
	return out
}

func cloneCompetition(c *models.Competition) *models.Competition {
	out := *c
	out.Config = c.Config.Clone()
	if c.SessionsGeneratedAt != nil {
		t := *c.SessionsGeneratedAt
		out.SessionsGeneratedAt = &t
	}
	if c.RewardsDistributedAt != nil {
		t := *c.RewardsDistributedAt
		out.RewardsDistributedAt = &t
	}
	if c.ArchiveKey != nil {
		k := *c.ArchiveKey
		out.ArchiveKey = &k
	}
	return &out
}

func cloneEnrollment(e *models.Enrollment) *models.Enrollment {
	out := *e
	if e.Seed != nil {
		s := *e.Seed
		out.Seed = &s
	}
	return &out
}

func cloneTask(t *models.GenerationTask) *models.GenerationTask {
	out := *t
	if t.LastError != nil {
		e := *t.LastError
		out.LastError = &e
	}
	return &out
}

// view binds repositories to a state. Live views lock per call; transactional
// views run while the store lock is already held.
type view struct {
	state func() *memState
	lock  func() func()
}

func (s *MemoryStore) Repos() Repos {
	v := &view{
		state: func() *memState { return s.state },
		lock: func() func() {
			s.mu.Lock()
			return s.mu.Unlock
		},
	}
	return v.repos()
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := s.state.clone()
	v := &view{
		state: func() *memState { return work },
		lock:  func() func() { return func() {} },
	}

	if err := fn(ctx, v.repos()); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (v *view) repos() Repos {
	return Repos{
		Competitions: &memCompetitionRepository{v},
		Enrollments:  &memEnrollmentRepository{v},
		Matches:      &memMatchRepository{v},
		Rankings:     &memRankingRepository{v},
		Rewards:      &memRewardRepository{v},
		Tasks:        &memTaskRepository{v},
	}
}

type memCompetitionRepository struct{ *view }

func (r *memCompetitionRepository) Create(ctx context.Context, c *models.Competition) error {
	defer r.lock()()
	st := r.state()
	now := time.Now().UTC()
	c.ID = st.id()
	c.CreatedAt, c.UpdatedAt = now, now
	st.competitions[c.ID] = cloneCompetition(c)
	return nil
}

func (r *memCompetitionRepository) GetByID(ctx context.Context, id int) (*models.Competition, error) {
	defer r.lock()()
	c, ok := r.state().competitions[id]
	if !ok {
		return nil, ErrCompetitionNotFound
	}
	return cloneCompetition(c), nil
}

func (r *memCompetitionRepository) GetForUpdate(ctx context.Context, id int) (*models.Competition, error) {
	return r.GetByID(ctx, id)
}

func (r *memCompetitionRepository) List(ctx context.Context, filter ListCompetitionsFilter) ([]*models.Competition, error) {
	defer r.lock()()
	var out []*models.Competition
	for _, c := range r.state().competitions {
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		if filter.Format != nil && c.Format != *filter.Format {
			continue
		}
		out = append(out, cloneCompetition(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return paginate(out, filter.Offset, filter.Limit), nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func (r *memCompetitionRepository) Update(ctx context.Context, c *models.Competition) error {
	defer r.lock()()
	st := r.state()
	if _, ok := st.competitions[c.ID]; !ok {
		return ErrCompetitionNotFound
	}
	st.competitions[c.ID] = cloneCompetition(c)
	return nil
}

type memEnrollmentRepository struct{ *view }

func (r *memEnrollmentRepository) Create(ctx context.Context, e *models.Enrollment) error {
	defer r.lock()()
	st := r.state()
	for _, existing := range st.enrollments {
		if existing.CompetitionID == e.CompetitionID && existing.ParticipantID == e.ParticipantID {
			return fmt.Errorf("%w: enrollments_competition_participant_key", ErrUniqueViolation)
		}
	}
	now := time.Now().UTC()
	e.ID = st.id()
	e.CreatedAt, e.UpdatedAt = now, now
	st.enrollments[e.ID] = cloneEnrollment(e)
	return nil
}

func (r *memEnrollmentRepository) Get(ctx context.Context, competitionID, participantID int) (*models.Enrollment, error) {
	defer r.lock()()
	for _, e := range r.state().enrollments {
		if e.CompetitionID == competitionID && e.ParticipantID == participantID {
			return cloneEnrollment(e), nil
		}
	}
	return nil, ErrEnrollmentNotFound
}

func (r *memEnrollmentRepository) Update(ctx context.Context, e *models.Enrollment) error {
	defer r.lock()()
	st := r.state()
	if _, ok := st.enrollments[e.ID]; !ok {
		return ErrEnrollmentNotFound
	}
	st.enrollments[e.ID] = cloneEnrollment(e)
	return nil
}

func (r *memEnrollmentRepository) ListActive(ctx context.Context, competitionID int) ([]*models.Enrollment, error) {
	defer r.lock()()
	var out []*models.Enrollment
	for _, e := range r.state().enrollments {
		if e.CompetitionID == competitionID && e.Status == models.EnrollmentActive {
			out = append(out, cloneEnrollment(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := out[i].Seed, out[j].Seed
		switch {
		case si != nil && sj != nil && *si != *sj:
			return *si < *sj
		case si != nil && sj == nil:
			return true
		case si == nil && sj != nil:
			return false
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *memEnrollmentRepository) CountActive(ctx context.Context, competitionID int) (int, error) {
	list, err := r.ListActive(ctx, competitionID)
	return len(list), err
}

type memMatchRepository struct{ *view }

func (r *memMatchRepository) CreateBatch(ctx context.Context, matches []*models.Match) error {
	defer r.lock()()
	st := r.state()
	uids := make(map[string]bool)
	for _, m := range st.matches {
		uids[fmt.Sprintf("%d/%s", m.CompetitionID, m.BracketUID)] = true
	}
	for _, m := range matches {
		key := fmt.Sprintf("%d/%s", m.CompetitionID, m.BracketUID)
		if uids[key] {
			return fmt.Errorf("%w: matches_competition_uid_key", ErrUniqueViolation)
		}
		uids[key] = true
	}
	now := time.Now().UTC()
	for _, m := range matches {
		m.ID = st.id()
		m.CreatedAt = now
		st.matches[m.ID] = m.Clone()
	}
	return nil
}

func (r *memMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	defer r.lock()()
	m, ok := r.state().matches[id]
	if !ok {
		return nil, ErrMatchNotFound
	}
	return m.Clone(), nil
}

func (r *memMatchRepository) GetForUpdate(ctx context.Context, id int) (*models.Match, error) {
	return r.GetByID(ctx, id)
}

func (r *memMatchRepository) GetByUID(ctx context.Context, competitionID int, uid string) (*models.Match, error) {
	defer r.lock()()
	for _, m := range r.state().matches {
		if m.CompetitionID == competitionID && m.BracketUID == uid {
			return m.Clone(), nil
		}
	}
	return nil, ErrMatchNotFound
}

func (r *memMatchRepository) ListByCompetition(ctx context.Context, competitionID int) ([]*models.Match, error) {
	return r.filter(func(m *models.Match) bool { return m.CompetitionID == competitionID }), nil
}

func (r *memMatchRepository) ListBySource(ctx context.Context, competitionID int, sourceUID string) ([]*models.Match, error) {
	return r.filter(func(m *models.Match) bool {
		if m.CompetitionID != competitionID {
			return false
		}
		return (m.Source1UID != nil && *m.Source1UID == sourceUID) || (m.Source2UID != nil && *m.Source2UID == sourceUID)
	}), nil
}

func (r *memMatchRepository) filter(keep func(*models.Match) bool) []*models.Match {
	defer r.lock()()
	var out []*models.Match
	for _, m := range r.state().matches {
		if keep(m) {
			out = append(out, m.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Round != out[j].Round {
			return out[i].Round < out[j].Round
		}
		if out[i].OrderInRound != out[j].OrderInRound {
			return out[i].OrderInRound < out[j].OrderInRound
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *memMatchRepository) CountByCompetition(ctx context.Context, competitionID int) (int, error) {
	return len(r.filter(func(m *models.Match) bool { return m.CompetitionID == competitionID })), nil
}

func (r *memMatchRepository) Update(ctx context.Context, m *models.Match) error {
	defer r.lock()()
	st := r.state()
	existing, ok := st.matches[m.ID]
	if !ok {
		return ErrMatchNotFound
	}
	updated := existing.Clone()
	fresh := m.Clone()
	updated.Participant1ID = fresh.Participant1ID
	updated.Participant2ID = fresh.Participant2ID
	updated.Result = fresh.Result
	updated.WinnerID = fresh.WinnerID
	updated.Finalized = fresh.Finalized
	updated.FinalizedAt = fresh.FinalizedAt
	st.matches[m.ID] = updated
	return nil
}

type memRankingRepository struct{ *view }

func (r *memRankingRepository) ReplaceAll(ctx context.Context, competitionID int, rankings []*models.Ranking) error {
	defer r.lock()()
	st := r.state()
	seenRank := make(map[int]bool, len(rankings))
	seenParticipant := make(map[int]bool, len(rankings))
	set := make([]*models.Ranking, 0, len(rankings))
	for _, rk := range rankings {
		if seenRank[rk.Rank] {
			return fmt.Errorf("%w: rankings_competition_rank_key", ErrUniqueViolation)
		}
		if seenParticipant[rk.ParticipantID] {
			return fmt.Errorf("%w: rankings_competition_participant_key", ErrUniqueViolation)
		}
		seenRank[rk.Rank] = true
		seenParticipant[rk.ParticipantID] = true
		rk.ID = st.id()
		c := *rk
		set = append(set, &c)
	}
	sort.Slice(set, func(i, j int) bool { return set[i].Rank < set[j].Rank })
	st.rankings[competitionID] = set
	return nil
}

func (r *memRankingRepository) ListByCompetition(ctx context.Context, competitionID int) ([]*models.Ranking, error) {
	defer r.lock()()
	set := r.state().rankings[competitionID]
	out := make([]*models.Ranking, len(set))
	for i, rk := range set {
		c := *rk
		out[i] = &c
	}
	return out, nil
}

type memRewardRepository struct{ *view }

// rewardSlot mirrors the per-table (competition, participant[, skill]) unique keys.
func rewardSlot(t *models.RewardTransaction) string {
	slot := string(t.Category) + "/" + strconv.Itoa(t.CompetitionID) + "/" + strconv.Itoa(t.ParticipantID)
	if t.Category == models.RewardSkill {
		slot += "/" + t.SkillName
	}
	return slot
}

func (r *memRewardRepository) CreateTransaction(ctx context.Context, t *models.RewardTransaction) error {
	defer r.lock()()
	st := r.state()
	switch t.Category {
	case models.RewardCredit, models.RewardXP, models.RewardSkill:
	default:
		return fmt.Errorf("unknown reward category %q", t.Category)
	}
	if t.Category == models.RewardSkill && t.Amount == 0 {
		return fmt.Errorf("create SKILL reward: amount must not be zero")
	}
	if _, dup := st.rewards[t.IdempotencyKey]; dup {
		return fmt.Errorf("%w: idempotency_key", ErrUniqueViolation)
	}
	slot := rewardSlot(t)
	if _, dup := st.rewardSlots[slot]; dup {
		return fmt.Errorf("%w: %s", ErrUniqueViolation, slot)
	}
	t.ID = st.id()
	t.CreatedAt = time.Now().UTC()
	c := *t
	st.rewards[t.IdempotencyKey] = &c
	st.rewardSlots[slot] = struct{}{}
	return nil
}

func (r *memRewardRepository) ListTransactions(ctx context.Context, competitionID int) ([]*models.RewardTransaction, error) {
	defer r.lock()()
	var out []*models.RewardTransaction
	for _, t := range r.state().rewards {
		if t.CompetitionID == competitionID {
			c := *t
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IdempotencyKey < out[j].IdempotencyKey })
	return out, nil
}

func (r *memRewardRepository) CreateAchievement(ctx context.Context, a *models.Achievement) error {
	defer r.lock()()
	st := r.state()
	key := fmt.Sprintf("%d/%d/%s", a.CompetitionID, a.ParticipantID, a.Badge)
	if _, ok := st.achievements[key]; ok {
		return fmt.Errorf("%w: achievements_competition_participant_badge_key", ErrUniqueViolation)
	}
	a.ID = st.id()
	a.CreatedAt = time.Now().UTC()
	c := *a
	st.achievements[key] = &c
	return nil
}

func (r *memRewardRepository) ListAchievements(ctx context.Context, competitionID int) ([]*models.Achievement, error) {
	defer r.lock()()
	var out []*models.Achievement
	for _, a := range r.state().achievements {
		if a.CompetitionID == competitionID {
			c := *a
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ParticipantID != out[j].ParticipantID {
			return out[i].ParticipantID < out[j].ParticipantID
		}
		return out[i].Badge < out[j].Badge
	})
	return out, nil
}

type memTaskRepository struct{ *view }

func (r *memTaskRepository) Create(ctx context.Context, t *models.GenerationTask) error {
	defer r.lock()()
	st := r.state()
	if _, ok := st.tasks[t.ID]; ok {
		return fmt.Errorf("%w: generation_tasks_pkey", ErrUniqueViolation)
	}
	if !t.Status.Terminal() {
		for _, existing := range st.tasks {
			if existing.CompetitionID == t.CompetitionID && !existing.Status.Terminal() {
				return fmt.Errorf("%w: uq_generation_tasks_active", ErrUniqueViolation)
			}
		}
	}
	st.tasks[t.ID] = cloneTask(t)
	return nil
}

func (r *memTaskRepository) GetByID(ctx context.Context, id string) (*models.GenerationTask, error) {
	defer r.lock()()
	t, ok := r.state().tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return cloneTask(t), nil
}

func (r *memTaskRepository) GetActive(ctx context.Context, competitionID int) (*models.GenerationTask, error) {
	defer r.lock()()
	var found *models.GenerationTask
	for _, t := range r.state().tasks {
		if t.CompetitionID == competitionID && !t.Status.Terminal() {
			if found == nil || t.CreatedAt.After(found.CreatedAt) {
				found = t
			}
		}
	}
	if found == nil {
		return nil, ErrTaskNotFound
	}
	return cloneTask(found), nil
}

func (r *memTaskRepository) GetLatestFinished(ctx context.Context, competitionID int) (*models.GenerationTask, error) {
	defer r.lock()()
	var found *models.GenerationTask
	for _, t := range r.state().tasks {
		if t.CompetitionID != competitionID || !t.Status.Terminal() {
			continue
		}
		if found == nil || t.UpdatedAt.After(found.UpdatedAt) ||
			(t.UpdatedAt.Equal(found.UpdatedAt) && t.CreatedAt.After(found.CreatedAt)) {
			found = t
		}
	}
	if found == nil {
		return nil, ErrTaskNotFound
	}
	return cloneTask(found), nil
}

func (r *memTaskRepository) Update(ctx context.Context, t *models.GenerationTask) error {
	defer r.lock()()
	st := r.state()
	if _, ok := st.tasks[t.ID]; !ok {
		return ErrTaskNotFound
	}
	st.tasks[t.ID] = cloneTask(t)
	return nil
}

func (r *memTaskRepository) ListStale(ctx context.Context, updatedBefore time.Time) ([]*models.GenerationTask, error) {
	defer r.lock()()
	var out []*models.GenerationTask
	for _, t := range r.state().tasks {
		if !t.Status.Terminal() && t.UpdatedAt.Before(updatedBefore) {
			out = append(out, cloneTask(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
