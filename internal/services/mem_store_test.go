package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"taskflow/internal/models"
	"taskflow/internal/repositories"
)

// memStore is an in-memory repositories.Store. Transactions run one at a
// time; WithTx snapshots the data and restores it when fn fails.
type memStore struct {
	mu     *sync.Mutex
	txMu   *sync.Mutex
	data   *memData
	inTx   bool
	hooks  *memHooks
	nextID *int64
}

type memData struct {
	tasks     map[int64]*models.Task
	users     map[int64]*models.User
	userTasks map[int64][]int64
	links     map[string]*repositories.TelegramLink
}

// memHooks inject failures into single repository calls.
type memHooks struct {
	addAssignedTask    func(userID, taskID int64) error
	updateIfAssignment func(task *models.Task) error
}

func newMemStore() *memStore {
	var id int64
	return &memStore{
		mu:   &sync.Mutex{},
		txMu: &sync.Mutex{},
		data: &memData{
			tasks:     map[int64]*models.Task{},
			users:     map[int64]*models.User{},
			userTasks: map[int64][]int64{},
			links:     map[string]*repositories.TelegramLink{},
		},
		hooks:  &memHooks{},
		nextID: &id,
	}
}

func (s *memStore) id() int64 {
	*s.nextID++
	return *s.nextID
}

func (s *memStore) Tasks() repositories.TaskRepository                 { return &memTasks{s} }
func (s *memStore) Users() repositories.UserRepository                 { return &memUsers{s} }
func (s *memStore) TelegramLinks() repositories.TelegramLinkRepository { return &memLinks{s} }

func (s *memStore) WithTx(ctx context.Context, fn func(tx repositories.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snap := s.data.clone()
	s.mu.Unlock()

	tx := *s
	tx.inTx = true
	if err := fn(&tx); err != nil {
		s.mu.Lock()
		*s.data = *snap
		s.mu.Unlock()
		return err
	}
	return nil
}

func (d *memData) clone() *memData {
	out := &memData{
		tasks:     make(map[int64]*models.Task, len(d.tasks)),
		users:     make(map[int64]*models.User, len(d.users)),
		userTasks: make(map[int64][]int64, len(d.userTasks)),
		links:     make(map[string]*repositories.TelegramLink, len(d.links)),
	}
	for id, t := range d.tasks {
		out.tasks[id] = t.Clone()
	}
	for id, u := range d.users {
		cp := *u
		out.users[id] = &cp
	}
	for id, ts := range d.userTasks {
		out.userTasks[id] = append([]int64(nil), ts...)
	}
	for code, l := range d.links {
		cp := *l
		out.links[code] = &cp
	}
	return out
}

// seedUser stores u and returns its id.
func (s *memStore) seedUser(u models.User) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.id()
	}
	if u.Status == "" {
		u.Status = models.UserActive
	}
	u.AssignedTasks = nil
	s.data.users[u.ID] = &u
	return u.ID
}

func (s *memStore) task(id int64) *models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.tasks[id].Clone()
}

func (s *memStore) backRefs(userID int64) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64{}, s.data.userTasks[userID]...)
}

type memTasks struct{ s *memStore }

func (r *memTasks) Create(_ context.Context, task *models.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	task.ID = r.s.id()
	r.s.data.tasks[task.ID] = task.Clone()
	return nil
}

func (r *memTasks) FindByID(_ context.Context, id int64) (*models.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.data.tasks[id]
	if !ok {
		return nil, models.NotFoundError("task")
	}
	return t.Clone(), nil
}

func (r *memTasks) FindByIDForUpdate(ctx context.Context, id int64) (*models.Task, error) {
	return r.FindByID(ctx, id)
}

func (r *memTasks) FindAll(_ context.Context, f models.TaskFilter) ([]models.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Task
	for _, t := range r.s.sortedTasks() {
		if f.Status != nil && t.Status != *f.Status {
			continue
		}
		if f.Priority != nil && t.Priority != *f.Priority {
			continue
		}
		if f.Role != nil && t.AssignedRole != *f.Role {
			continue
		}
		if f.AssigneeID != nil && !t.IsAssignedTo(*f.AssigneeID) {
			continue
		}
		if f.Query != "" && !matchesQuery(t, f.Query) {
			continue
		}
		out = append(out, *t.Clone())
	}
	return out, nil
}

// matchesQuery mirrors the repository's title/description ILIKE search.
func matchesQuery(t *models.Task, q string) bool {
	q = strings.ToLower(q)
	return strings.Contains(strings.ToLower(t.Title), q) || strings.Contains(strings.ToLower(t.Description), q)
}

// sortedTasks orders by created_at DESC, id DESC. Caller holds the lock.
func (s *memStore) sortedTasks() []*models.Task {
	out := make([]*models.Task, 0, len(s.data.tasks))
	for _, t := range s.data.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (r *memTasks) Update(_ context.Context, task *models.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.tasks[task.ID]; !ok {
		return models.NotFoundError("task")
	}
	r.s.data.tasks[task.ID] = task.Clone()
	return nil
}

func (r *memTasks) UpdateIfAssignment(_ context.Context, task *models.Task, expected models.AssignmentStatus) error {
	if h := r.s.hooks.updateIfAssignment; h != nil {
		if err := h(task); err != nil {
			return err
		}
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.data.tasks[task.ID]
	if !ok || cur.AssignmentStatus != expected {
		return repositories.ErrStaleWrite
	}
	r.s.data.tasks[task.ID] = task.Clone()
	return nil
}

func (r *memTasks) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.tasks[id]; !ok {
		return models.NotFoundError("task")
	}
	delete(r.s.data.tasks, id)
	for uid, ids := range r.s.data.userTasks {
		r.s.data.userTasks[uid] = without(ids, id)
	}
	return nil
}

func (r *memTasks) ListPendingCandidates(_ context.Context, user *models.User) ([]models.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Task
	for _, t := range r.s.sortedTasks() {
		if t.AssignmentStatus == models.AssignmentPending && (t.IsAssignedTo(user.ID) || t.AssignedRole == user.Role) {
			out = append(out, *t.Clone())
		}
	}
	return out, nil
}

func (r *memTasks) ListByAssignee(_ context.Context, userID int64) ([]models.Task, error) {
	id := userID
	return r.FindAll(context.Background(), models.TaskFilter{AssigneeID: &id})
}

func (r *memTasks) ListAcceptedBy(_ context.Context, userID int64) ([]models.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Task
	for _, id := range r.s.data.userTasks[userID] {
		if t, ok := r.s.data.tasks[id]; ok {
			out = append(out, *t.Clone())
		}
	}
	return out, nil
}

func (r *memTasks) ListDueForReminder(_ context.Context, now time.Time, limit int) ([]models.Task, error) {
	return nil, nil
}

func (r *memTasks) SetNotified(_ context.Context, id int64, last time.Time, next *time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.data.tasks[id]
	if !ok {
		return models.NotFoundError("task")
	}
	t.LastNotified = &last
	t.NextNotification = next
	return nil
}

func (r *memTasks) Stats(_ context.Context, assigneeID *int64) (models.TaskStats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var st models.TaskStats
	for _, t := range r.s.data.tasks {
		if assigneeID != nil && !t.IsAssignedTo(*assigneeID) {
			continue
		}
		st.Total++
		switch t.Status {
		case models.StatusPending:
			st.Pending++
		case models.StatusInProgress:
			st.InProgress++
		case models.StatusCompleted:
			st.Completed++
		}
	}
	return st, nil
}

func (r *memTasks) StatsByAssignee(context.Context) ([]models.AssigneeStats, error) {
	return nil, nil
}

type memUsers struct{ s *memStore }

func (r *memUsers) get(id int64) (*models.User, error) {
	u, ok := r.s.data.users[id]
	if !ok {
		return nil, models.NotFoundError("user")
	}
	cp := *u
	cp.AssignedTasks = append([]int64{}, r.s.data.userTasks[id]...)
	return &cp, nil
}

func (r *memUsers) Create(_ context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.data.users {
		if u.Username == user.Username {
			return models.ConflictError("username already exists")
		}
		if u.Email == user.Email {
			return models.ConflictError("email already exists")
		}
	}
	user.ID = r.s.id()
	cp := *user
	r.s.data.users[user.ID] = &cp
	return nil
}

func (r *memUsers) FindByID(_ context.Context, id int64) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.get(id)
}

func (r *memUsers) FindByUsername(_ context.Context, username string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, u := range r.s.data.users {
		if u.Username == username {
			return r.get(id)
		}
	}
	return nil, models.NotFoundError("user")
}

func (r *memUsers) Update(_ context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.users[user.ID]; !ok {
		return models.NotFoundError("user")
	}
	cp := *user
	r.s.data.users[user.ID] = &cp
	return nil
}

func (r *memUsers) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.users[id]; !ok {
		return models.NotFoundError("user")
	}
	delete(r.s.data.users, id)
	delete(r.s.data.userTasks, id)
	return nil
}

func (r *memUsers) List(_ context.Context, limit, offset int) ([]models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := make([]int64, 0, len(r.s.data.users))
	for id := range r.s.data.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var out []models.User
	for i, id := range ids {
		if i < offset || len(out) >= limit {
			continue
		}
		u, _ := r.get(id)
		out = append(out, *u)
	}
	return out, nil
}

func (r *memUsers) Count(context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.data.users), nil
}

func (r *memUsers) ListActiveByRole(_ context.Context, role string) ([]models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.User
	for id, u := range r.s.data.users {
		if u.Role == role && u.IsActive() {
			cp, _ := r.get(id)
			out = append(out, *cp)
		}
	}
	return out, nil
}

func (r *memUsers) ListByIDs(_ context.Context, ids []int64) ([]models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.User
	for _, id := range ids {
		if u, err := r.get(id); err == nil {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *memUsers) AddAssignedTask(_ context.Context, userID, taskID int64) error {
	if h := r.s.hooks.addAssignedTask; h != nil {
		if err := h(userID, taskID); err != nil {
			return err
		}
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, id := range r.s.data.userTasks[userID] {
		if id == taskID {
			return nil
		}
	}
	r.s.data.userTasks[userID] = append(r.s.data.userTasks[userID], taskID)
	return nil
}

func (r *memUsers) RemoveAssignedTask(_ context.Context, userID, taskID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.data.userTasks[userID] = without(r.s.data.userTasks[userID], taskID)
	return nil
}

func (r *memUsers) UpdateTelegramLink(_ context.Context, userID, chatID int64, enable bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.data.users[userID]
	if !ok {
		return models.NotFoundError("user")
	}
	if chatID != 0 {
		for id, other := range r.s.data.users {
			if id != userID && other.TelegramChatID == chatID {
				return models.ConflictError("telegram chat link already exists")
			}
		}
	}
	u.TelegramChatID = chatID
	u.NotifyTelegram = enable
	return nil
}

func (r *memUsers) FindByChatID(_ context.Context, chatID int64) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, u := range r.s.data.users {
		if chatID != 0 && u.TelegramChatID == chatID {
			return r.get(id)
		}
	}
	return nil, models.NotFoundError("user")
}

type memLinks struct{ s *memStore }

func (r *memLinks) Create(_ context.Context, userID int64, code string, expiresAt time.Time) (*repositories.TelegramLink, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l := &repositories.TelegramLink{ID: r.s.id(), UserID: userID, Code: code, ExpiresAt: expiresAt}
	r.s.data.links[code] = l
	cp := *l
	return &cp, nil
}

func (r *memLinks) Consume(_ context.Context, code string, now time.Time) (*repositories.TelegramLink, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.data.links[code]
	if !ok || l.Used || !l.ExpiresAt.After(now) {
		return nil, models.NotFoundError("link code")
	}
	l.Used = true
	cp := *l
	return &cp, nil
}

func without(ids []int64, drop int64) []int64 {
	out := ids[:0:0]
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}
