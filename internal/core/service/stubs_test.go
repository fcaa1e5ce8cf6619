package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/protomind/user-service/internal/core/domain"
	"github.com/protomind/user-service/internal/core/ports"
)

// ---------------------------------------------------------------------------
// In-memory stub repositories
// ---------------------------------------------------------------------------

type stubUserRepo struct {
	users     map[string]*domain.User
	nextID    int
	lastQuery ports.ListUsersQuery
	createErr error
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*domain.User), nextID: 100}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	clone.Roles = append([]domain.Role(nil), u.Roles...)
	return &clone
}

// seed stores u as-is; the caller picks the id.
func (r *stubUserRepo) seed(u *domain.User) *domain.User {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(len(r.users)) * time.Minute)
	}
	r.users[u.ID] = cloneUser(u)
	return u
}

func (r *stubUserRepo) Create(_ context.Context, u *domain.User) error {
	if r.createErr != nil {
		return r.createErr
	}
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return domain.ErrUserExists
		}
	}
	r.nextID++
	u.ID = strconv.Itoa(r.nextID)
	r.users[u.ID] = cloneUser(u)
	return nil
}

func (r *stubUserRepo) FindByID(_ context.Context, id string, v domain.Visibility) (*domain.User, error) {
	u, ok := r.users[id]
	if !ok || !u.Visible(v) {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

// List applies the same filters the real stores translate into queries.
func (r *stubUserRepo) List(_ context.Context, q ports.ListUsersQuery) ([]*domain.User, int64, error) {
	r.lastQuery = q

	var matched []*domain.User
	for _, u := range r.users {
		if !u.Visible(q.Visibility) {
			continue
		}
		if q.RestrictIDs && !containsID(q.OnlyIDs, u.ID) {
			continue
		}
		if containsID(q.ExcludeIDs, u.ID) {
			continue
		}
		if holdsAny(u, q.ExcludeRoles) {
			continue
		}
		if q.Filter.Role != "" && !u.HasRole(q.Filter.Role) {
			continue
		}
		if q.Filter.Email != "" && u.Email != q.Filter.Email {
			continue
		}
		if q.Filter.Name != "" && !strings.Contains(strings.ToLower(u.Name), strings.ToLower(q.Filter.Name)) {
			continue
		}
		if s := strings.ToLower(q.Filter.Search); s != "" &&
			!strings.Contains(strings.ToLower(u.Name), s) && !strings.Contains(strings.ToLower(u.Email), s) {
			continue
		}
		matched = append(matched, cloneUser(u))
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := q.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + q.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (r *stubUserRepo) SetAvatar(_ context.Context, id string, avatar *domain.Media) error {
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.Avatar = avatar
	return nil
}

func (r *stubUserRepo) SetPassword(_ context.Context, id, hash string, verifiedAt time.Time) error {
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.PasswordHash = hash
	u.EmailVerifiedAt = &verifiedAt
	return nil
}

func (r *stubUserRepo) SetBlocked(_ context.Context, id string, blocked bool) error {
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.Blocked = blocked
	return nil
}

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func holdsAny(u *domain.User, roles []domain.Role) bool {
	for _, r := range roles {
		if u.HasRole(r) {
			return true
		}
	}
	return false
}

type stubRoleRepo struct {
	records map[domain.Role]*domain.RoleRecord
	calls   []domain.Role
	guards  []string
}

func newStubRoleRepo() *stubRoleRepo {
	return &stubRoleRepo{records: make(map[domain.Role]*domain.RoleRecord)}
}

func (r *stubRoleRepo) Ensure(_ context.Context, role domain.Role, guard string) (*domain.RoleRecord, error) {
	r.calls = append(r.calls, role)
	r.guards = append(r.guards, guard)
	if rec, ok := r.records[role]; ok {
		return rec, nil
	}
	rec := &domain.RoleRecord{ID: "role-" + role.String(), Name: role, Guard: guard}
	r.records[role] = rec
	return rec, nil
}

type stubLinkRepo struct {
	users     *stubUserRepo
	links     []domain.ManagerSecretary
	createErr error
}

func (r *stubLinkRepo) Create(_ context.Context, link *domain.ManagerSecretary) error {
	if r.createErr != nil {
		return r.createErr
	}
	link.ID = strconv.Itoa(len(r.links) + 1)
	r.links = append(r.links, *link)
	return nil
}

func (r *stubLinkRepo) SecretaryIDs(_ context.Context, managerID string, v domain.Visibility) ([]string, error) {
	var ids []string
	for _, l := range r.links {
		if l.ManagerID != managerID {
			continue
		}
		u, ok := r.users.users[l.SecretaryID]
		if !ok || !u.Visible(v) {
			continue
		}
		ids = append(ids, l.SecretaryID)
	}
	return ids, nil
}

func (r *stubLinkRepo) IsSecretaryOf(_ context.Context, managerID, secretaryID string) (bool, error) {
	for _, l := range r.links {
		if l.ManagerID == managerID && l.SecretaryID == secretaryID {
			return true, nil
		}
	}
	return false, nil
}

// stubTx snapshots both stores and restores them when fn fails.
type stubTx struct {
	users   *stubUserRepo
	links   *stubLinkRepo
	commits int
}

func (t *stubTx) WithinTx(ctx context.Context, fn func(ctx context.Context, stores ports.TxStores) error) error {
	usersBefore := make(map[string]*domain.User, len(t.users.users))
	for id, u := range t.users.users {
		usersBefore[id] = u
	}
	linksBefore := append([]domain.ManagerSecretary(nil), t.links.links...)

	if err := fn(ctx, ports.TxStores{Users: t.users, ManagerSecretaries: t.links}); err != nil {
		t.users.users = usersBefore
		t.links.links = linksBefore
		return err
	}
	t.commits++
	return nil
}

type stubMediaStore struct {
	puts []string
	err  error
}

func (m *stubMediaStore) Put(_ context.Context, ownerID, collection string, upload ports.AvatarUpload) (*domain.Media, error) {
	if m.err != nil {
		return nil, m.err
	}
	data, _ := io.ReadAll(upload.Content)
	m.puts = append(m.puts, ownerID+"/"+collection)
	return &domain.Media{
		ID:          "media-" + ownerID,
		Collection:  collection,
		FileName:    upload.FileName,
		ContentType: upload.ContentType,
		Size:        int64(len(data)),
	}, nil
}

type sentNotification struct {
	user     *domain.User
	password string
}

type stubNotifier struct {
	sent []sentNotification
	err  error
}

func (n *stubNotifier) SendConfirmEmail(_ context.Context, user *domain.User, plainPassword string) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentNotification{user: cloneUser(user), password: plainPassword})
	return nil
}

type stubConfirmationStore struct {
	codes    map[string]string
	issueErr error
}

func newStubConfirmationStore() *stubConfirmationStore {
	return &stubConfirmationStore{codes: make(map[string]string)}
}

func (s *stubConfirmationStore) Issue(_ context.Context, email string) (string, error) {
	if s.issueErr != nil {
		return "", s.issueErr
	}
	code := "code-" + strconv.Itoa(len(s.codes)+1)
	s.codes[email] = code
	return code, nil
}

func (s *stubConfirmationStore) Consume(_ context.Context, email, code string) (bool, error) {
	if s.codes[email] != code || code == "" {
		return false, nil
	}
	delete(s.codes, email)
	return true, nil
}

type stubMailQueue struct {
	mails []domain.Mail
	err   error
}

func (q *stubMailQueue) Enqueue(_ context.Context, m domain.Mail) error {
	if q.err != nil {
		return q.err
	}
	q.mails = append(q.mails, m)
	return nil
}

var errStoreDown = errors.New("store down")
