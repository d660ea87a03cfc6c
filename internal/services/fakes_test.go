package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/projecthub/projecthub/internal/db/models"
	"github.com/projecthub/projecthub/internal/db/repositories"
)

// ---------------------------------------------------------------------------
// In-memory stores
// ---------------------------------------------------------------------------

type memTeams struct {
	mu       sync.Mutex
	teams    map[string]*models.Team
	members  map[string]map[string]*models.TeamMember
	projects map[string][]string
	users    *memUsers
	seq      int
}

func newMemTeams(users *memUsers) *memTeams {
	return &memTeams{
		teams:    map[string]*models.Team{},
		members:  map[string]map[string]*models.TeamMember{},
		projects: map[string][]string{},
		users:    users,
	}
}

func (m *memTeams) CreateTeam(_ context.Context, team *models.Team, members []repositories.InitialMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	team.ID = fmt.Sprintf("team-%d", m.seq)
	team.CreatedBy = team.OwnerID
	team.CreatedAt = time.Now()
	team.UpdatedAt = team.CreatedAt
	cp := *team
	m.teams[team.ID] = &cp
	m.members[team.ID] = map[string]*models.TeamMember{
		team.OwnerID: {TeamID: team.ID, UserID: team.OwnerID, Role: "admin", JoinedAt: team.CreatedAt},
	}
	for _, im := range members {
		if _, ok := m.members[team.ID][im.UserID]; ok {
			continue
		}
		m.members[team.ID][im.UserID] = &models.TeamMember{TeamID: team.ID, UserID: im.UserID, Role: im.Role, JoinedAt: team.CreatedAt}
	}
	return nil
}

func (m *memTeams) GetTeamByID(_ context.Context, teamID string) (*models.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.teams[teamID]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *memTeams) GetTeamDetail(ctx context.Context, teamID string) (*models.TeamDetail, error) {
	t, _ := m.GetTeamByID(ctx, teamID)
	if t == nil {
		return nil, nil
	}
	d := &models.TeamDetail{Team: *t, Members: []models.TeamMemberView{}, Projects: []models.ProjectSummary{}}
	for _, mem := range m.memberList(teamID) {
		u, _ := m.users.GetUserByID(ctx, mem.UserID)
		view := models.TeamMemberView{User: models.MemberUser{ID: mem.UserID}, Role: mem.Role, JoinedAt: mem.JoinedAt}
		if u != nil {
			view.User.Name, view.User.Email = u.Name, u.Email
		}
		d.Members = append(d.Members, view)
	}
	return d, nil
}

func (m *memTeams) memberList(teamID string) []models.TeamMember {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.TeamMember, 0, len(m.members[teamID]))
	for _, mem := range m.members[teamID] {
		out = append(out, *mem)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (m *memTeams) ListTeamsForUser(_ context.Context, userID string) ([]*models.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Team, 0)
	for id, t := range m.teams {
		if _, ok := m.members[id][userID]; ok || t.OwnerID == userID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memTeams) UpdateTeam(_ context.Context, team *models.Team) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.teams[team.ID]; !ok {
		return repositories.ErrNotFound
	}
	cp := *team
	m.teams[team.ID] = &cp
	return nil
}

func (m *memTeams) SetTeamProjects(_ context.Context, teamID string, projectIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[teamID] = projectIDs
	return nil
}

func (m *memTeams) DeleteTeam(_ context.Context, teamID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.teams[teamID]; !ok {
		return repositories.ErrNotFound
	}
	delete(m.teams, teamID)
	delete(m.members, teamID)
	return nil
}

func (m *memTeams) AddMember(_ context.Context, teamID, userID, role string) (*models.TeamMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.teams[teamID]; !ok {
		return nil, repositories.ErrInvalidReference
	}
	if _, ok := m.members[teamID][userID]; ok {
		return nil, repositories.ErrAlreadyMember
	}
	mem := &models.TeamMember{TeamID: teamID, UserID: userID, Role: role, JoinedAt: time.Now()}
	m.members[teamID][userID] = mem
	cp := *mem
	return &cp, nil
}

func (m *memTeams) RemoveMember(_ context.Context, teamID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.members[teamID][userID]; !ok {
		return false, nil
	}
	delete(m.members[teamID], userID)
	return true, nil
}

func (m *memTeams) UpdateMemberRole(_ context.Context, teamID, userID, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.members[teamID][userID]
	if !ok {
		return repositories.ErrMemberNotFound
	}
	mem.Role = role
	return nil
}

func (m *memTeams) GetMember(_ context.Context, teamID, userID string) (*models.TeamMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.members[teamID][userID]
	if !ok {
		return nil, nil
	}
	cp := *mem
	return &cp, nil
}

type memUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
	seq   int
}

func newMemUsers() *memUsers {
	return &memUsers{users: map[string]*models.User{}}
}

func (m *memUsers) add(name, email, role string) *models.User {
	u := &models.User{Name: name, Email: email, Role: role}
	if err := m.CreateUser(context.Background(), u); err != nil {
		panic(err)
	}
	return u
}

func (m *memUsers) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user.Email = repositories.NormalizeEmail(user.Email)
	for _, u := range m.users {
		if u.Email == user.Email {
			return repositories.ErrEmailTaken
		}
	}
	m.seq++
	user.ID = fmt.Sprintf("user-%d", m.seq)
	if user.Role == "" {
		user.Role = "member"
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memUsers) GetUserByID(_ context.Context, userID string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = repositories.NormalizeEmail(email)
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memUsers) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (m *memUsers) UpdateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return repositories.ErrNotFound
	}
	user.Email = repositories.NormalizeEmail(user.Email)
	for id, u := range m.users {
		if id != user.ID && u.Email == user.Email {
			return repositories.ErrEmailTaken
		}
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memUsers) UpdateAvatar(_ context.Context, userID, avatarURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	u.AvatarURL = &avatarURL
	return nil
}

func (m *memUsers) DeleteUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return repositories.ErrNotFound
	}
	delete(m.users, userID)
	return nil
}

func (m *memUsers) ListUsers(_ context.Context, search string, limit, offset int) ([]*models.User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	search = strings.ToLower(search)
	var all []*models.User
	for _, u := range m.users {
		if strings.Contains(strings.ToLower(u.Name), search) || strings.Contains(u.Email, search) {
			cp := *u
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

type memInvitations struct {
	mu    sync.Mutex
	invs  []*models.Invitation
	teams *memTeams
	seq   int
}

func (m *memInvitations) UpsertInvitation(_ context.Context, inv *models.Invitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv.Email = repositories.NormalizeEmail(inv.Email)
	inv.CreatedAt = time.Now()
	for _, existing := range m.invs {
		if existing.TeamID == inv.TeamID && existing.Email == inv.Email {
			inv.ID = existing.ID
			*existing = *inv
			return nil
		}
	}
	m.seq++
	inv.ID = fmt.Sprintf("inv-%d", m.seq)
	cp := *inv
	m.invs = append(m.invs, &cp)
	return nil
}

func (m *memInvitations) GetInvitationPreview(_ context.Context, token string, now time.Time) (*models.InvitationPreview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invs {
		if inv.Token == token && inv.ExpiresAt.After(now) {
			p := &models.InvitationPreview{Email: inv.Email, Role: inv.Role, TeamID: inv.TeamID, ExpiresAt: inv.ExpiresAt}
			if t, _ := m.teams.GetTeamByID(context.Background(), inv.TeamID); t != nil {
				p.TeamName = t.Name
			}
			return p, nil
		}
	}
	return nil, nil
}

func (m *memInvitations) ListPendingInvitations(_ context.Context, teamID string, now time.Time) ([]*models.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Invitation, 0)
	for _, inv := range m.invs {
		if inv.TeamID == teamID && inv.ExpiresAt.After(now) {
			cp := *inv
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memInvitations) RedeemInvitation(ctx context.Context, token, email, userID string, now time.Time) (*models.Invitation, error) {
	m.mu.Lock()
	var found *models.Invitation
	for i, inv := range m.invs {
		if inv.Token == token && inv.ExpiresAt.After(now) && inv.Email == repositories.NormalizeEmail(email) {
			found = inv
			m.invs = append(m.invs[:i], m.invs[i+1:]...)
			break
		}
	}
	m.mu.Unlock()
	if found == nil {
		return nil, repositories.ErrInvitationNotFound
	}
	if _, err := m.teams.AddMember(ctx, found.TeamID, userID, found.Role); err != nil && err != repositories.ErrAlreadyMember {
		return nil, err
	}
	return found, nil
}

func (m *memInvitations) DeleteInvitation(_ context.Context, teamID, invitationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, inv := range m.invs {
		if inv.ID == invitationID && inv.TeamID == teamID {
			m.invs = append(m.invs[:i], m.invs[i+1:]...)
			return nil
		}
	}
	return repositories.ErrInvitationNotFound
}

func (m *memInvitations) all() []models.Invitation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Invitation, 0, len(m.invs))
	for _, inv := range m.invs {
		out = append(out, *inv)
	}
	return out
}

type memNotifications struct {
	mu    sync.Mutex
	items []*models.Notification
	err   error
}

func (m *memNotifications) CreateNotification(_ context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	n.ID = fmt.Sprintf("notif-%d", len(m.items)+1)
	n.CreatedAt = time.Now()
	cp := *n
	m.items = append(m.items, &cp)
	return nil
}

func (m *memNotifications) ListForUser(_ context.Context, userID string, unreadOnly bool) ([]*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Notification, 0)
	for _, n := range m.items {
		if n.UserID == userID && (!unreadOnly || !n.Read) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *memNotifications) UnreadCount(ctx context.Context, userID string) (int, error) {
	items, _ := m.ListForUser(ctx, userID, true)
	return len(items), nil
}

func (m *memNotifications) MarkRead(_ context.Context, id, userID string) (*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.items {
		if n.ID == id && n.UserID == userID {
			n.Read = true
			return n, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *memNotifications) MarkAllRead(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, item := range m.items {
		if item.UserID == userID && !item.Read {
			item.Read = true
			n++
		}
	}
	return n, nil
}

func (m *memNotifications) DeleteNotification(_ context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, n := range m.items {
		if n.ID == id && n.UserID == userID {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (m *memNotifications) forUser(userID string) []models.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Notification
	for _, n := range m.items {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Recording mailer
// ---------------------------------------------------------------------------

type mailCall struct {
	Kind string
	To   string
	Args []string
}

type fakeMailer struct {
	mu    sync.Mutex
	calls []mailCall
}

func (f *fakeMailer) record(kind, to string, args ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, mailCall{Kind: kind, To: to, Args: args})
}

func (f *fakeMailer) sent() []mailCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mailCall(nil), f.calls...)
}

func (f *fakeMailer) TeamAdded(to, name, teamID, teamName, inviterName, role string) {
	f.record("team_added", to, name, teamID, teamName, inviterName, role)
}

func (f *fakeMailer) TeamInvitation(to, teamName, inviterName, token string) {
	f.record("team_invitation", to, teamName, inviterName, token)
}

func (f *fakeMailer) Welcome(to, name string) { f.record("welcome", to, name) }

func (f *fakeMailer) PasswordReset(to, token string) { f.record("password_reset", to, token) }

func (f *fakeMailer) TaskAssigned(to, name, taskID, taskTitle, projectName string) {
	f.record("task_assigned", to, name, taskID, taskTitle, projectName)
}

func (f *fakeMailer) ProjectInvitation(to, name, projectID, projectName, inviterName string) {
	f.record("project_invitation", to, name, projectID, projectName, inviterName)
}

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

type fixture struct {
	users         *memUsers
	teams         *memTeams
	invitations   *memInvitations
	notifications *memNotifications
	projects      *memProjects
	mailer        *fakeMailer
	svc           *TeamService
}

func newFixture() *fixture {
	users := newMemUsers()
	teams := newMemTeams(users)
	f := &fixture{
		users:         users,
		teams:         teams,
		invitations:   &memInvitations{teams: teams},
		notifications: &memNotifications{},
		projects:      newMemProjects(),
		mailer:        &fakeMailer{},
	}
	f.svc = NewTeamService(f.teams, f.users, f.invitations, f.notifications, f.projects, f.mailer, 0)
	return f
}

// team creates a team owned by owner and returns its id.
func (f *fixture) team(owner *models.User, name string) string {
	team := &models.Team{Name: name, OwnerID: owner.ID}
	if err := f.teams.CreateTeam(context.Background(), team, nil); err != nil {
		panic(err)
	}
	return team.ID
}
