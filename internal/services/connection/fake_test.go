package connection

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/connection-engine/internal/lib/apperr"
	"github.com/magabrotheeeer/connection-engine/internal/models"
)

// memRepo хранит данные в памяти. WithTx сериализует транзакции и
// восстанавливает снимок состояния при ошибке.
type memRepo struct {
	txMu         sync.Mutex
	mu           sync.Mutex
	users        map[string]models.User
	entitlements map[string]models.Entitlement
	requests     map[string]models.ConnectionRequest
	failOn       string
	clock        time.Time
}

func newMemRepo() *memRepo {
	return &memRepo{
		users:        map[string]models.User{},
		entitlements: map[string]models.Entitlement{},
		requests:     map[string]models.ConnectionRequest{},
		clock:        time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}
}

func (r *memRepo) addUser(uid string, maxConnections, used int, expiry time.Time) {
	u := models.User{UID: uid, Name: "Name " + uid, Email: uid + "@example.com", ConnectionsMade: used}
	if maxConnections > 0 {
		entID := "ent-" + uid
		r.entitlements[entID] = models.Entitlement{ID: entID, MaxConnections: maxConnections, Status: models.EntitlementStatusVerified}
		u.ActiveEntitlementID = &entID
		u.PlanExpiry = &expiry
	}
	r.users[uid] = u
}

func (r *memRepo) fail(method string) error {
	if r.failOn == method {
		return fmt.Errorf("%s: injected failure", method)
	}
	return nil
}

func (r *memRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.Lock()
	users := maps.Clone(r.users)
	requests := maps.Clone(r.requests)
	r.mu.Unlock()

	if err := fn(ctx); err != nil {
		r.mu.Lock()
		r.users = users
		r.requests = requests
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *memRepo) GetUser(_ context.Context, uid string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("GetUser"); err != nil {
		return nil, err
	}
	u, ok := r.users[uid]
	if !ok {
		return nil, apperr.ErrUserNotFound
	}
	return &u, nil
}

func (r *memRepo) GetUserForUpdate(ctx context.Context, uid string) (*models.User, error) {
	return r.GetUser(ctx, uid)
}

func (r *memRepo) GetEntitlement(_ context.Context, id string) (*models.Entitlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entitlements[id]
	if !ok {
		return nil, apperr.ErrEntitlementNotFound
	}
	return &e, nil
}

func (r *memRepo) HasPendingRequest(_ context.Context, from, to string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, req := range r.requests {
		if req.FromUserID == from && req.ToUserID == to && req.Status == models.StatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) CreateConnectionRequest(_ context.Context, from, to string) (*models.ConnectionRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("CreateConnectionRequest"); err != nil {
		return nil, err
	}
	r.clock = r.clock.Add(time.Second)
	req := models.ConnectionRequest{
		ID: uuid.NewString(), FromUserID: from, ToUserID: to,
		Status: models.StatusPending, CreatedAt: r.clock, UpdatedAt: r.clock,
	}
	r.requests[req.ID] = req
	return &req, nil
}

func (r *memRepo) IncrementConnectionsMade(_ context.Context, uid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("IncrementConnectionsMade"); err != nil {
		return err
	}
	u, ok := r.users[uid]
	if !ok {
		return apperr.ErrUserNotFound
	}
	u.ConnectionsMade++
	r.users[uid] = u
	return nil
}

func (r *memRepo) SetConnectionsMade(_ context.Context, uid string, value int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("SetConnectionsMade"); err != nil {
		return err
	}
	u, ok := r.users[uid]
	if !ok {
		return apperr.ErrUserNotFound
	}
	u.ConnectionsMade = value
	r.users[uid] = u
	return nil
}

func (r *memRepo) GetConnectionRequestForUpdate(_ context.Context, id string) (*models.ConnectionRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, apperr.ErrRequestNotFound
	}
	return &req, nil
}

func (r *memRepo) UpdateConnectionStatus(_ context.Context, id string, expected, next models.ConnectionStatus) (*models.ConnectionRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok || req.Status != expected {
		return nil, apperr.ErrInvalidState
	}
	r.clock = r.clock.Add(time.Second)
	req.Status = next
	req.UpdatedAt = r.clock
	r.requests[id] = req
	return &req, nil
}

func (r *memRepo) ListIncoming(_ context.Context, uid string) ([]*models.IncomingRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.IncomingRequest
	for _, req := range r.requests {
		if req.ToUserID == uid && req.Status == models.StatusPending {
			out = append(out, &models.IncomingRequest{ConnectionRequest: req})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memRepo) ListConnected(_ context.Context, uid string) ([]*models.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Connection
	for _, req := range r.requests {
		if req.Status != models.StatusAccepted || (req.FromUserID != uid && req.ToUserID != uid) {
			continue
		}
		other := req.FromUserID
		if other == uid {
			other = req.ToUserID
		}
		summary := models.ProfileSummary{UID: other, Name: models.UnknownUserName}
		if u, ok := r.users[other]; ok {
			summary.Name = u.Name
		}
		out = append(out, &models.Connection{ID: req.ID, ConnectedAt: req.UpdatedAt, ConnectedUser: summary})
	}
	return out, nil
}

func (r *memRepo) CountDashboard(_ context.Context, uid string) (*models.Dashboard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("CountDashboard"); err != nil {
		return nil, err
	}
	d := &models.Dashboard{}
	for _, req := range r.requests {
		if req.FromUserID != uid && req.ToUserID != uid {
			continue
		}
		switch req.Status {
		case models.StatusPending:
			d.PendingRequests++
		case models.StatusAccepted:
			d.TotalConnections++
		}
	}
	return d, nil
}

func (r *memRepo) used(uid string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[uid].ConnectionsMade
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.ConnectionEvent
	err    error
}

func (n *recordingNotifier) Publish(routingKey string, message any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	ev, ok := message.(models.ConnectionEvent)
	if !ok {
		return errors.New("unexpected message type")
	}
	if ev.Type != routingKey {
		return errors.New("routing key mismatch")
	}
	n.events = append(n.events, ev)
	return nil
}
