package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"

	"github.com/dwellspace/dwell"
	"github.com/dwellspace/dwell/internal/domain"
	"github.com/dwellspace/dwell/internal/infra/gateway"
	restmiddleware "github.com/dwellspace/dwell/internal/present/rest/middleware"
	"github.com/dwellspace/dwell/internal/service"
	"github.com/dwellspace/dwell/internal/usecase"
)

const testSecret = "test-secret"

// --- mocks ---

type mockFavoriteRepo struct {
	mu       sync.Mutex
	records  map[string]domain.FavoriteRecord
	addCalls int
}

func newMockFavoriteRepo() *mockFavoriteRepo {
	return &mockFavoriteRepo{records: make(map[string]domain.FavoriteRecord)}
}

func (m *mockFavoriteRepo) ListByUser(ctx context.Context, userID string) ([]domain.FavoriteView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var views []domain.FavoriteView
	for _, record := range m.records {
		if record.UserID == userID {
			views = append(views, domain.FavoriteView{Record: record})
		}
	}
	return views, nil
}

func (m *mockFavoriteRepo) GetByUserAndProperty(ctx context.Context, userID, propertyID string) (domain.FavoriteRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[userID+"/"+propertyID]
	if !ok {
		return domain.FavoriteRecord{}, domain.NotFoundError{Resource: "favorite"}
	}
	return record, nil
}

func (m *mockFavoriteRepo) Add(ctx context.Context, userID, propertyID string) (domain.FavoriteRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addCalls++
	record := domain.FavoriteRecord{
		ID:         fmt.Sprintf("fav-%d", m.addCalls),
		UserID:     userID,
		PropertyID: propertyID,
	}
	m.records[userID+"/"+propertyID] = record
	return record, nil
}

func (m *mockFavoriteRepo) Remove(ctx context.Context, favoriteID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, record := range m.records {
		if record.ID == favoriteID {
			delete(m.records, key)
			break
		}
	}
	return nil
}

type mockGuestStore struct {
	mu   sync.Mutex
	sets map[string]map[string]struct{}
}

func newMockGuestStore() *mockGuestStore {
	return &mockGuestStore{sets: make(map[string]map[string]struct{})}
}

func (m *mockGuestStore) Load(ctx context.Context, guestID string) map[string]struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := make(map[string]struct{})
	for propertyID := range m.sets[guestID] {
		set[propertyID] = struct{}{}
	}
	return set
}

func (m *mockGuestStore) Save(ctx context.Context, guestID string, set map[string]struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets[guestID] = set
}

func (m *mockGuestStore) Clear(ctx context.Context, guestID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sets, guestID)
}

type mockPropertyRepo struct {
	properties map[string]domain.Property
}

func (m *mockPropertyRepo) Get(ctx context.Context, id string) (domain.Property, error) {
	property, ok := m.properties[id]
	if !ok {
		return domain.Property{}, domain.NotFoundError{Resource: "property"}
	}
	return property, nil
}

func (m *mockPropertyRepo) GetMany(ctx context.Context, ids []string) ([]domain.Property, error) {
	var found []domain.Property
	for _, id := range ids {
		if property, ok := m.properties[id]; ok {
			found = append(found, property)
		}
	}
	return found, nil
}

type mockNotifier struct{}

func (m *mockNotifier) Notify(ctx context.Context, subject, message string, kind dwell.NotificationKind) {
}

type mockSignal struct{}

func (m *mockSignal) Publish(ctx context.Context, channel string, event dwell.Event) error {
	return nil
}

// --- fixture ---

type testServer struct {
	e     *echo.Echo
	repo  *mockFavoriteRepo
	guest *mockGuestStore
}

func newTestServer() *testServer {
	repo := newMockFavoriteRepo()
	guest := newMockGuestStore()
	properties := &mockPropertyRepo{properties: map[string]domain.Property{
		"p1": {ID: "p1", Title: "Canal house", City: "Amsterdam", Price: 450000, Currency: "EUR"},
	}}

	favorites := usecase.NewFavoritesUsecase(
		repo,
		properties,
		guest,
		usecase.NewProcessingLedger(),
		&mockNotifier{},
		&mockSignal{},
	)

	authGateway := gateway.NewAuthGateway(testSecret, "dwell:session-events", nil, nil)
	h := NewHandler(favorites, properties, service.NewSignalService(nil), authGateway)

	e := echo.New()
	e.Use(restmiddleware.NewAuthMiddleware(authGateway).IdentifyRequester)
	h.RegisterRoutes(e)

	return &testServer{e: e, repo: repo, guest: guest}
}

func signToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   userID,
		"email": userID + "@example.com",
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func doJSON(ts *testServer, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		encoded, _ := json.Marshal(body)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	res := httptest.NewRecorder()
	ts.e.ServeHTTP(res, req)
	return res
}

// --- tests ---

func TestGuestToggleRoundTrip(t *testing.T) {
	ts := newTestServer()

	res := doJSON(ts, http.MethodPost, "/api/v1/favorites/toggle",
		map[string]string{"propertyId": "p1"},
		map[string]string{domain.GuestIdHeader: "g1"})

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", res.Code, res.Body.String())
	}

	var payload struct {
		Favorited bool `json:"favorited"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if !payload.Favorited {
		t.Fatalf("expected favorited true")
	}

	set := ts.guest.Load(context.Background(), "g1")
	if _, ok := set["p1"]; !ok {
		t.Fatalf("guest set should contain p1, got %v", set)
	}
	if ts.repo.addCalls != 0 {
		t.Fatalf("guest toggle must not reach the remote store")
	}
}

func TestAnonymousToggleWithoutGuestIDIsRejected(t *testing.T) {
	ts := newTestServer()

	res := doJSON(ts, http.MethodPost, "/api/v1/favorites/toggle",
		map[string]string{"propertyId": "p1"}, nil)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", res.Code)
	}
}

func TestAuthenticatedToggleHitsRemoteStore(t *testing.T) {
	ts := newTestServer()
	token := signToken(t, "u1")

	res := doJSON(ts, http.MethodPost, "/api/v1/favorites/toggle",
		map[string]string{"propertyId": "p1"},
		map[string]string{"Authorization": "Bearer " + token})

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", res.Code, res.Body.String())
	}
	if ts.repo.addCalls != 1 {
		t.Fatalf("expected one remote add, got %d", ts.repo.addCalls)
	}

	res = doJSON(ts, http.MethodGet, "/api/v1/favorites/p1", nil,
		map[string]string{"Authorization": "Bearer " + token})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", res.Code)
	}
	var payload struct {
		Favorited bool `json:"favorited"`
	}
	json.Unmarshal(res.Body.Bytes(), &payload)
	if !payload.Favorited {
		t.Fatalf("p1 should be favorited for u1")
	}
}

func TestInvalidTokenLeavesSessionUnresolved(t *testing.T) {
	ts := newTestServer()

	res := doJSON(ts, http.MethodPost, "/api/v1/favorites/toggle",
		map[string]string{"propertyId": "p1"},
		map[string]string{"Authorization": "Bearer not-a-jwt", domain.GuestIdHeader: "g1"})

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unresolved session, got %d", res.Code)
	}
	if ts.repo.addCalls != 0 {
		t.Fatalf("unresolved session must never mutate the remote store")
	}
}

func TestMigrateRequiresAuthentication(t *testing.T) {
	ts := newTestServer()

	res := doJSON(ts, http.MethodPost, "/api/v1/favorites/migrate", nil,
		map[string]string{domain.GuestIdHeader: "g1"})

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", res.Code)
	}
}

func TestMigrateDrainsGuestFavorites(t *testing.T) {
	ts := newTestServer()
	token := signToken(t, "u1")

	ts.guest.Save(context.Background(), "g1", map[string]struct{}{"p1": {}, "p2": {}})

	res := doJSON(ts, http.MethodPost, "/api/v1/favorites/migrate", nil,
		map[string]string{
			"Authorization":      "Bearer " + token,
			domain.GuestIdHeader: "g1",
		})

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", res.Code, res.Body.String())
	}
	if ts.repo.addCalls != 2 {
		t.Fatalf("expected both guest favorites migrated, got %d adds", ts.repo.addCalls)
	}
	if set := ts.guest.Load(context.Background(), "g1"); len(set) != 0 {
		t.Fatalf("guest set should be empty after migration, got %v", set)
	}
}

func TestGetPropertyNotFound(t *testing.T) {
	ts := newTestServer()

	res := doJSON(ts, http.MethodGet, "/api/v1/properties/nope", nil, nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", res.Code)
	}

	res = doJSON(ts, http.MethodGet, "/api/v1/properties/p1", nil, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", res.Code)
	}
}

func TestForwarderStopsOnTeardown(t *testing.T) {
	events := make(chan dwell.Event, 4)
	merged := make(chan dwell.Event, 1)
	done := make(chan struct{})

	for i := 0; i < 4; i++ {
		events <- dwell.Event{Type: dwell.EventFavoritesChanged}
	}
	close(events)

	finished := make(chan struct{})
	go func() {
		forwardEvents(events, merged, done)
		close(finished)
	}()

	// the first event fills the merged buffer, the second blocks
	select {
	case <-finished:
		t.Fatalf("forwarder must block while the merged stream is full")
	case <-time.After(10 * time.Millisecond):
	}

	close(done)
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatalf("forwarder did not stop after teardown")
	}
}

func TestListFavoritesForGuest(t *testing.T) {
	ts := newTestServer()

	ts.guest.Save(context.Background(), "g1", map[string]struct{}{"p1": {}})

	res := doJSON(ts, http.MethodGet, "/api/v1/favorites", nil,
		map[string]string{domain.GuestIdHeader: "g1"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", res.Code)
	}

	var payload struct {
		Favorites []dwell.Favorite `json:"favorites"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if len(payload.Favorites) != 1 || payload.Favorites[0].PropertyID != "p1" {
		t.Fatalf("unexpected listing: %+v", payload.Favorites)
	}
	if payload.Favorites[0].Property == nil || payload.Favorites[0].Property.Title != "Canal house" {
		t.Fatalf("listing should join the property summary")
	}
}
