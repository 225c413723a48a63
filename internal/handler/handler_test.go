package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Kilat-Mobility/service-journey/internal/application"
	"github.com/Kilat-Mobility/service-journey/internal/common/auth"
	"github.com/Kilat-Mobility/service-journey/internal/common/domain"
	"github.com/Kilat-Mobility/service-journey/internal/domain/geo"
	geofenceDomain "github.com/Kilat-Mobility/service-journey/internal/domain/geofence"
	journeyDomain "github.com/Kilat-Mobility/service-journey/internal/domain/journey"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// memJourneyRepo is a minimal in-memory store; the service serializes writers per journey.
type memJourneyRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*journeyDomain.Journey
}

func (r *memJourneyRepo) FindByID(_ context.Context, id uuid.UUID) (*journeyDomain.Journey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.rows[id]
	if !ok {
		return nil, domain.NewNotFoundError("journey", id.String())
	}
	return j, nil
}

func (r *memJourneyRepo) FindByRiderID(_ context.Context, riderID uuid.UUID, _, _ int) ([]*journeyDomain.Journey, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*journeyDomain.Journey
	for _, j := range r.rows {
		if j.RiderID() == riderID {
			out = append(out, j)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memJourneyRepo) ListAll(_ context.Context, _, _ int) ([]*journeyDomain.Journey, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*journeyDomain.Journey
	for _, j := range r.rows {
		out = append(out, j)
	}
	return out, int64(len(out)), nil
}

func (r *memJourneyRepo) CountByStatus(_ context.Context) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int64)
	for _, j := range r.rows {
		counts[string(j.Status())]++
	}
	return counts, nil
}

func (r *memJourneyRepo) Save(_ context.Context, j *journeyDomain.Journey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[j.ID()] = j
	return nil
}

func (r *memJourneyRepo) Update(_ context.Context, j *journeyDomain.Journey, _ []journeyDomain.Leg) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[j.ID()] = j
	return nil
}

type memGeofenceRepo struct {
	polygons []*geofenceDomain.Polygon
	areas    []*geofenceDomain.OperatingArea
}

func (r *memGeofenceRepo) ListActivePolygons(_ context.Context, kind geofenceDomain.Kind) ([]*geofenceDomain.Polygon, error) {
	if kind == "" {
		return r.polygons, nil
	}
	return geofenceDomain.FilterKind(r.polygons, kind), nil
}

func (r *memGeofenceRepo) SavePolygon(_ context.Context, p *geofenceDomain.Polygon) error {
	r.polygons = append(r.polygons, p)
	return nil
}

func (r *memGeofenceRepo) DeactivatePolygon(_ context.Context, id uuid.UUID) error {
	return domain.NewNotFoundError("geofence", id.String())
}

func (r *memGeofenceRepo) ListActiveAreas(_ context.Context) ([]*geofenceDomain.OperatingArea, error) {
	return r.areas, nil
}

func (r *memGeofenceRepo) SaveArea(_ context.Context, a *geofenceDomain.OperatingArea) error {
	r.areas = append(r.areas, a)
	return nil
}

func (r *memGeofenceRepo) DeactivateArea(_ context.Context, id uuid.UUID) error {
	return domain.NewNotFoundError("operating area", id.String())
}

type testServer struct {
	router   *gin.Engine
	jwt      *auth.JWTManager
	journeys *application.PositionService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zap.NewNop()
	jwtManager := auth.NewJWTManager("test-secret", time.Hour, 24*time.Hour)

	positions := application.NewPositionService(
		&memJourneyRepo{rows: make(map[uuid.UUID]*journeyDomain.Journey)},
		journeyDomain.NewStandardFareStrategy(nil),
		nil, nil, journeyDomain.DefaultRules(), log,
	)
	geofences := application.NewGeofenceService(&memGeofenceRepo{}, 100, log)

	router := gin.New()
	api := router.Group("")
	NewJourneyHandler(positions).RegisterRoutes(api, jwtManager)
	NewStreamHandler(positions, 10*time.Millisecond, log).RegisterRoutes(api, jwtManager)
	NewGeofenceHandler(geofences).RegisterRoutes(api, jwtManager)
	NewAdminJourneyHandler(positions).RegisterRoutes(api, jwtManager)

	return &testServer{router: router, jwt: jwtManager, journeys: positions}
}

func (s *testServer) token(t *testing.T, role auth.Role) string {
	t.Helper()
	tok, err := s.jwt.GenerateAccessToken(uuid.New(), role)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

type envelopeOf[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) envelopeOf[T] {
	t.Helper()
	var env envelopeOf[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func rideBody(speed float64) application.StartJourneyRequest {
	return application.StartJourneyRequest{
		Kind:    string(journeyDomain.KindRide),
		RiderID: uuid.New(),
		Approach: application.LegRequest{
			Start:            geo.NewPoint(41.3900, 2.1600),
			End:              geo.NewPoint(41.3851, 2.1734),
			TotalDurationSec: 600,
		},
		Trip: &application.LegRequest{
			Start:            geo.NewPoint(41.3851, 2.1734),
			End:              geo.NewPoint(41.4036, 2.1744),
			TotalDurationSec: 900,
		},
		SpeedMultiplier: speed,
	}
}

func TestJourneyRoutes_Auth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/journeys", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/journeys", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/journeys", s.token(t, auth.RoleRider), rideBody(1))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/admin/stats/journeys", s.token(t, auth.RoleOperator), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/admin/stats/journeys", s.token(t, auth.RoleAdmin), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJourneyRoutes_Lifecycle(t *testing.T) {
	s := newTestServer(t)
	operator := s.token(t, auth.RoleOperator)
	rider := s.token(t, auth.RoleRider)

	w := s.do(t, http.MethodPost, "/api/v1/journeys", operator, rideBody(1))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[application.JourneyDTO](t, w)
	assert.True(t, created.Success)
	assert.Equal(t, string(journeyDomain.PhasePickupApproach), created.Data.Phase)
	id := created.Data.ID.String()

	w = s.do(t, http.MethodGet, "/api/v1/journeys/"+id+"/position", rider, nil)
	require.Equal(t, http.StatusOK, w.Code)
	snap := decode[journeyDomain.Snapshot](t, w)
	assert.Equal(t, created.Data.ID, snap.Data.JourneyID)
	assert.Less(t, snap.Data.ProgressPercent, 100.0)

	w = s.do(t, http.MethodPut, "/api/v1/journeys/"+id+"/speed", s.token(t, auth.RoleDriver), speedBody(5))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPut, "/api/v1/journeys/"+id+"/speed", operator, speedBody(500))
	require.Equal(t, http.StatusOK, w.Code)
	snap = decode[journeyDomain.Snapshot](t, w)
	assert.Equal(t, journeyDomain.MaxSpeedMultiplier, snap.Data.SpeedMultiplier)

	w = s.do(t, http.MethodPut, "/api/v1/journeys/"+id+"/speed", operator, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/journeys/"+id+"/cancel", rider, nil)
	require.Equal(t, http.StatusOK, w.Code)
	cancelled := decode[application.JourneyDTO](t, w)
	assert.Equal(t, string(journeyDomain.StatusCancelled), cancelled.Data.Status)

	w = s.do(t, http.MethodPost, "/api/v1/journeys/"+id+"/cancel", rider, CancelJourneyRequest{Reason: "twice"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/admin/journeys?page=1&limit=5", s.token(t, auth.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)
}

func speedBody(m float64) map[string]float64 {
	return map[string]float64{"multiplier": m}
}

func TestJourneyRoutes_SpeedBelowRangeIsClamped(t *testing.T) {
	s := newTestServer(t)
	operator := s.token(t, auth.RoleOperator)

	w := s.do(t, http.MethodPost, "/api/v1/journeys", operator, rideBody(10))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode[application.JourneyDTO](t, w).Data.ID.String()

	for _, m := range []float64{0, -3} {
		w = s.do(t, http.MethodPut, "/api/v1/journeys/"+id+"/speed", operator, speedBody(m))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		snap := decode[journeyDomain.Snapshot](t, w)
		assert.Equal(t, journeyDomain.MinSpeedMultiplier, snap.Data.SpeedMultiplier, "multiplier %v", m)
	}
}

func TestJourneyRoutes_Errors(t *testing.T) {
	s := newTestServer(t)
	rider := s.token(t, auth.RoleRider)

	w := s.do(t, http.MethodGet, "/api/v1/journeys/not-a-uuid/position", rider, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/journeys/"+uuid.NewString()+"/position", rider, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, decode[any](t, w).Success)

	body := rideBody(1)
	body.Trip = nil
	w = s.do(t, http.MethodPost, "/api/v1/journeys", s.token(t, auth.RoleOperator), body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGeofenceRoutes(t *testing.T) {
	s := newTestServer(t)
	operator := s.token(t, auth.RoleOperator)
	rider := s.token(t, auth.RoleRider)

	polygon := application.CreatePolygonRequest{
		Name: "eixample",
		Kind: string(geofenceDomain.KindZone),
		Vertices: []geo.Point{
			geo.NewPoint(41.38, 2.15), geo.NewPoint(41.38, 2.18), geo.NewPoint(41.40, 2.18), geo.NewPoint(41.40, 2.15),
		},
	}
	w := s.do(t, http.MethodPost, "/api/v1/geofences", rider, polygon)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/geofences", operator, polygon)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/v1/geofences/evaluate", rider, EvaluateRequest{Lat: 41.39, Lng: 2.16, Kind: "zone"})
	require.Equal(t, http.StatusOK, w.Code)
	ev := decode[geofenceDomain.Evaluation](t, w)
	require.NotNil(t, ev.Data.Containing)
	assert.Equal(t, "eixample", ev.Data.Containing.Name)

	w = s.do(t, http.MethodPost, "/api/v1/geofences/evaluate", rider, EvaluateRequest{Lat: 41.39, Lng: 2.16, Kind: "ocean"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/geofences?kind=city", rider, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]geofenceDomain.Polygon](t, w).Data)
}

func TestStream_SendsSnapshotsUntilTerminal(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	dto, err := s.journeys.StartJourney(context.Background(), application.StartJourneyRequest{
		Kind:            string(journeyDomain.KindTeleDrive),
		RiderID:         uuid.New(),
		Approach:        application.LegRequest{Start: geo.NewPoint(41.39, 2.16), End: geo.NewPoint(41.3851, 2.1734), TotalDurationSec: 2},
		SpeedMultiplier: 50,
	})
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/journeys/" + dto.ID.String() +
		"/stream?access_token=" + s.token(t, auth.RoleRider)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var last journeyDomain.Snapshot
	frames := 0
	for {
		var snap journeyDomain.Snapshot
		if err := conn.ReadJSON(&snap); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
			break
		}
		last = snap
		frames++
	}

	assert.GreaterOrEqual(t, frames, 1)
	assert.Equal(t, journeyDomain.StatusCompleted, last.Status)
	assert.Equal(t, dto.ID, last.JourneyID)
}

func TestStream_UnknownJourney(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/journeys/" + uuid.NewString() +
		"/stream?access_token=" + s.token(t, auth.RoleRider)
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		query     string
		wantPage  int
		wantLimit int
	}{
		{"", 1, 20},
		{"?page=3&limit=50", 3, 50},
		{"?page=0&limit=0", 1, 20},
		{"?page=abc&limit=1000", 1, 100},
	}
	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/"+tc.query, nil)
			page, limit := parsePagination(c)
			assert.Equal(t, tc.wantPage, page)
			assert.Equal(t, tc.wantLimit, limit)
		})
	}
}
