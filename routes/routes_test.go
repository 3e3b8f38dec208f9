package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/football-investment/practice-booking-system-sub003/brackets"
	"github.com/football-investment/practice-booking-system-sub003/handlers"
	"github.com/football-investment/practice-booking-system-sub003/middleware"
	"github.com/football-investment/practice-booking-system-sub003/models"
	"github.com/football-investment/practice-booking-system-sub003/repositories"
	"github.com/football-investment/practice-booking-system-sub003/services"
	"github.com/football-investment/practice-booking-system-sub003/storage"
)

const secret = "routes-test-secret"

type apiServer struct {
	t      *testing.T
	server *httptest.Server
	hub    *brackets.Hub
}

func newAPIServer(t *testing.T, dispatcherCfg services.DispatcherConfig) *apiServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())

	store := repositories.NewMemoryStore()
	hub := brackets.NewHub(logger)
	go hub.Run(ctx)

	validator := services.NewRosterValidator(nil)
	competitions := services.NewCompetitionService(store, storage.NewMemoryArchive("https://cdn.example.com"), validator, services.DefaultEngineDefaults(), hub, logger)
	generation := services.NewGenerationService(store, validator, hub, logger)
	dispatcher := services.NewDispatcher(dispatcherCfg, store, generation, hub, logger)
	results := services.NewResultService(store, hub, logger)
	rankings := services.NewRankingService(store, hub, logger)
	rewards := services.NewRewardService(store, hub, logger)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = dispatcher.Run(ctx)
	}()

	router := chi.NewRouter()
	SetupRoutes(router, Handlers{
		Competitions: handlers.NewCompetitionHandler(competitions),
		Matches:      handlers.NewMatchHandler(competitions, results, dispatcher),
		Standings:    handlers.NewStandingsHandler(rankings, rewards),
		WebSocket:    handlers.NewWebSocketHandler(hub, competitions, nil, logger),
	}, Options{
		Auth:    middleware.NewAuthenticator(secret),
		Limiter: middleware.NewRateLimiter(1000, 1000),
		Health:  store.Ping,
		Logger:  logger,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return &apiServer{t: t, server: srv, hub: hub}
}

func token(t *testing.T, userID int, role middleware.Role) string {
	t.Helper()
	tok, err := middleware.IssueToken(secret, userID, role, time.Hour)
	require.NoError(t, err)
	return tok
}

type apiResponse struct {
	status  int
	header  http.Header
	payload map[string]json.RawMessage
}

func (r apiResponse) decode(t *testing.T, key string, dst interface{}) {
	t.Helper()
	raw, ok := r.payload[key]
	require.True(t, ok, "response has no %q key: %v", key, r.payload)
	require.NoError(t, json.Unmarshal(raw, dst))
}

func (r apiResponse) errorMessage(t *testing.T) string {
	var msg string
	r.decode(t, "error", &msg)
	return msg
}

func (s *apiServer) do(method, path, tok string, body interface{}) apiResponse {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	require.NoError(s.t, err)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.server.Client().Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	out := apiResponse{status: resp.StatusCode, header: resp.Header}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(s.t, json.Unmarshal(raw, &out.payload))
	}
	return out
}

func (s *apiServer) createCompetition(tok string, input services.CreateCompetitionInput) *models.Competition {
	s.t.Helper()
	resp := s.do(http.MethodPost, "/competitions", tok, input)
	require.Equal(s.t, http.StatusCreated, resp.status, resp.payload)
	var c models.Competition
	resp.decode(s.t, "competition", &c)
	return &c
}

func TestCompetitionLifecycleOverHTTP(t *testing.T) {
	api := newAPIServer(t, services.DispatcherConfig{AsyncThreshold: 128})
	organizer := token(t, 1, middleware.RoleOrganizer)

	c := api.createCompetition(organizer, services.CreateCompetitionInput{
		Name:        "Autumn Ladder",
		Format:      models.FormatRoundRobin,
		ScoringMode: models.ScoringScoreBased,
	})
	assert.Equal(t, models.StatusDraft, c.Status)
	base := fmt.Sprintf("/competitions/%d", c.ID)

	require.Equal(t, http.StatusOK, api.do(http.MethodPost, base+"/open", organizer, nil).status)

	for pid := 101; pid <= 104; pid++ {
		resp := api.do(http.MethodPost, base+"/enrollments", token(t, pid, middleware.RoleParticipant), nil)
		require.Equal(t, http.StatusCreated, resp.status, resp.payload)
		var e models.Enrollment
		resp.decode(t, "enrollment", &e)
		assert.Equal(t, pid, e.ParticipantID)
	}

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(api.server.URL, "http")+"/ws"+base, nil)
	require.NoError(t, err)
	defer conn.Close()
	var snapshot brackets.WebSocketMessage
	require.NoError(t, conn.ReadJSON(&snapshot))
	assert.Equal(t, brackets.EventCompetitionUpdated, snapshot.Type)
	require.Eventually(t, func() bool { return api.hub.RoomSize(brackets.RoomForCompetition(c.ID)) == 1 }, 5*time.Second, 10*time.Millisecond)

	gen := api.do(http.MethodPost, base+"/sessions", organizer, map[string]string{"format": string(models.FormatRoundRobin)})
	require.Equal(t, http.StatusCreated, gen.status, gen.payload)
	var generated services.GenerateResponse
	gen.decode(t, "generation", &generated)
	assert.Equal(t, services.ModeSync, generated.Mode)
	require.NotNil(t, generated.Result)
	assert.Equal(t, 6, generated.Result.SessionCount)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var event brackets.WebSocketMessage
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, brackets.EventSessionsGenerated, event.Type)

	again := api.do(http.MethodPost, base+"/sessions", organizer, nil)
	assert.Equal(t, http.StatusConflict, again.status)
	assert.Contains(t, again.errorMessage(t), "sessions already generated")

	var matches []*models.Match
	api.do(http.MethodGet, base+"/matches", "", nil).decode(t, "matches", &matches)
	require.Len(t, matches, 6)
	for _, m := range matches {
		v1, v2 := 3.0, 1.0
		if *m.Participant1ID > *m.Participant2ID {
			v1, v2 = v2, v1
		}
		resp := api.do(http.MethodPut, fmt.Sprintf("/matches/%d/result", m.ID), organizer, models.MatchResult{Value1: &v1, Value2: &v2})
		require.Equal(t, http.StatusOK, resp.status, resp.payload)
	}

	resubmit := api.do(http.MethodPut, fmt.Sprintf("/matches/%d/result", matches[0].ID), organizer, map[string]float64{"value1": 1, "value2": 0})
	assert.Equal(t, http.StatusConflict, resubmit.status)

	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, base+"/rankings", "", nil).status)

	calc := api.do(http.MethodPost, base+"/rankings", organizer, nil)
	require.Equal(t, http.StatusOK, calc.status, calc.payload)
	var rankings []*models.Ranking
	calc.decode(t, "rankings", &rankings)
	require.Len(t, rankings, 4)
	for i, r := range rankings {
		assert.Equal(t, i+1, r.Rank)
		assert.Equal(t, 101+i, r.ParticipantID)
	}

	dist := api.do(http.MethodPost, base+"/rewards", organizer, nil)
	require.Equal(t, http.StatusOK, dist.status, dist.payload)
	var summary models.RewardSummary
	dist.decode(t, "summary", &summary)
	assert.Equal(t, 4, summary.ParticipantsRewarded)

	assert.Equal(t, http.StatusConflict, api.do(http.MethodPost, base+"/rewards", organizer, nil).status)

	var rewards services.CompetitionRewards
	api.do(http.MethodGet, base+"/rewards", "", nil).decode(t, "rewards", &rewards)
	assert.NotEmpty(t, rewards.Transactions)
	assert.NotEmpty(t, rewards.Achievements)

	archived := api.do(http.MethodPost, base+"/archive", organizer, nil)
	require.Equal(t, http.StatusOK, archived.status, archived.payload)
	var final models.Competition
	archived.decode(t, "competition", &final)
	assert.Equal(t, models.StatusArchived, final.Status)
	require.NotNil(t, final.ArchiveKey)
	assert.Equal(t, fmt.Sprintf("archives/%d-autumn-ladder.json", c.ID), *final.ArchiveKey)
}

func TestAsyncGenerationOverHTTP(t *testing.T) {
	api := newAPIServer(t, services.DispatcherConfig{AsyncThreshold: 8})
	organizer := token(t, 1, middleware.RoleOrganizer)

	c := api.createCompetition(organizer, services.CreateCompetitionInput{
		Name:        "Night Cup",
		Format:      models.FormatSingleElimination,
		ScoringMode: models.ScoringScoreBased,
	})
	base := fmt.Sprintf("/competitions/%d", c.ID)
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, base+"/open", organizer, nil).status)
	for pid := 1; pid <= 16; pid++ {
		resp := api.do(http.MethodPost, base+"/enrollments", organizer, map[string]int{"participant_id": pid})
		require.Equal(t, http.StatusCreated, resp.status, resp.payload)
	}

	resp := api.do(http.MethodPost, base+"/sessions", organizer, nil)
	require.Equal(t, http.StatusAccepted, resp.status, resp.payload)
	var queued services.GenerateResponse
	resp.decode(t, "generation", &queued)
	require.NotEmpty(t, queued.TaskID)
	location := resp.header.Get("Location")
	assert.Equal(t, base+"/generation/"+queued.TaskID, location)

	require.Eventually(t, func() bool {
		poll := api.do(http.MethodGet, location, "", nil)
		if poll.status != http.StatusOK {
			return false
		}
		var st services.GenerationStatus
		poll.decode(t, "generation", &st)
		return st.Status == models.TaskSuccess && st.SessionCount == 16
	}, 10*time.Second, 20*time.Millisecond)

	var overall services.GenerationStatus
	api.do(http.MethodGet, base+"/generation", "", nil).decode(t, "generation", &overall)
	assert.Equal(t, models.TaskSuccess, overall.Status)
}

func TestAccessControlAndErrors(t *testing.T) {
	api := newAPIServer(t, services.DispatcherConfig{})
	organizer := token(t, 1, middleware.RoleOrganizer)
	participant := token(t, 55, middleware.RoleParticipant)

	input := services.CreateCompetitionInput{Name: "Guarded", Format: models.FormatSwiss, ScoringMode: models.ScoringScoreBased}
	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodPost, "/competitions", "", input).status)
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodPost, "/competitions", participant, input).status)

	c := api.createCompetition(organizer, input)
	base := fmt.Sprintf("/competitions/%d", c.ID)

	tests := []struct {
		name   string
		method string
		path   string
		tok    string
		body   interface{}
		want   int
		reason string
	}{
		{"unknown competition", http.MethodGet, "/competitions/9999", "", nil, http.StatusNotFound, "competition not found"},
		{"malformed id", http.MethodGet, "/competitions/abc", "", nil, http.StatusBadRequest, "invalid competitionID"},
		{"enroll before opening", http.MethodPost, base + "/enrollments", participant, nil, http.StatusConflict, "enrollment is closed"},
		{"enroll someone else", http.MethodPost, base + "/enrollments", participant, map[string]int{"participant_id": 56}, http.StatusForbidden, "own enrollment"},
		{"participant cannot generate", http.MethodPost, base + "/sessions", participant, nil, http.StatusForbidden, ""},
		{"generate from draft", http.MethodPost, base + "/sessions", organizer, nil, http.StatusConflict, ""},
		{"format mismatch", http.MethodPost, base + "/sessions", organizer, map[string]string{"format": "ROUND_ROBIN"}, http.StatusBadRequest, "differs from the competition"},
		{"unknown body field", http.MethodPost, base + "/sessions", organizer, map[string]int{"competition_id": 4}, http.StatusBadRequest, "unknown key"},
		{"invalid list filter", http.MethodGet, "/competitions?status=PAUSED", "", nil, http.StatusBadRequest, "invalid status"},
		{"rewards before completion", http.MethodPost, base + "/rewards", organizer, nil, http.StatusConflict, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := api.do(tt.method, tt.path, tt.tok, tt.body)
			assert.Equal(t, tt.want, resp.status, resp.payload)
			if tt.reason != "" {
				assert.Contains(t, resp.errorMessage(t), tt.reason)
			}
		})
	}
}

func TestHealthAndDocs(t *testing.T) {
	api := newAPIServer(t, services.DispatcherConfig{})

	assert.Equal(t, http.StatusNoContent, api.do(http.MethodGet, "/healthz", "", nil).status)

	resp, err := api.server.Client().Get(api.server.URL + "/swagger/doc.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var doc map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Equal(t, "3.0.3", doc["openapi"])
}
