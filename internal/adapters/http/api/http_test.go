package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/ladder/internal/adapters/http/api"
	repository "github.com/okian/ladder/internal/adapters/repository"
	"github.com/okian/ladder/internal/domain/dedupe"
	"github.com/okian/ladder/internal/domain/matchmaking"
	"github.com/okian/ladder/internal/domain/skill"
	"github.com/okian/ladder/internal/domain/types"
	"github.com/okian/ladder/pkg/logger"
)

func init() {
	_ = logger.Init()
}

type outcomeCall struct {
	name, surname string
	outcome       skill.Outcome
	reward        float64
}

type mockDependencies struct {
	standing types.Standing
	entries  []types.Entry
	level    int
	err      error

	created  []string
	outcomes []outcomeCall
	limit    int
}

func (m *mockDependencies) CreatePlayer(_ context.Context, name, surname string) (types.Standing, error) {
	if m.err != nil {
		return types.Standing{}, m.err
	}
	m.created = append(m.created, name+" "+surname)
	return types.Standing{Name: name, Surname: surname, Mu: 25, Sigma: 25.0 / 3}, nil
}

func (m *mockDependencies) Standing(_ context.Context, _, _ string) (types.Standing, error) {
	return m.standing, m.err
}

func (m *mockDependencies) ChooseOpponent(_ context.Context, _, _ string) (int, error) {
	return m.level, m.err
}

func (m *mockDependencies) RecordOutcome(_ context.Context, name, surname string, outcome skill.Outcome, reward float64) (types.Standing, error) {
	m.outcomes = append(m.outcomes, outcomeCall{name, surname, outcome, reward})
	return m.standing, m.err
}

func (m *mockDependencies) Leaderboard(_ context.Context, limit int) ([]types.Entry, error) {
	m.limit = limit
	if m.err != nil {
		return nil, m.err
	}
	if limit < len(m.entries) {
		return m.entries[:limit], nil
	}
	return m.entries, nil
}

type mockStatsProvider struct {
	stats map[string]any
}

func (m *mockStatsProvider) GetStats() map[string]any {
	return m.stats
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServer_Register(t *testing.T) {
	Convey("Given a new API server", t, func() {
		deps := &mockDependencies{}
		stats := &mockStatsProvider{stats: map[string]any{"driver": "memory"}}
		h := api.NewServer(deps, stats).Handler(context.Background())

		Convey("health is served as JSON", func() {
			w := serve(h, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")
			So(w.Body.String(), ShouldContainSubstring, `"status":"ok"`)
		})

		Convey("stats come from the provider", func() {
			w := serve(h, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"driver":"memory"`)
		})

		Convey("metrics are exposed", func() {
			_ = serve(h, http.MethodGet, "/healthz", "")
			w := serve(h, http.MethodGet, "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "ladder_matchmaking_http_requests_total")
		})

		Convey("unknown routes return 404", func() {
			w := serve(h, http.MethodGet, "/unknown", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("every response carries a request id", func() {
			w := serve(h, http.MethodGet, "/healthz", "")
			So(w.Header().Get(api.RequestIDHeader), ShouldNotBeEmpty)

			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			req.Header.Set(api.RequestIDHeader, "fixed-id")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			So(rec.Header().Get(api.RequestIDHeader), ShouldEqual, "fixed-id")
		})
	})
}

func TestPlayerRoutes(t *testing.T) {
	Convey("Given a server with a known player", t, func() {
		level := 1
		deps := &mockDependencies{
			level: 2,
			standing: types.Standing{
				Name: "ada", Surname: "lovelace", Mu: 27, Sigma: 6, GamesPlayed: 1, RankUpdates: 1, Selected: &level,
			},
		}
		h := api.NewServer(deps, &mockStatsProvider{}).Handler(context.Background())

		Convey("When creating a player", func() {
			w := serve(h, http.MethodPost, "/players", `{"name":"ada","surname":"lovelace"}`)

			Convey("Then 201 and the new standing are returned", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				var st types.Standing
				So(json.Unmarshal(w.Body.Bytes(), &st), ShouldBeNil)
				So(st.Name, ShouldEqual, "ada")
				So(deps.created, ShouldResemble, []string{"ada lovelace"})
			})
		})

		Convey("When creating a player with a bad body", func() {
			bad := serve(h, http.MethodPost, "/players", `{`)
			blank := serve(h, http.MethodPost, "/players", `{"name":" ","surname":"x"}`)

			Convey("Then 400 is returned and nothing is created", func() {
				So(bad.Code, ShouldEqual, http.StatusBadRequest)
				So(blank.Code, ShouldEqual, http.StatusBadRequest)
				So(deps.created, ShouldBeEmpty)
			})
		})

		Convey("When reading the player", func() {
			w := serve(h, http.MethodGet, "/players/ada/lovelace", "")

			Convey("Then the standing includes the selected level", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"selected_level":1`)
			})
		})

		Convey("When choosing an opponent", func() {
			w := serve(h, http.MethodPost, "/players/ada/lovelace/opponent", "")

			Convey("Then the level id is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"level_id":2`)
			})
		})

		Convey("When recording an outcome", func() {
			w := serve(h, http.MethodPost, "/players/ada/lovelace/outcome", `{"outcome":"win","reward":230.5}`)

			Convey("Then the call reaches the service with the parsed outcome", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.outcomes, ShouldHaveLength, 1)
				So(deps.outcomes[0], ShouldResemble, outcomeCall{"ada", "lovelace", skill.Win, 230.5})
			})
		})

		Convey("When recording an unknown outcome", func() {
			w := serve(h, http.MethodPost, "/players/ada/lovelace/outcome", `{"outcome":"forfeit"}`)

			Convey("Then 400 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(deps.outcomes, ShouldBeEmpty)
			})
		})
	})
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("get: %w", matchmaking.ErrNotFound), http.StatusNotFound, "not_found"},
		{repository.ErrAlreadyExists, http.StatusConflict, "already_exists"},
		{fmt.Errorf("%w: record_outcome before choose_opponent", matchmaking.ErrPrecondition), http.StatusConflict, "precondition_failed"},
		{matchmaking.ErrNoOpponents, http.StatusConflict, "precondition_failed"},
		{fmt.Errorf("%w: %w", matchmaking.ErrPrecondition, skill.ErrUnknownOutcome), http.StatusBadRequest, "bad_request"},
		{repository.ErrInvalidRecord, http.StatusBadRequest, "bad_request"},
		{fmt.Errorf("%w: disk full", matchmaking.ErrStoreIO), http.StatusServiceUnavailable, "store_unavailable"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "internal_error"},
	}

	Convey("Given failing dependencies", t, func() {
		for _, tc := range cases {
			deps := &mockDependencies{err: tc.err}
			h := api.NewServer(deps, &mockStatsProvider{}).Handler(context.Background())
			w := serve(h, http.MethodPost, "/players/ada/lovelace/opponent", "")

			Convey(fmt.Sprintf("%v maps to %d", tc.err, tc.status), func() {
				So(w.Code, ShouldEqual, tc.status)
				var body map[string]string
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body["code"], ShouldEqual, tc.code)
			})
		}
	})
}

func TestLeaderboardRoute(t *testing.T) {
	Convey("Given a leaderboard with three entries", t, func() {
		deps := &mockDependencies{entries: []types.Entry{
			{Rank: 1, Name: "a", Surname: "x", Score: 10},
			{Rank: 2, Name: "b", Surname: "x", Score: 5},
			{Rank: 3, Name: "c", Surname: "x", Score: 1},
		}}
		h := api.NewServer(deps, &mockStatsProvider{}).Handler(context.Background())

		Convey("the default limit is 10", func() {
			w := serve(h, http.MethodGet, "/leaderboard", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.limit, ShouldEqual, 10)
		})

		Convey("an explicit limit truncates", func() {
			w := serve(h, http.MethodGet, "/leaderboard?limit=2", "")
			var entries []types.Entry
			So(json.Unmarshal(w.Body.Bytes(), &entries), ShouldBeNil)
			So(entries, ShouldHaveLength, 2)
			So(entries[0].Name, ShouldEqual, "a")
		})

		Convey("invalid limits are rejected", func() {
			So(serve(h, http.MethodGet, "/leaderboard?limit=abc", "").Code, ShouldEqual, http.StatusBadRequest)
			So(serve(h, http.MethodGet, "/leaderboard?limit=0", "").Code, ShouldEqual, http.StatusBadRequest)
			So(serve(h, http.MethodGet, "/leaderboard?limit=101", "").Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestIdempotentOutcome(t *testing.T) {
	Convey("Given a server and an outcome report with an idempotency key", t, func() {
		deps := &mockDependencies{standing: types.Standing{Name: "ada", Surname: "lovelace", GamesPlayed: 1}}
		h := api.NewServer(deps, &mockStatsProvider{}, api.WithDeduper(dedupe.NewInMemoryDeduper())).Handler(context.Background())

		post := func(key string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodPost, "/players/ada/lovelace/outcome", strings.NewReader(`{"outcome":"loss"}`))
			req.Header.Set(api.IdempotencyKeyHeader, key)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			return w
		}

		Convey("When the same report is sent twice", func() {
			first := post("game-1")
			second := post("game-1")

			Convey("Then the game is applied once and the replay is flagged", func() {
				So(first.Code, ShouldEqual, http.StatusOK)
				So(second.Code, ShouldEqual, http.StatusOK)
				So(deps.outcomes, ShouldHaveLength, 1)
				So(first.Header().Get(api.ReplayedHeader), ShouldBeEmpty)
				So(second.Header().Get(api.ReplayedHeader), ShouldEqual, "true")
			})
		})

		Convey("When the first attempt is rejected", func() {
			deps.err = matchmaking.ErrPrecondition
			rejected := post("game-2")
			deps.err = nil
			retried := post("game-2")

			Convey("Then the retry is applied", func() {
				So(rejected.Code, ShouldEqual, http.StatusConflict)
				So(retried.Code, ShouldEqual, http.StatusOK)
				So(retried.Header().Get(api.ReplayedHeader), ShouldBeEmpty)
				So(deps.outcomes, ShouldHaveLength, 2)
			})
		})

		Convey("When the store fails after the game was applied", func() {
			deps.err = matchmaking.ErrStoreIO
			failed := post("game-3")
			deps.err = nil
			retried := post("game-3")

			Convey("Then the retry is treated as a replay", func() {
				So(failed.Code, ShouldEqual, http.StatusServiceUnavailable)
				So(retried.Header().Get(api.ReplayedHeader), ShouldEqual, "true")
				So(deps.outcomes, ShouldHaveLength, 1)
			})
		})

		Convey("When the path names carry surrounding spaces", func() {
			post("game-4")
			req := httptest.NewRequest(http.MethodPost, "/players/%20ada/lovelace%20/outcome", strings.NewReader(`{"outcome":"loss"}`))
			req.Header.Set(api.IdempotencyKeyHeader, "game-4")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			Convey("Then they share the key of the trimmed player", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get(api.ReplayedHeader), ShouldEqual, "true")
				So(deps.outcomes, ShouldHaveLength, 1)
			})
		})

		Convey("When different players use the same key", func() {
			post("shared")
			req := httptest.NewRequest(http.MethodPost, "/players/bob/smith/outcome", strings.NewReader(`{"outcome":"win"}`))
			req.Header.Set(api.IdempotencyKeyHeader, "shared")
			h.ServeHTTP(httptest.NewRecorder(), req)

			Convey("Then both reports are applied", func() {
				So(deps.outcomes, ShouldHaveLength, 2)
			})
		})
	})
}

// slowDependencies holds RecordOutcome until release receives the result.
type slowDependencies struct {
	*mockDependencies
	started chan struct{}
	release chan error
}

func (m *slowDependencies) RecordOutcome(ctx context.Context, name, surname string, outcome skill.Outcome, reward float64) (types.Standing, error) {
	m.started <- struct{}{}
	err := <-m.release
	st, _ := m.mockDependencies.RecordOutcome(ctx, name, surname, outcome, reward)
	return st, err
}

func TestInFlightOutcome(t *testing.T) {
	Convey("Given a report that is still being applied", t, func() {
		deps := &slowDependencies{
			mockDependencies: &mockDependencies{standing: types.Standing{Name: "ada", Surname: "lovelace"}},
			started:          make(chan struct{}),
			release:          make(chan error),
		}
		h := api.NewServer(deps, &mockStatsProvider{}, api.WithDeduper(dedupe.NewInMemoryDeduper())).Handler(context.Background())

		post := func() *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodPost, "/players/ada/lovelace/outcome", strings.NewReader(`{"outcome":"win"}`))
			req.Header.Set(api.IdempotencyKeyHeader, "game-1")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			return w
		}

		first := make(chan *httptest.ResponseRecorder, 1)
		go func() { first <- post() }()
		<-deps.started

		Convey("When a retry arrives before it settles", func() {
			retry := post()

			Convey("Then the retry is refused as in flight", func() {
				So(retry.Code, ShouldEqual, http.StatusConflict)
				So(retry.Body.String(), ShouldContainSubstring, `"in_flight"`)
				So(retry.Header().Get(api.ReplayedHeader), ShouldBeEmpty)

				deps.release <- nil
				So((<-first).Code, ShouldEqual, http.StatusOK)
			})

			Convey("And once the first report is rejected the key is free again", func() {
				deps.release <- matchmaking.ErrPrecondition
				So((<-first).Code, ShouldEqual, http.StatusConflict)

				again := make(chan *httptest.ResponseRecorder, 1)
				go func() { again <- post() }()
				<-deps.started
				deps.release <- nil
				w := <-again

				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get(api.ReplayedHeader), ShouldBeEmpty)
				So(deps.outcomes, ShouldHaveLength, 2)
			})
		})
	})
}
