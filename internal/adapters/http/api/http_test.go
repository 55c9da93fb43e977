package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/ladder/internal/adapters/http/api"
	"github.com/okian/ladder/internal/adapters/repository"
	service "github.com/okian/ladder/internal/app"
	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		os.Exit(1)
	}
	os.Exit(m.Run())
}

// fakeDeps implements api.Dependencies and api.StatsProvider with canned
// responses.
type fakeDeps struct {
	submitted []model.MatchResult
	submitErr error

	entries   []api.Entry
	team      model.TeamBracketStats
	teamErr   error
	variety   *model.VarietyStats
	openCount int
}

func (f *fakeDeps) SubmitResult(_ context.Context, m model.MatchResult) error {
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submitted = append(f.submitted, m)
	return nil
}

func (f *fakeDeps) Leaderboard(_ context.Context, _ model.Bracket, n int) ([]api.Entry, error) {
	if n > len(f.entries) {
		n = len(f.entries)
	}
	return f.entries[:n], nil
}

func (f *fakeDeps) Team(_ context.Context, _ string, _ model.Bracket) (model.TeamBracketStats, error) {
	return f.team, f.teamErr
}

func (f *fakeDeps) Variety(_ context.Context, _ string, _ model.Bracket) (*model.VarietyStats, error) {
	return f.variety, nil
}

func (f *fakeDeps) OpenPotentialCount(_ context.Context, _ string, _ model.Bracket) (int, error) {
	return f.openCount, nil
}

func (f *fakeDeps) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true, "queueLength": 0}
}

func newTestServer(deps *fakeDeps) *httptest.Server {
	mux := http.NewServeMux()
	api.NewServer(deps, deps, 50).Register(context.Background(), mux)
	return httptest.NewServer(mux)
}

func postMatch(ts *httptest.Server, body string) (*http.Response, error) {
	return http.Post(ts.URL+"/matches", "application/json", strings.NewReader(body))
}

const validBody = `{
	"match_id": "m-1",
	"bracket": "1v1",
	"winner_id": "alpha",
	"loser_id": "beta",
	"winner_score": 3,
	"loser_score": 1
}`

func TestHandlePostMatch(t *testing.T) {
	Convey("Given the API wired to an accepting service", t, func() {
		deps := &fakeDeps{}
		ts := newTestServer(deps)
		defer ts.Close()

		Convey("When a valid match is posted", func() {
			resp, err := postMatch(ts, validBody)
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then it is acknowledged with 202", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusAccepted)

				var ack map[string]string
				So(json.NewDecoder(resp.Body).Decode(&ack), ShouldBeNil)
				So(ack["status"], ShouldEqual, "accepted")
			})

			Convey("Then the match reaches the service", func() {
				So(deps.submitted, ShouldHaveLength, 1)
				So(deps.submitted[0].MatchID, ShouldEqual, "m-1")
				So(deps.submitted[0].Bracket, ShouldEqual, model.BracketSolo)
			})
		})

		Convey("When the body is not JSON", func() {
			resp, err := postMatch(ts, "not json")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then it is rejected with 400", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When required fields are missing", func() {
			resp, err := postMatch(ts, `{"bracket":"1v1","winner_id":"a","loser_id":"b"}`)
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the bracket is unknown", func() {
			body := strings.Replace(validBody, "1v1", "9v9", 1)
			resp, err := postMatch(ts, body)
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When completed_at is not RFC3339", func() {
			body := strings.Replace(validBody, `"loser_score": 1`,
				`"loser_score": 1, "completed_at": "yesterday"`, 1)
			resp, err := postMatch(ts, body)
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the method is not POST", func() {
			resp, err := http.Get(ts.URL + "/matches")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})
	})

	Convey("Given a service under backpressure", t, func() {
		deps := &fakeDeps{submitErr: service.ErrQueueFull}
		ts := newTestServer(deps)
		defer ts.Close()

		Convey("When a match is posted", func() {
			resp, err := postMatch(ts, validBody)
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the client is told to retry with 429", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusTooManyRequests)
			})
		})
	})

	Convey("Given a service that rejects the match semantics", t, func() {
		deps := &fakeDeps{submitErr: service.ErrInvalidMatch}
		ts := newTestServer(deps)
		defer ts.Close()

		Convey("When a match is posted", func() {
			resp, err := postMatch(ts, validBody)
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestHandleGetLeaderboard(t *testing.T) {
	Convey("Given the API with a populated leaderboard", t, func() {
		deps := &fakeDeps{entries: []api.Entry{
			{Rank: 1, TeamID: "alpha", Rating: 1300, Wins: 9, Losses: 1, Confidence: 1.0},
			{Rank: 2, TeamID: "beta", Rating: 1100, Wins: 4, Losses: 6, Confidence: 1.0},
		}}
		ts := newTestServer(deps)
		defer ts.Close()

		Convey("When the leaderboard is fetched", func() {
			resp, err := http.Get(ts.URL + "/leaderboard?bracket=1v1&limit=10")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then entries come back in rank order", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)

				var entries []api.Entry
				So(json.NewDecoder(resp.Body).Decode(&entries), ShouldBeNil)
				So(entries, ShouldHaveLength, 2)
				So(entries[0].TeamID, ShouldEqual, "alpha")
				So(entries[0].Rank, ShouldEqual, 1)
			})
		})

		Convey("When the bracket parameter is missing", func() {
			resp, err := http.Get(ts.URL + "/leaderboard?limit=10")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the limit is not a positive integer", func() {
			for _, limit := range []string{"", "abc", "0", "-5"} {
				resp, err := http.Get(ts.URL + "/leaderboard?bracket=1v1&limit=" + limit)
				So(err, ShouldBeNil)
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
				resp.Body.Close()
			}
		})

		Convey("When the limit exceeds the configured maximum", func() {
			resp, err := http.Get(ts.URL + "/leaderboard?bracket=1v1&limit=500")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the request is rejected rather than silently capped", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)

				var body map[string]string
				So(json.NewDecoder(resp.Body).Decode(&body), ShouldBeNil)
				So(body["code"], ShouldEqual, "limit_exceeded")
			})
		})
	})
}

func TestHandleGetTeam(t *testing.T) {
	Convey("Given the API with a known team", t, func() {
		deps := &fakeDeps{
			team: model.TeamBracketStats{
				TeamID:        "alpha",
				Bracket:       model.BracketSolo,
				CurrentRating: 1234.5,
				InitialRating: 1000,
				HighestRating: 1250,
				Wins:          12,
				Losses:        3,
				Confidence:    0.8,
				LastUpdated:   time.Now().UTC(),
			},
			openCount: 2,
		}
		ts := newTestServer(deps)
		defer ts.Close()

		Convey("When the team is fetched without variety history", func() {
			resp, err := http.Get(ts.URL + "/team/alpha?bracket=1v1")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then stats come back and variety fields are omitted", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)

				var body map[string]interface{}
				So(json.NewDecoder(resp.Body).Decode(&body), ShouldBeNil)
				So(body["team_id"], ShouldEqual, "alpha")
				So(body["current_rating"], ShouldEqual, 1234.5)
				So(body["wins"], ShouldEqual, 12.0)
				So(body["open_proven_potential_count"], ShouldEqual, 2.0)
				So(body, ShouldNotContainKey, "variety_entropy")
				So(body, ShouldNotContainKey, "variety_bonus")
			})
		})

		Convey("When the team has variety history", func() {
			deps.variety = &model.VarietyStats{VarietyEntropy: 2.2, VarietyBonus: 0.05}
			resp, err := http.Get(ts.URL + "/team/alpha?bracket=1v1")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then variety fields are included", func() {
				var body map[string]interface{}
				So(json.NewDecoder(resp.Body).Decode(&body), ShouldBeNil)
				So(body["variety_entropy"], ShouldEqual, 2.2)
				So(body["variety_bonus"], ShouldEqual, 0.05)
			})
		})

		Convey("When the bracket is missing", func() {
			resp, err := http.Get(ts.URL + "/team/alpha")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the team id is empty", func() {
			resp, err := http.Get(ts.URL + "/team/?bracket=1v1")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})
	})

	Convey("Given the API with no such team", t, func() {
		deps := &fakeDeps{teamErr: repository.ErrNotFound}
		ts := newTestServer(deps)
		defer ts.Close()

		Convey("When the team is fetched", func() {
			resp, err := http.Get(ts.URL + "/team/ghost?bracket=1v1")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the API answers 404", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestHandleStats(t *testing.T) {
	Convey("Given the API with a stats provider", t, func() {
		deps := &fakeDeps{}
		ts := newTestServer(deps)
		defer ts.Close()

		Convey("When stats are fetched", func() {
			resp, err := http.Get(ts.URL + "/stats")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the provider's snapshot is returned", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)

				var body map[string]interface{}
				So(json.NewDecoder(resp.Body).Decode(&body), ShouldBeNil)
				So(body["started"], ShouldBeTrue)
			})
		})
	})
}

func TestHandleHealth(t *testing.T) {
	Convey("Given the API with metrics wired", t, func() {
		deps := &fakeDeps{}
		ts := newTestServer(deps)
		defer ts.Close()

		Convey("When the health endpoint is probed", func() {
			resp, err := http.Get(ts.URL + "/healthz")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then it serves the metrics exposition", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
			})
		})
	})
}
