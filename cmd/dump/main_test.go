package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	repository "github.com/okian/ladder/internal/adapters/repository"
	"github.com/okian/ladder/internal/config"
	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/internal/domain/skill"
)

func seed(t *testing.T, store repository.Admin, name string, mu float64) {
	t.Helper()
	_, err := store.CreatePlayer(context.Background(),
		model.AgentRecord{Name: name, Surname: "tester", Rating: skill.Rating{Mu: mu, Sigma: 4}},
		[]model.OpponentRecord{
			{LevelID: 1, Rating: skill.Rating{Mu: 30, Sigma: 3}},
			{LevelID: 0, Rating: skill.Rating{Mu: 20, Sigma: 3}},
		})
	if err != nil {
		t.Fatalf("seed %s: %v", name, err)
	}
}

func TestDump(t *testing.T) {
	convey.Convey("Given a store with two players", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		seed(t, store, "ada", 27)
		seed(t, store, "bob", 22)

		convey.Convey("When every player is dumped as text", func() {
			var buf bytes.Buffer
			convey.So(dump(ctx, store, &buf, "", "", false), convey.ShouldBeNil)
			out := buf.String()

			convey.Convey("Then both players appear with levels in order", func() {
				convey.So(out, convey.ShouldContainSubstring, "ada tester")
				convey.So(out, convey.ShouldContainSubstring, "bob tester")
				convey.So(out, convey.ShouldContainSubstring, "mu: 27.000000")
				convey.So(bytes.Index(buf.Bytes(), []byte("level: 0")), convey.ShouldBeLessThan, bytes.Index(buf.Bytes(), []byte("level: 1")))
			})
		})

		convey.Convey("When one player is dumped as JSON", func() {
			var buf bytes.Buffer
			convey.So(dump(ctx, store, &buf, "bob", "tester", true), convey.ShouldBeNil)

			var got []struct {
				Name      string `json:"name"`
				Opponents []struct {
					LevelID int `json:"level_id"`
				} `json:"opponents"`
			}
			convey.So(json.Unmarshal(buf.Bytes(), &got), convey.ShouldBeNil)

			convey.Convey("Then only that player is written", func() {
				convey.So(got, convey.ShouldHaveLength, 1)
				convey.So(got[0].Name, convey.ShouldEqual, "bob")
				convey.So(got[0].Opponents, convey.ShouldHaveLength, 2)
				convey.So(got[0].Opponents[0].LevelID, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When the player is unknown", func() {
			err := dump(ctx, store, &bytes.Buffer{}, "nobody", "x", false)

			convey.Convey("Then ErrNotFound is returned", func() {
				convey.So(errors.Is(err, repository.ErrNotFound), convey.ShouldBeTrue)
			})
		})
	})
}

func TestRunAgainstSQLite(t *testing.T) {
	convey.Convey("Given a sqlite file configured through the environment", t, func() {
		path := filepath.Join(t.TempDir(), "ladder.db")
		t.Setenv("LADDER_STORE_DRIVER", "sqlite")
		t.Setenv("LADDER_SQLITE_PATH", path)

		store, err := repository.NewSQLiteStore(context.Background(), path)
		convey.So(err, convey.ShouldBeNil)
		seed(t, store, "ada", 25)
		convey.So(store.Close(), convey.ShouldBeNil)

		convey.Convey("Then run dumps it", func() {
			var buf bytes.Buffer
			convey.So(run(context.Background(), &buf, "", "", false), convey.ShouldBeNil)
			convey.So(buf.String(), convey.ShouldContainSubstring, "ada tester")
		})
	})
}

func TestOpenStoreTimeout(t *testing.T) {
	convey.Convey("Given a sqlite config with a store timeout", t, func() {
		cfg := config.New()
		cfg.StoreDriver = config.StoreSQLite
		cfg.SQLitePath = filepath.Join(t.TempDir(), "ladder.db")
		cfg.StoreTimeoutMS = 1234

		convey.Convey("When the dump store is opened", func() {
			store, err := openStore(context.Background(), cfg)
			convey.So(err, convey.ShouldBeNil)
			defer func() { _ = store.Close() }()

			convey.Convey("Then it carries the configured timeout", func() {
				sqlite, ok := store.(*repository.SQLiteStore)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(sqlite.OpTimeout(), convey.ShouldEqual, 1234*time.Millisecond)
			})
		})
	})
}
