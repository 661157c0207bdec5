package matchmaking

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/ladder/internal/adapters/repository"
	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/internal/domain/skill"
	"github.com/okian/ladder/pkg/logger"
)

func init() {
	_ = logger.Init()
}

func loadWithSigmas(ctx context.Context, candidateSigma float64, opts ...Option) *Manager {
	store := repository.NewMemoryStore()
	_, err := store.CreatePlayer(ctx,
		model.AgentRecord{Name: "ada", Surname: "lovelace", Rating: skill.Rating{Mu: 25, Sigma: 1.0}, RankUpdates: 1},
		[]model.OpponentRecord{
			{LevelID: 0, Rating: skill.Rating{Mu: 35, Sigma: 1.0}},
			{LevelID: 1, Rating: skill.Rating{Mu: 25, Sigma: candidateSigma}},
			{LevelID: 2, Rating: skill.Rating{Mu: 45, Sigma: 1.0}},
		})
	So(err, ShouldBeNil)

	m, err := New(ctx, store, "ada", "lovelace", opts...)
	So(err, ShouldBeNil)
	return m
}

func TestHysteresis(t *testing.T) {
	Convey("Given a manager currently playing level 0 while level 1 is the best match", t, func() {
		ctx := context.Background()

		Convey("When the sigma gap is 0.3", func() {
			m := loadWithSigmas(ctx, 1.3)
			m.state, m.current = OpponentChosen, 0

			best, _ := m.bestCandidate()
			So(best, ShouldEqual, 1)

			level, err := m.ChooseOpponent(ctx)

			Convey("Then the current opponent is kept", func() {
				So(err, ShouldBeNil)
				So(level, ShouldEqual, 0)
				So(m.Switches(), ShouldEqual, 0)
			})
		})

		Convey("When the sigma gap is exactly the threshold", func() {
			m := loadWithSigmas(ctx, 1.5)
			m.state, m.current = OpponentChosen, 0

			level, err := m.ChooseOpponent(ctx)

			Convey("Then the current opponent is kept", func() {
				So(err, ShouldBeNil)
				So(level, ShouldEqual, 0)
			})
		})

		Convey("When the sigma gap exceeds the threshold", func() {
			m := loadWithSigmas(ctx, 2.0)
			m.state, m.current = OpponentChosen, 0

			level, err := m.ChooseOpponent(ctx)

			Convey("Then the manager switches to the candidate", func() {
				So(err, ShouldBeNil)
				So(level, ShouldEqual, 1)
				So(m.Switches(), ShouldEqual, 1)
			})
		})

		Convey("When running in baseline mode", func() {
			m := loadWithSigmas(ctx, 1.3, WithBaseline(true))
			m.state, m.current = OpponentChosen, 0

			level, err := m.ChooseOpponent(ctx)

			Convey("Then the candidate is always taken", func() {
				So(err, ShouldBeNil)
				So(level, ShouldEqual, 1)
			})
		})

		Convey("When the threshold is widened", func() {
			m := loadWithSigmas(ctx, 2.0, WithHysteresis(1.5))
			m.state, m.current = OpponentChosen, 0

			level, err := m.ChooseOpponent(ctx)

			Convey("Then a gap of 1.0 no longer switches", func() {
				So(err, ShouldBeNil)
				So(level, ShouldEqual, 0)
			})
		})
	})
}

func TestRecalibrationDue(t *testing.T) {
	Convey("Given the recalibration schedule", t, func() {
		So(recalibrationDue(7, 5, 0), ShouldBeTrue)
		So(recalibrationDue(5, 5, 1), ShouldBeTrue)
		So(recalibrationDue(4, 5, 1), ShouldBeFalse)
		So(recalibrationDue(25, 5, 2), ShouldBeTrue)
		So(recalibrationDue(30, 5, 2), ShouldBeFalse)
		So(recalibrationDue(8, 2, 3), ShouldBeTrue)

		Convey("An overflowing period is never due", func() {
			So(recalibrationDue(0, 5, 200), ShouldBeFalse)
		})
	})
}

func TestResolvePairs(t *testing.T) {
	Convey("Given level ids 10, 20 and 30", t, func() {
		levels := []int{10, 20, 30}

		Convey("Default pairs resolve to indexes", func() {
			idx, err := resolvePairs(DefaultPairs(levels), levels)
			So(err, ShouldBeNil)
			So(idx, ShouldResemble, [][2]int{{0, 1}, {1, 2}, {0, 2}})
		})

		Convey("Unknown or reversed levels are rejected", func() {
			_, err := resolvePairs([][2]int{{10, 40}}, levels)
			So(errors.Is(err, ErrInvalidPairs), ShouldBeTrue)
			_, err = resolvePairs([][2]int{{30, 10}}, levels)
			So(errors.Is(err, ErrInvalidPairs), ShouldBeTrue)
		})
	})
}
