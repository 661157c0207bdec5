package simulation

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/ladder/internal/domain/skill"
)

func TestOutcomeFromReward(t *testing.T) {
	Convey("Given episode results", t, func() {
		cases := []struct {
			reward float64
			fallen bool
			want   skill.Outcome
		}{
			{-0.1, false, skill.Loss},
			{-50, true, skill.Loss},
			{150, true, skill.Draw},
			{250, true, skill.Draw},
			{200.5, false, skill.Win},
			{200, false, skill.Draw},
			{0, false, skill.Draw},
		}
		for _, c := range cases {
			So(OutcomeFromReward(c.reward, c.fallen), ShouldEqual, c.want)
		}
	})
}

func TestWalker(t *testing.T) {
	Convey("Given two walkers with the same seed", t, func() {
		a, b := NewWalker(7), NewWalker(7)

		Convey("Then they play identical episodes", func() {
			for i := 0; i < 20; i++ {
				ra, fa := a.Episode(i % 3)
				rb, fb := b.Episode(i % 3)
				So(ra, ShouldEqual, rb)
				So(fa, ShouldEqual, fb)
			}
		})
	})

	Convey("Given a learning walker", t, func() {
		w := NewWalker(1, WithSkill(0), WithLearnRate(0.1))

		Convey("When it plays the hardest level", func() {
			w.Episode(2)

			Convey("Then it learns more than on level 0", func() {
				So(w.Skill(), ShouldAlmostEqual, 0.2, 1e-12)
				w.Episode(0)
				So(w.Skill(), ShouldAlmostEqual, 0.3, 1e-12)
			})
		})
	})

	Convey("Given walkers that do not learn", t, func() {
		wins := func(level int) int {
			w := NewWalker(42, WithLearnRate(0), WithSkill(1.5))
			n := 0
			for i := 0; i < 2000; i++ {
				if o, _, _ := w.Play(context.Background(), level); o == skill.Win {
					n++
				}
			}
			return n
		}

		Convey("Then harder levels are won less often", func() {
			easy, hard := wins(0), wins(2)
			So(easy, ShouldBeGreaterThan, hard)
			So(easy, ShouldBeGreaterThan, 1500)
			So(hard, ShouldBeLessThan, 500)
		})
	})

	Convey("Given level difficulties", t, func() {
		w := NewWalker(0, WithDifficulties([]float64{0, 2}))

		Convey("Then unknown levels are extrapolated", func() {
			So(w.difficulty(-1), ShouldEqual, 0)
			So(w.difficulty(1), ShouldEqual, 2)
			So(w.difficulty(3), ShouldEqual, 6)
		})
	})

	Convey("Given a cancelled context", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, _, err := NewWalker(0).Play(ctx, 0)

		Convey("Then Play returns the context error", func() {
			So(err, ShouldEqual, context.Canceled)
		})
	})
}
