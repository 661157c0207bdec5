package types_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/internal/domain/skill"
	types "github.com/okian/ladder/internal/domain/types"
)

func player(name string, mu, sigma float64) model.AgentRecord {
	return model.AgentRecord{Name: name, Surname: "x", Rating: skill.Rating{Mu: mu, Sigma: sigma}}
}

func TestLeaderboard(t *testing.T) {
	Convey("Given players with different certainty", t, func() {
		players := []model.AgentRecord{
			player("lucky", 35, 8),  // 11
			player("steady", 28, 2), // 22
			player("fresh", 25, 25.0/3),
			player("solid", 30, 3), // 21
		}

		Convey("When ranking all of them", func() {
			board := types.Leaderboard(players, 0)

			Convey("Then the conservative estimate decides the order", func() {
				So(board, ShouldHaveLength, 4)
				So(board[0].Name, ShouldEqual, "steady")
				So(board[0].Rank, ShouldEqual, 1)
				So(board[0].Score, ShouldAlmostEqual, 22, 1e-9)
				So(board[1].Name, ShouldEqual, "solid")
				So(board[2].Name, ShouldEqual, "lucky")
				So(board[3].Name, ShouldEqual, "fresh")
				So(board[3].Rank, ShouldEqual, 4)
			})

			Convey("And the input is left untouched", func() {
				So(players[0].Name, ShouldEqual, "lucky")
			})
		})

		Convey("When limiting the rows", func() {
			board := types.Leaderboard(players, 2)

			Convey("Then only the top rows are returned", func() {
				So(board, ShouldHaveLength, 2)
				So(board[1].Name, ShouldEqual, "solid")
			})
		})

		Convey("When scores tie", func() {
			board := types.Leaderboard([]model.AgentRecord{player("bea", 25, 5), player("abe", 25, 5)}, 0)

			Convey("Then names break the tie", func() {
				So(board[0].Name, ShouldEqual, "abe")
				So(board[1].Name, ShouldEqual, "bea")
			})
		})

		Convey("When there are no players", func() {
			So(types.Leaderboard(nil, 10), ShouldBeEmpty)
		})
	})
}
