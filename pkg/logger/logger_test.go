package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		Convey("When initialized with defaults", func() {
			So(Init(), ShouldBeNil)

			Convey("Then Get and Named should return loggers", func() {
				So(Get(), ShouldNotBeNil)
				So(Named("test"), ShouldNotBeNil)
				So(Sync(), ShouldBeNil)
			})
		})

		Convey("When initialized with an unknown format", func() {
			err := Init(WithFormat("xml"))

			Convey("Then it should fail", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestLoggerOutput(t *testing.T) {
	Convey("Given a JSON logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(Init(WithWriter(&buf), WithFormat(FormatJSON)), ShouldBeNil)
		ctx := context.Background()

		Convey("When logging with typed fields", func() {
			Get().Info(ctx, "game recorded",
				String("player", "ada"),
				Int("level", 2),
				Int64("id", 7),
				Float64("mu", 25.5),
				Bool("switched", true),
				Error(errors.New("boom")),
			)

			var line map[string]any
			So(json.Unmarshal(buf.Bytes(), &line), ShouldBeNil)

			Convey("Then every field should be present", func() {
				So(line["msg"], ShouldEqual, "game recorded")
				So(line["player"], ShouldEqual, "ada")
				So(line["level"], ShouldEqual, 2.0)
				So(line["id"], ShouldEqual, 7.0)
				So(line["mu"], ShouldEqual, 25.5)
				So(line["switched"], ShouldEqual, true)
				So(line["error"], ShouldEqual, "boom")
				So(line["source"], ShouldContainSubstring, "logger_test.go")
			})
		})

		Convey("When using With and Named", func() {
			Named("matchmaking").With(String("player", "ada")).Warn(ctx, "switch")

			Convey("Then fields should be grouped under the name", func() {
				So(buf.String(), ShouldContainSubstring, `"matchmaking":{"player":"ada"`)
			})
		})

		Convey("When the level is raised above the message level", func() {
			So(SetLevelString("error"), ShouldBeNil)
			Get().Debug(ctx, "hidden")
			Get().Info(ctx, "hidden")

			Convey("Then nothing should be written", func() {
				So(buf.Len(), ShouldEqual, 0)
			})
			SetLevel(slog.LevelInfo)
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given level names", t, func() {
		So(Init(WithWriter(&strings.Builder{})), ShouldBeNil)

		for _, name := range []string{"debug", "INFO", " warn ", "warning", "error", ""} {
			So(SetLevelString(name), ShouldBeNil)
		}
		So(SetLevelString("verbose"), ShouldNotBeNil)
		SetLevel(slog.LevelInfo)
	})
}
