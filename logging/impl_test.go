package logging

import (
	"encoding/json"
	"testing"

	"go.uber.org/zap/zapcore"
	"go.viam.com/test"
)

func TestLevelFiltering(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)

	logger.Debugw("debug line", "feature", 3)
	test.That(t, logs.FilterMessage("debug line").Len(), test.ShouldEqual, 1)

	logger.SetLevel(WARN)
	test.That(t, logger.GetLevel(), test.ShouldEqual, WARN)
	logger.Infof("info %d", 1)
	logger.Warnf("warn %d", 2)
	test.That(t, logs.FilterMessage("info 1").Len(), test.ShouldEqual, 0)
	test.That(t, logs.FilterMessage("warn 2").Len(), test.ShouldEqual, 1)
	test.That(t, logs.FilterMessage("warn 2").All()[0].Level, test.ShouldEqual, zapcore.WarnLevel)
}

func TestSublogger(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	sub := logger.Sublogger("epipolar")
	sub.Infow("grouped", "groups", 7)

	entries := logs.FilterMessage("grouped").All()
	test.That(t, entries, test.ShouldHaveLength, 1)
	test.That(t, entries[0].LoggerName, test.ShouldEqual, "epipolar")
	test.That(t, entries[0].ContextMap()["groups"], test.ShouldEqual, int64(7))

	// subloggers own their level
	sub.SetLevel(ERROR)
	sub.Warn("dropped")
	logger.Warn("kept")
	test.That(t, logs.FilterMessage("dropped").Len(), test.ShouldEqual, 0)
	test.That(t, logs.FilterMessage("kept").Len(), test.ShouldEqual, 1)

	named := sub.Sublogger("grid")
	named.Error("boom")
	test.That(t, logs.FilterMessage("boom").All()[0].LoggerName, test.ShouldEqual, "epipolar.grid")
}

func TestLevelJSON(t *testing.T) {
	for _, level := range []Level{DEBUG, INFO, WARN, ERROR} {
		data, err := json.Marshal(level)
		test.That(t, err, test.ShouldBeNil)
		var parsed Level
		test.That(t, json.Unmarshal(data, &parsed), test.ShouldBeNil)
		test.That(t, parsed, test.ShouldEqual, level)
	}

	_, err := LevelFromString("loud")
	test.That(t, err, test.ShouldNotBeNil)
	level, err := LevelFromString("WARNING")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, level, test.ShouldEqual, WARN)
}

func TestBlankLogger(t *testing.T) {
	logger := NewBlankLogger("quiet")
	logger.Error("nobody listens")
	test.That(t, logger.Sync(), test.ShouldBeNil)
}
