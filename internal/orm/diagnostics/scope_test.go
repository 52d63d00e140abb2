package diagnostics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestScope_DeduplicatesPerEnumType(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	scope := NewScope(zap.New(core))

	for i := 0; i < 10; i++ {
		scope.LegacyEnumValue("IntEnumLegacyValues")
	}
	scope.LegacyEnumValue("ByteEnumLegacyValues")

	warnings := logs.FilterMessage(StringEnumValueInJSONMessage("IntEnumLegacyValues")).All()
	require.Len(t, warnings, 1)
	assert.Equal(t, zapcore.WarnLevel, warnings[0].Level)
	assert.Equal(t, "IntEnumLegacyValues", warnings[0].ContextMap()["enum"])
	assert.Equal(t, scope.ID().String(), warnings[0].ContextMap()["scope"])
	assert.Equal(t, EventStringEnumValueInJSON, warnings[0].ContextMap()["event"])

	assert.Len(t, logs.FilterMessage(StringEnumValueInJSONMessage("ByteEnumLegacyValues")).All(), 1)
	assert.Equal(t, map[string]int{"IntEnumLegacyValues": 10, "ByteEnumLegacyValues": 1}, scope.LegacyEnumCounts())
}

func TestScope_SeparateScopesLogIndependently(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	logger := zap.New(core)

	first := NewScope(logger)
	second := NewScope(logger)
	first.LegacyEnumValue("LongEnumLegacyValues")
	second.LegacyEnumValue("LongEnumLegacyValues")

	assert.Equal(t, 2, logs.FilterField(zap.String("enum", "LongEnumLegacyValues")).Len())
	assert.NotEqual(t, first.ID(), second.ID())
}

func TestScope_Concurrent(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	scope := NewScope(zap.New(core))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			scope.LegacyEnumValue("ULongEnumLegacyValues")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, logs.Len())
	assert.Equal(t, 50, scope.LegacyEnumCounts()["ULongEnumLegacyValues"])
}

func TestScope_NilLogger(t *testing.T) {
	scope := NewScope(nil)
	scope.LegacyEnumValue("Anything")
	scope.Close()
	assert.Equal(t, 1, scope.LegacyEnumCounts()["Anything"])
}

func TestScope_CloseSummary(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	scope := NewScope(zap.New(core))

	scope.Close()
	assert.Equal(t, 0, logs.Len())

	scope.LegacyEnumValue("A")
	scope.LegacyEnumValue("A")
	scope.Close()

	summary := logs.FilterMessage("materialization scope closed").All()
	require.Len(t, summary, 1)
	assert.Equal(t, int64(2), summary[0].ContextMap()["legacy_enum_values"])
}
