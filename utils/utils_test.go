package utils

import (
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFingerprintDistinguishesContent(t *testing.T) {
	a := Fingerprint([]byte("same-name.png bytes v1"))
	b := Fingerprint([]byte("same-name.png bytes v2"))
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, Fingerprint([]byte("same-name.png bytes v1")))
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e:0", Fingerprint(nil))
}

func TestGenerateIDMonotonic(t *testing.T) {
	prev := GenerateID()
	for i := 0; i < 1000; i++ {
		next := GenerateID()
		assert.Greater(t, next, prev)
		prev = next
	}
}

func TestGenerateSessionIDIsRandom(t *testing.T) {
	before := time.Now().UnixNano()
	id := GenerateSessionID()
	after := time.Now().UnixNano()

	u, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), u.Version())

	// 不能按时间戳解码回创建时刻
	if n, err := strconv.ParseInt(id, 36, 64); err == nil {
		assert.False(t, n >= before && n <= after, "session id %s decodes to creation time", id)
	}

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		next := GenerateSessionID()
		require.False(t, seen[next])
		seen[next] = true
	}
	a, b := GenerateSessionID(), GenerateSessionID()
	assert.NotEqual(t, a[:8], b[:8])
}

func TestInitLogger(t *testing.T) {
	old := Logger
	defer func() { Logger = old }()

	require.NoError(t, InitLogger("release"))
	assert.True(t, Logger.Core().Enabled(zap.InfoLevel))
	assert.False(t, Logger.Core().Enabled(zap.DebugLevel))

	require.NoError(t, InitLogger("debug"))
	assert.True(t, Logger.Core().Enabled(zap.DebugLevel))
	Sync()
}
