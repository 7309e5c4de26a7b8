// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoggerDropsBelowConfiguredLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("TEST", LevelWarn, &buf)

	l.Debugf("should not appear")
	l.Warnf("should appear: %d", 42)

	out := buf.String()
	require.NotContains(t, out, "should not appear")
	require.Contains(t, out, "should appear: 42")
	require.Contains(t, out, "[WRN]")
	require.Contains(t, out, "TEST")
}

func TestSetLevelChangesVerbosityAtRuntime(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("TEST", LevelInfo, &buf)

	l.Debugf("quiet")
	require.Empty(t, buf.String())

	l.SetLevel(LevelDebug)
	l.Debugf("loud")
	require.True(t, strings.Contains(buf.String(), "loud"))
}

func TestLevelFromStringParsesKnownNames(t *testing.T) {
	require.Equal(t, LevelTrace, LevelFromString("trace"))
	require.Equal(t, LevelDebug, LevelFromString("DEBUG"))
	require.Equal(t, LevelCritical, LevelFromString("critical"))
	require.Equal(t, LevelOff, LevelFromString("off"))
	require.Equal(t, LevelInfo, LevelFromString("unrecognized"))
}

func TestNewBackendCreatesLogDirectory(t *testing.T) {
	dir := t.TempDir() + "/nested/logs"
	b, err := NewBackend(dir+"/spvnode.log", 3)
	require.NoError(t, err)
	defer b.Close()

	logger := b.Logger("TEST", LevelInfo)
	logger.Infof("hello")
}
