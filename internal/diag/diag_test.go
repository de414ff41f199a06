package diag

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAssignsDistinctCorrelationIDs(t *testing.T) {
	a := New(nil)
	b := New(nil)
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestInfofPrefixesCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf)

	log.Infof("compiling %s", "<test>")

	out := buf.String()
	assert.Contains(t, out, log.ID())
	assert.Contains(t, out, "compiling <test>")
}

func TestWarnfAndErrorfTagTheirLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf)

	log.Warnf("docstring stripped")
	log.Errorf("unbalanced frame-block stack")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require := assert.New(t)
	require.Len(lines, 2)
	require.Contains(lines[0], "WARN docstring stripped")
	require.Contains(lines[1], "ERROR unbalanced frame-block stack")
}
