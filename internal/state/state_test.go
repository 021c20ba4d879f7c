package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractReturnsEmptyWithoutMarker(t *testing.T) {
	assert.Equal(t, "", Extract("just plain assistant text"))
}

func TestExtractReturnsWholeBlockAtEndOfText(t *testing.T) {
	text := "done with the task\n\n### STATE\nGoal: ship it\nContext: main.go"
	assert.Equal(t, "### STATE\nGoal: ship it\nContext: main.go", Extract(text))
}

func TestExtractStopsAtNextHeading(t *testing.T) {
	text := "### STATE\nGoal: ship it\n\n# Unrelated heading\nmore text"
	assert.Equal(t, "### STATE\nGoal: ship it", Extract(text))
}

func TestExtractStopsAtHorizontalRule(t *testing.T) {
	text := "### STATE\nGoal: ship it\n---\ntrailing notes"
	assert.Equal(t, "### STATE\nGoal: ship it", Extract(text))
}

func TestExtractStopsAtWhicheverComesFirst(t *testing.T) {
	text := "### STATE\nGoal: ship it\n---\nfirst cut\n# later heading\nmore"
	assert.Equal(t, "### STATE\nGoal: ship it", Extract(text))
}

func TestExtractTrimsSurroundingWhitespace(t *testing.T) {
	text := "### STATE\n  Goal: ship it  \n\n\n"
	assert.Equal(t, "### STATE\n  Goal: ship it", Extract(text))
}
