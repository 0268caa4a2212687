package commands

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCurrentUser(t *testing.T) {
	t.Setenv("OCR_USER", "")
	assert.Equal(t, "local", currentUser(""))
	assert.Equal(t, "alice", currentUser("alice"))

	t.Setenv("OCR_USER", "bob")
	assert.Equal(t, "bob", currentUser(""))
	assert.Equal(t, "alice", currentUser("alice"))
}

func TestParseDocumentID(t *testing.T) {
	id := uuid.New()
	got, err := parseDocumentID(id.String())
	assert.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = parseDocumentID("not-a-uuid")
	assert.Error(t, err)
}
