package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_PassThroughWithoutMarkers(t *testing.T) {
	out, err := Render("plain prompt", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain prompt", out)
}

func TestRender_SubstitutesFields(t *testing.T) {
	data := struct {
		Name     string
		Identity string
	}{Name: "alice", Identity: "Alice bakes bread."}

	out, err := Render("You are {{title .Name}}. {{.Identity}}", data)
	require.NoError(t, err)
	assert.Equal(t, "You are Alice. Alice bakes bread.", out)
}

func TestRender_RejectsMalformedTemplate(t *testing.T) {
	_, err := Render("{{.Name", nil)
	assert.Error(t, err)
}
