package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitalhub/dhsdk/pkg/entity"
)

func TestAPIRoundTrip(t *testing.T) {
	refs := []APIRef{
		{Type: entity.TypeProject},
		{Type: entity.TypeProject, Name: "p1"},
		{Project: "p1", Type: entity.TypeFunction},
		{Project: "p1", Type: entity.TypeFunction, ID: "a1b2"},
		{Project: "p1", Type: entity.TypeRun, ID: "r-1", Action: "stop"},
		{Project: "my project", Type: entity.TypeArtifact, ID: "x/y"},
	}
	for _, ref := range refs {
		t.Run(ref.String(), func(t *testing.T) {
			got, err := ParseAPI(ref.String())
			require.NoError(t, err)
			assert.Equal(t, ref, got)
		})
	}
}

func TestAPIShapes(t *testing.T) {
	assert.Equal(t, "/api/v1/projects/p1", BaseAPI(entity.TypeProject, "p1"))
	assert.Equal(t, "/api/v1/-/p1/functions/id-1", ContextAPI("p1", entity.TypeFunction, "id-1"))
	assert.Equal(t, "/api/v1/-/p1/runs/r-1/stop", ActionAPI("p1", entity.TypeRun, "r-1", "stop"))
	assert.Equal(t, "/api/v1/-/p1/functions?name=fn", NameAPI("p1", entity.TypeFunction, "fn"))

	ref, err := ParseAPI(NameAPI("p1", entity.TypeFunction, "fn"))
	require.NoError(t, err)
	assert.Equal(t, APIRef{Project: "p1", Type: entity.TypeFunction}, ref)
}

func TestParseAPIInvalid(t *testing.T) {
	for _, api := range []string{
		"",
		"/api/v2/projects",
		"/api/v1/unknown",
		"/api/v1/projects/p1/extra",
		"/api/v1/-/p1",
		"/api/v1/-/p1/functions/id/stop/again",
		"/api/v1/-//functions",
	} {
		_, err := ParseAPI(api)
		assert.Error(t, err, "ParseAPI(%q)", api)
	}
}
