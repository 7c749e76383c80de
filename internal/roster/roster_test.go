package roster

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	apperrors "github.com/edgard/personachat/internal/errors"
	"github.com/edgard/personachat/internal/logger"
)

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

func writeRoster(t *testing.T, bots []BotProfile, teams []Team) string {
	t.Helper()
	root := t.TempDir()
	var botFiles, teamFiles []string
	for _, b := range bots {
		name := b.ID + ".json"
		botFiles = append(botFiles, name)
		writeJSON(t, filepath.Join(root, "bots", name), b)
	}
	for _, tm := range teams {
		name := tm.ID + ".json"
		teamFiles = append(teamFiles, name)
		writeJSON(t, filepath.Join(root, "teams", name), tm)
	}
	writeJSON(t, filepath.Join(root, "bots", "bot-list.json"), botFiles)
	writeJSON(t, filepath.Join(root, "teams", "team-list.json"), teamFiles)
	return root
}

func sampleBots() []BotProfile {
	return []BotProfile{
		{ID: "ana", FirstName: "Ana", LastName: "Visser", Speciality: "Logistics", Relationships: map[string]string{"bo": "sister"}},
		{ID: "bo", FirstName: "Bo", LastName: "Visser", Speciality: "Weather"},
		{ID: "cy", FirstName: "Cy", LastName: "de Boer", Speciality: "Sailing", Relationships: map[string]string{"ana": "friend", "ghost": "?"}},
	}
}

func sampleTeams() []Team {
	return []Team{
		{ID: "coastal", Name: "Coastal", LeaderID: "bo", MemberIDs: []string{"bo", "missing", "cy"}},
	}
}

func TestLoaderFromDirectory(t *testing.T) {
	t.Parallel()

	root := writeRoster(t, sampleBots(), sampleTeams())
	src, err := NewSource(root, nil)
	require.NoError(t, err)

	reg, err := NewLoader(src, 2, logger.Discard()).Load(context.Background())
	require.NoError(t, err)

	require.Equal(t, 3, reg.Len())
	ids := make([]string, 0, 3)
	for _, b := range reg.Bots() {
		ids = append(ids, b.ID)
	}
	assert.Equal(t, []string{"ana", "bo", "cy"}, ids, "manifest order is preserved")

	def, ok := reg.Default()
	require.True(t, ok)
	assert.Equal(t, "ana", def.ID)

	team, ok := reg.Team("coastal")
	require.True(t, ok)
	members := reg.TeamMembers(team)
	require.Len(t, members, 2, "unknown member ids are skipped")
	assert.Equal(t, "bo", members[0].ID)
	assert.Equal(t, "cy", members[1].ID)
}

func TestLoaderFromHTTP(t *testing.T) {
	t.Parallel()

	root := writeRoster(t, sampleBots(), sampleTeams())
	srv := httptest.NewServer(http.FileServer(http.Dir(root)))
	t.Cleanup(srv.Close)

	src, err := NewSource(srv.URL, srv.Client())
	require.NoError(t, err)

	reg, err := NewLoader(src, 4, logger.Discard()).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, reg.Len())
	assert.Len(t, reg.Teams(), 1)
}

func TestLoaderFailures(t *testing.T) {
	t.Parallel()

	t.Run("missing manifest", func(t *testing.T) {
		t.Parallel()
		_, err := NewLoader(DirSource(t.TempDir()), 1, logger.Discard()).Load(context.Background())
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeDataLoad, apperrors.Code(err))
		assert.Contains(t, err.Error(), "-list.json")
	})

	t.Run("missing profile file", func(t *testing.T) {
		t.Parallel()
		root := writeRoster(t, sampleBots(), sampleTeams())
		require.NoError(t, os.Remove(filepath.Join(root, "bots", "bo.json")))
		_, err := NewLoader(DirSource(root), 1, logger.Discard()).Load(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bots/bo.json")
	})

	t.Run("shape validation", func(t *testing.T) {
		t.Parallel()
		bots := sampleBots()
		bots[1].FirstName = ""
		root := writeRoster(t, bots, sampleTeams())
		_, err := NewLoader(DirSource(root), 1, logger.Discard()).Load(context.Background())
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeDataLoad, apperrors.Code(err))
		assert.Contains(t, err.Error(), "invalid document bots/bo.json")
	})

	t.Run("duplicate ids", func(t *testing.T) {
		t.Parallel()
		_, err := NewRegistry([]*BotProfile{{ID: "a", FirstName: "A"}, {ID: "a", FirstName: "B"}}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `duplicate bot id "a"`)
	})
}

func TestRegistryResolveAndRelated(t *testing.T) {
	t.Parallel()

	bots := sampleBots()
	ptrs := []*BotProfile{&bots[0], &bots[1], &bots[2]}
	reg, err := NewRegistry(ptrs, nil)
	require.NoError(t, err)

	resolved := reg.Resolve([]string{"cy", "nope", "cy", "ana"})
	require.Len(t, resolved, 2)
	assert.Equal(t, "cy", resolved[0].ID)
	assert.Equal(t, "ana", resolved[1].ID)

	assert.Equal(t, []string{"bo"}, reg.Related([]string{"ana"}))
	assert.Equal(t, []string{"ana"}, reg.Related([]string{"cy"}), "unknown relationship ids are dropped")
	assert.Empty(t, reg.Related([]string{"ana", "bo"}), "selected ids are not related to themselves")

	var empty *Registry
	_, ok := empty.Default()
	assert.False(t, ok)
}

func TestEffectiveAge(t *testing.T) {
	t.Parallel()

	b := BotProfile{Physical: PhysicalDetails{Age: 16}}
	assert.Equal(t, 18, b.EffectiveAge())
	b.Physical.Age = 27
	assert.Equal(t, 27, b.EffectiveAge())
}

func TestProfileMarkdown(t *testing.T) {
	t.Parallel()

	b := sampleBots()[0]
	b.Biography = "Runs the harbour office."
	b.Physical.Age = 17
	b.Advantages = []string{"Calm", "Organised"}

	md := ProfileMarkdown(&b)
	assert.True(t, strings.HasPrefix(md, "# Ana Visser - Logistics\n\n"))
	assert.Contains(t, md, "**ID:** ana\n")
	assert.Contains(t, md, "## Biography\nRuns the harbour office.\n")
	assert.Contains(t, md, "- **Age:** 18\n")
	assert.Contains(t, md, "- **Scars:** None\n")
	assert.Contains(t, md, "### Advantages\n- Calm\n- Organised\n")
}

func TestDocument(t *testing.T) {
	t.Parallel()

	b := sampleBots()[1]

	data, ctype, err := Document(&b, FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, "application/yaml", ctype)
	var back map[string]any
	require.NoError(t, yaml.Unmarshal(data, &back))
	assert.Equal(t, "bo", back["id"])

	data, ctype, err = Document(&b, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "application/json", ctype)
	assert.Contains(t, string(data), `"firstName": "Bo"`)

	_, _, err = Document(&b, "xml")
	assert.Error(t, err)
}
