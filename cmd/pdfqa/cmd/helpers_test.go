package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/pdfqa/internal/config"
	"github.com/Aman-CERP/pdfqa/internal/document"
	"github.com/Aman-CERP/pdfqa/internal/index"
	"github.com/Aman-CERP/pdfqa/internal/index/indextest"
	"github.com/Aman-CERP/pdfqa/internal/store"
)

// testEnv isolates config, data and logs under a temp dir and routes the
// index client to a fake.
type testEnv struct {
	dir     string
	dataDir string
	fake    *indextest.Fake
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	return setupEnvAt(t, t.TempDir(), t.TempDir())
}

func setupEnvAt(t *testing.T, home, dataDir string) *testEnv {
	t.Helper()

	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "config"))
	t.Setenv("PDFQA_DATA_DIR", dataDir)
	t.Setenv("PDFQA_OWNER_ID", "tester")
	t.Setenv("PDFQA_STORE_DRIVER", "sqlite")
	t.Setenv("OPENAI_API_KEY", "")
	t.Chdir(home)

	fake := indextest.New()
	orig := newIndexClient
	newIndexClient = func(*config.Config) (index.Client, error) { return fake, nil }
	t.Cleanup(func() { newIndexClient = orig })

	return &testEnv{dir: home, dataDir: dataDir, fake: fake}
}

// collectionID reads the owner's collection id from the store.
func (e *testEnv) collectionID(t *testing.T) string {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(e.dataDir, "documents.db"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	owner, err := s.GetOwner(context.Background(), "tester")
	require.NoError(t, err)
	require.NotEmpty(t, owner.CollectionID)
	return owner.CollectionID
}

// execute runs the root command with args and returns combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(append([]string{"--no-color"}, args...))
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

// listDocs runs `docs list --json`.
func listDocs(t *testing.T) []document.Record {
	t.Helper()
	out, err := execute(t, "docs", "list", "--json")
	require.NoError(t, err)
	var docs []document.Record
	require.NoError(t, json.Unmarshal([]byte(out), &docs))
	return docs
}
