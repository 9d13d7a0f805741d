package main_test

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fwojciec/modharvest"
	main "github.com/fwojciec/modharvest/cmd/modharvest"
	"github.com/fwojciec/modharvest/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lessonPage renders a module page the default normalizer recognizes.
func lessonPage(_ context.Context, locator string) (string, error) {
	return `<html><body><nav>Menu</nav><main><h1>Lesson</h1>` +
		`<p>This lesson lives at ` + locator + ` and has enough text.</p>` +
		`<img src="/img/diagram.png" alt="Diagram"></main></body></html>`, nil
}

func newTestMain(t *testing.T) *main.Main {
	t.Helper()

	m := main.NewMain()
	m.DBPath = filepath.Join(t.TempDir(), "harvest.db")
	m.Browser = courseBrowser(lessonPage)
	m.Now = func() time.Time { return now }
	return m
}

func TestMain_Run_EndToEnd(t *testing.T) {
	t.Parallel()

	m := newTestMain(t)
	outDir := filepath.Join(t.TempDir(), "export")
	ctx := context.Background()

	// Given a course with three modules
	// When the harvest runs to completion
	stdout := &bytes.Buffer{}
	err := m.Run(ctx, []string{"run", "--base-url", "https://learn.test/m/", "-o", outDir}, stdout, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "Harvested 3 modules in 2 sections (0 failed)")

	// Then the export holds the aggregate, the records and one markdown file per module
	_, err = os.Stat(filepath.Join(outDir, fs.AggregateFile))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(outDir, fs.RecordsFile))
	require.NoError(t, err)
	entries, err := os.ReadDir(filepath.Join(outDir, fs.ModulesDir))
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	md, err := os.ReadFile(filepath.Join(outDir, fs.ModulesDir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(md), "This lesson lives at https://learn.test/m/a")
	assert.NotContains(t, string(md), "Menu")

	// And status reports the completed run
	stdout.Reset()
	err = m.Run(ctx, []string{"status"}, stdout, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "completed")
	assert.Contains(t, stdout.String(), "3/3")
	assert.Contains(t, stdout.String(), "Stored:   2 sections, 3 modules")
	assert.Contains(t, stdout.String(), "Failed:   0")

	// When the run is repeated it only re-emits the output
	var opened bool
	m.Browser = courseBrowser(func(context.Context, string) (string, error) {
		opened = true
		return "", nil
	})
	stdout.Reset()
	err = m.Run(ctx, []string{"run", "--base-url", "https://learn.test/m/"}, stdout, &bytes.Buffer{})
	require.NoError(t, err)
	assert.False(t, opened)
	assert.Contains(t, stdout.String(), "already completed")

	// And reset clears the checkpoint
	stdout.Reset()
	err = m.Run(ctx, []string{"reset", "--force"}, stdout, &bytes.Buffer{})
	require.NoError(t, err)

	stdout.Reset()
	err = m.Run(ctx, []string{"status"}, stdout, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "No checkpoint")
}

func TestMain_Run_StateDir(t *testing.T) {
	t.Parallel()

	m := newTestMain(t)
	stateDir := t.TempDir()

	err := m.Run(context.Background(),
		[]string{"--state-dir", stateDir, "run", "--base-url", "https://learn.test/m/"},
		&bytes.Buffer{}, &bytes.Buffer{})

	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(stateDir, "HARVEST_STATE.json"))
	require.NoError(t, err)
}

func TestMain_Run_RecordsFailedModules(t *testing.T) {
	t.Parallel()

	m := newTestMain(t)
	m.Browser = courseBrowser(func(ctx context.Context, locator string) (string, error) {
		if locator == "https://learn.test/m/c" {
			return "", modharvest.Errorf(modharvest.ETIMEOUT, "waiting for content")
		}
		return lessonPage(ctx, locator)
	})
	ctx := context.Background()

	err := m.Run(ctx, []string{"run", "--base-url", "https://learn.test/m/", "--retries", "0"}, &bytes.Buffer{}, &bytes.Buffer{})
	require.NoError(t, err)

	stdout := &bytes.Buffer{}
	err = m.Run(ctx, []string{"status"}, stdout, &bytes.Buffer{})

	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "Failed:   1")
	assert.Contains(t, stdout.String(), "Advanced / Deploy: "+modharvest.ReasonPageTimeout)
}

func TestMain_Run_HTTPEngine(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /course", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><script id="__NEXT_DATA__" type="application/json">`+
			`{"sections":[{"id":"s1","title":"Basics","modules":[{"id":"a","title":"Welcome"},{"id":"b","title":"Setup"}]}]}`+
			`</script></body></html>`)
	})
	mux.HandleFunc("GET /m/{id}", func(w http.ResponseWriter, r *http.Request) {
		html, _ := lessonPage(r.Context(), r.PathValue("id"))
		fmt.Fprint(w, html)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	m := main.NewMain()
	m.DBPath = filepath.Join(t.TempDir(), "harvest.db")

	stdout := &bytes.Buffer{}
	err := m.Run(context.Background(), []string{
		"run", "--engine", "http",
		"--base-url", srv.URL + "/m/",
		"--tree-url", srv.URL + "/course",
	}, stdout, &bytes.Buffer{})

	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "Harvested 2 modules in 1 sections (0 failed)")
}
