package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"alcyxob/workout-tracker/internal/app"
	"alcyxob/workout-tracker/internal/config"
	"alcyxob/workout-tracker/internal/domain"
	"alcyxob/workout-tracker/internal/reconcile"
	"alcyxob/workout-tracker/internal/repository/memory"
	"alcyxob/workout-tracker/internal/service"
	"alcyxob/workout-tracker/internal/storage"
	"alcyxob/workout-tracker/internal/weekly"
)

type env struct {
	weeks    *memory.WeeklyRepository
	sessions *memory.SessionRepository
	build    builder
}

func newEnv(t *testing.T) *env {
	t.Helper()
	t.Setenv("STORAGE_MODE", "memory")
	e := &env{weeks: memory.NewWeeklyRepository(), sessions: memory.NewSessionRepository()}
	policy := reconcile.DefaultPolicy()
	svc := service.NewWeekService(e.weeks, e.sessions, storage.NewMemoryStorage(),
		reconcile.NewEngine(policy, time.UTC), domain.WeekSettings{}, nil, zerolog.Nop())
	e.build = func(context.Context, config.Config, zerolog.Logger) (*app.App, error) {
		return &app.App{Service: svc, Policy: policy, Location: time.UTC, Logger: zerolog.Nop()}, nil
	}
	return e
}

func (e *env) run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	args = append(args, "--config", t.TempDir())
	code := run(context.Background(), args, &stdout, &stderr, e.build)
	return code, stdout.String(), stderr.String()
}

func (e *env) logBurst(t *testing.T) {
	t.Helper()
	base := time.Date(2025, 9, 24, 22, 6, 0, 0, time.UTC).UnixMilli()
	for i := int64(0); i < 3; i++ {
		_, err := e.sessions.Add(context.Background(), &domain.SessionEvent{
			UserID:       "u1",
			DateISO:      "2025-09-24",
			SessionTypes: []string{"Meditation"},
			CompletedAt:  base + i*1000,
			Manual:       true,
		})
		require.NoError(t, err)
	}
}

func TestRun_Usage(t *testing.T) {
	e := newEnv(t)
	code, _, stderr := e.run(t, "explode")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "unknown command")

	code, _, stderr = e.run(t, "inspect", "--week", "2025-09-22")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "--user is required")

	code, _, _ = e.run(t, "restore", "--user", "u1", "--week", "2025-09-22")
	assert.Equal(t, exitUsage, code)
}

func TestRun_InspectMissingWeek(t *testing.T) {
	e := newEnv(t)
	code, _, stderr := e.run(t, "inspect", "--user", "u1", "--week", "2025-09-22")
	assert.Equal(t, exitFailed, code)
	assert.Contains(t, stderr, "week not found")
}

func TestRun_RebuildDryRunYAML(t *testing.T) {
	e := newEnv(t)
	e.logBurst(t)

	code, stdout, stderr := e.run(t, "rebuild", "--user", "u1", "--week", "2025-09-25", "--dry-run", "-o", "yaml")
	require.Equal(t, exitOK, code, stderr)

	var out map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, false, out["written"])
	doc := out["document"].(map[string]any)
	assert.Equal(t, "2025-09-22", doc["weekOfISO"])

	_, err := e.weeks.Get(context.Background(), "u1", "2025-09-22")
	assert.Error(t, err)
}

func TestRun_DedupeThenInspect(t *testing.T) {
	e := newEnv(t)
	e.logBurst(t)

	code, stdout, stderr := e.run(t, "dedupe", "--user", "u1", "--week", "2025-09-22", "--burst-window", "10s")
	require.Equal(t, exitOK, code, stderr)
	var out service.RepairOutcome
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Len(t, out.Deleted, 2)
	assert.Equal(t, 1, out.Document.Days[2].SessionCount)

	code, stdout, _ = e.run(t, "inspect", "--user", "u1", "--week", "2025-09-22")
	assert.Equal(t, exitOK, code)
	var report weekly.Report
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.True(t, report.Canonical)
}

func TestRun_InspectUnhealthy(t *testing.T) {
	e := newEnv(t)
	doc, err := weekly.DefaultWeekly("2025-09-22", domain.WeekSettings{})
	require.NoError(t, err)
	doc.Days = append(doc.Days[3:], doc.Days[:3]...)
	require.NoError(t, e.weeks.Set(context.Background(), "u1", "2025-09-22", doc))

	code, _, _ := e.run(t, "inspect", "--user", "u1", "--week", "2025-09-22")
	assert.Equal(t, exitUnhealthy, code)

	code, _, _ = e.run(t, "normalize", "--user", "u1", "--week", "2025-09-22")
	assert.Equal(t, exitOK, code)

	code, stdout, _ := e.run(t, "snapshots", "--user", "u1", "--week", "2025-09-22")
	require.Equal(t, exitOK, code)
	var snaps []storage.SnapshotInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &snaps))
	require.Len(t, snaps, 1)

	code, _, _ = e.run(t, "restore", "--user", "u1", "--week", "2025-09-22", "--key", snaps[0].Key)
	assert.Equal(t, exitOK, code)
}
