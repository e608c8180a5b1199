package cmd

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/ledger"
)

func TestAdminHashPassword(t *testing.T) {
	var out bytes.Buffer
	adminHashPasswordCmd.SetOut(&out)
	defer adminHashPasswordCmd.SetOut(nil)
	require.NoError(t, adminHashPasswordCmd.Flags().Set("cost", "4"))
	defer adminHashPasswordCmd.Flags().Set("cost", "10")

	require.NoError(t, runAdminHashPassword(adminHashPasswordCmd, []string{"s3cret"}))

	hash := strings.TrimSpace(out.String())
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")))
}

func TestAdminHashPassword_Stdin(t *testing.T) {
	var out bytes.Buffer
	adminHashPasswordCmd.SetOut(&out)
	adminHashPasswordCmd.SetIn(strings.NewReader("from-stdin\n"))
	defer adminHashPasswordCmd.SetOut(nil)
	defer adminHashPasswordCmd.SetIn(nil)
	require.NoError(t, adminHashPasswordCmd.Flags().Set("cost", "4"))
	defer adminHashPasswordCmd.Flags().Set("cost", "10")

	require.NoError(t, runAdminHashPassword(adminHashPasswordCmd, nil))

	hash := strings.TrimSpace(out.String())
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("from-stdin")))
}

func TestAdminHashPassword_Rejects(t *testing.T) {
	adminHashPasswordCmd.SetIn(strings.NewReader("\n"))
	defer adminHashPasswordCmd.SetIn(nil)
	assert.Error(t, runAdminHashPassword(adminHashPasswordCmd, nil), "empty password")

	require.NoError(t, adminHashPasswordCmd.Flags().Set("cost", "99"))
	defer adminHashPasswordCmd.Flags().Set("cost", "10")
	assert.Error(t, runAdminHashPassword(adminHashPasswordCmd, []string{"x"}), "cost out of range")
}

func TestAttendanceQuery(t *testing.T) {
	t.Cleanup(func() {
		for _, f := range []string{"name", "since", "until"} {
			_ = attendanceCmd.Flags().Set(f, "")
		}
	})

	require.NoError(t, attendanceCmd.Flags().Set("name", "jane"))
	require.NoError(t, attendanceCmd.Flags().Set("since", "2026-03-01"))

	q, err := attendanceQuery(attendanceCmd)
	require.NoError(t, err)
	assert.Equal(t, "jane", q.Name)
	assert.True(t, q.Since.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.Local)), "since %v", q.Since)
	assert.True(t, q.Until.IsZero())

	require.NoError(t, attendanceCmd.Flags().Set("until", "yesterday"))
	_, err = attendanceQuery(attendanceCmd)
	assert.ErrorContains(t, err, "--until")
}

func TestRunAttendance_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attendance.csv")
	t.Setenv("LEDGER", ledger.BackendCSV)
	t.Setenv("LEDGER_PATH", path)

	csv := ledger.NewCSV(path)
	at := time.Date(2026, 3, 2, 8, 0, 0, 0, time.Local)
	require.NoError(t, csv.Append(context.Background(), ledger.NewEvent("alice", at, "s1")))
	require.NoError(t, csv.Append(context.Background(), ledger.NewEvent("bob", at.Add(time.Minute), "s1")))

	assert.NoError(t, runAttendance(attendanceCmd, nil))
}

func TestRunEnroll(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GALLERY_DIR", filepath.Join(dir, "gallery"))

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	good := filepath.Join(dir, "jane.png")
	require.NoError(t, os.WriteFile(good, buf.Bytes(), 0o644))
	bad := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(bad, []byte("hello"), 0o644))

	require.NoError(t, runEnroll(enrollCmd, []string{"Jane Doe", good, bad}))

	entries, err := os.ReadDir(filepath.Join(dir, "gallery"))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	files, err := os.ReadDir(filepath.Join(dir, "gallery", entries[0].Name()))
	require.NoError(t, err)
	assert.Len(t, files, 1)

	assert.Error(t, runEnroll(enrollCmd, []string{"Jane Doe", bad}), "nothing enrolled")
}

func TestApplyThreshold(t *testing.T) {
	a := newApp(&config.Config{Match: config.MatchConfig{Threshold: 0.6}})

	require.NoError(t, a.applyThreshold(0))
	assert.InDelta(t, 0.6, a.cfg.Match.Threshold, 1e-9)

	require.NoError(t, a.applyThreshold(0.45))
	assert.InDelta(t, 0.45, a.cfg.Match.Threshold, 1e-9)

	assert.Error(t, a.applyThreshold(-1))
	assert.NoError(t, a.Close())
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	defer versionCmd.SetOut(nil)

	versionCmd.Run(versionCmd, nil)

	assert.Contains(t, out.String(), "face-attendance "+Version)
	assert.Contains(t, out.String(), "Commit:")
}

func TestMustFlag_PanicsOnUnknownFlag(t *testing.T) {
	assert.Panics(t, func() { mustGetBool(versionCmd, "no-such-flag") })
}
