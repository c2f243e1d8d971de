package main

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestWeekCommand(t *testing.T) {
	orig := now
	t.Cleanup(func() { now = orig })
	now = func() time.Time { return time.Date(2026, time.October, 19, 1, 0, 0, 0, time.UTC) }

	cases := map[string]string{
		"UTC":               "2026-10-26",
		"America/Sao_Paulo": "2026-10-19",
	}
	for tz, want := range cases {
		t.Run(tz, func(t *testing.T) {
			if _, err := time.LoadLocation(tz); err != nil {
				t.Skipf("нет базы часовых поясов: %v", err)
			}
			var out bytes.Buffer
			cmd := rootCmd()
			cmd.SetOut(&out)
			cmd.SetArgs([]string{"week", "--tz", tz})
			if err := cmd.Execute(); err != nil {
				t.Fatalf("неожиданная ошибка: %v", err)
			}
			if got := strings.TrimSpace(out.String()); got != want {
				t.Fatalf("ожидали %s, получили %s", want, got)
			}
		})
	}
}

func TestGenerateRejectsBadID(t *testing.T) {
	cmd := rootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"generate", "nope"})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "invalid company id") {
		t.Fatalf("ожидали ошибку разбора id, получили %v", err)
	}
}
