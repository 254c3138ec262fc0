package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Plans["free"].MonthlyActions != 50 ||
		cfg.Plans["pro"].MonthlyActions != 500 ||
		cfg.Plans["studio"].MonthlyActions != 5000 {
		t.Fatalf("plans = %+v", cfg.Plans)
	}
	if cfg.Assistant.EntitledPlan != "studio" {
		t.Fatalf("entitled_plan = %q", cfg.Assistant.EntitledPlan)
	}
	if cfg.Assistant.BulkThreshold != 5 {
		t.Fatalf("bulk_threshold = %d", cfg.Assistant.BulkThreshold)
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(dir); err == nil || !strings.Contains(err.Error(), "gig init") {
		t.Fatalf("err = %v, want init hint", err)
	}

	cfg, err := LoadOptional(dir)
	if err != nil {
		t.Fatalf("load optional: %v", err)
	}
	if cfg.Assistant.EntitledPlan != "studio" {
		t.Fatalf("optional load should fall back to defaults, got %+v", cfg)
	}
}

func TestLoadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "gigline.yml"), []byte(GenerateDefault()), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Plans["studio"].MonthlyActions != 5000 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestValidateRejectsBrokenConfigs(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			"no plans",
			"assistant:\n  entitled_plan: studio\n  bulk_threshold: 5\n",
			"plans is required",
		},
		{
			"zero quota",
			"plans:\n  free:\n    monthly_actions: 0\nassistant:\n  entitled_plan: free\n  bulk_threshold: 5\n",
			"monthly_actions",
		},
		{
			"unknown entitled plan",
			"plans:\n  free:\n    monthly_actions: 50\nassistant:\n  entitled_plan: platinum\n  bulk_threshold: 5\n",
			"not a defined plan",
		},
		{
			"webhook without secret",
			"plans:\n  free:\n    monthly_actions: 50\nassistant:\n  entitled_plan: free\n  bulk_threshold: 5\nwebhook:\n  base_url: https://hooks.example.com\n",
			"webhook.secret",
		},
	}
	for _, c := range cases {
		if _, err := FromYAML([]byte(c.yaml)); err == nil || !strings.Contains(err.Error(), c.want) {
			t.Fatalf("%s: err = %v, want %q", c.name, err, c.want)
		}
	}
}
