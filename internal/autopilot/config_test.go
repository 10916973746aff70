package autopilot

import (
	"errors"
	"testing"
)

func TestNewConfig_RejectsOpenPRBelowWeave(t *testing.T) {
	_, err := NewConfig(Config{MaxLevel: LevelAnnotate, OpenPR: true})
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError, got %v", err)
	}
}

func TestNewConfig_RejectsCloseSupersededBelowFinalize(t *testing.T) {
	_, err := NewConfig(Config{MaxLevel: LevelWeave, CloseSuperseded: true})
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError, got %v", err)
	}
}

func TestNewConfig_RejectsCommentTemplateBelowAnnotate(t *testing.T) {
	_, err := NewConfig(Config{MaxLevel: LevelArtifacts, CommentTemplate: "hi"})
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError, got %v", err)
	}
}

func TestNewConfig_AcceptsValidCombination(t *testing.T) {
	cfg, err := NewConfig(Config{MaxLevel: LevelFinalize, OpenPR: true, CloseSuperseded: true, CommentTemplate: "tmpl"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxLevel != LevelFinalize {
		t.Fatalf("expected MaxLevel %d, got %d", LevelFinalize, cfg.MaxLevel)
	}
}

func TestAuthorize_NilGrantedAlwaysPasses(t *testing.T) {
	cfg, _ := NewConfig(Config{MaxLevel: LevelFinalize})
	if err := Authorize(cfg, nil); err != nil {
		t.Fatalf("expected no error with nil granted set, got %v", err)
	}
}

func TestAuthorize_DeniesMissingPermission(t *testing.T) {
	cfg, _ := NewConfig(Config{MaxLevel: LevelWeave})
	granted := PermissionSet{PermissionAnnotate: true}
	err := Authorize(cfg, granted)
	var permErr *PermissionError
	if !errors.As(err, &permErr) {
		t.Fatalf("expected *PermissionError, got %v", err)
	}
	if permErr.Required != PermissionCreatePR {
		t.Fatalf("expected required permission %s, got %s", PermissionCreatePR, permErr.Required)
	}
}

func TestAuthorize_GrantsMatchingPermission(t *testing.T) {
	cfg, _ := NewConfig(Config{MaxLevel: LevelAnnotate})
	granted := PermissionSet{PermissionAnnotate: true}
	if err := Authorize(cfg, granted); err != nil {
		t.Fatalf("expected authorization to succeed, got %v", err)
	}
}

func TestRequiredPermission_Table(t *testing.T) {
	cases := map[int]Permission{
		LevelReportOnly: PermissionRead,
		LevelArtifacts:  PermissionArtifacts,
		LevelAnnotate:   PermissionAnnotate,
		LevelWeave:      PermissionCreatePR,
		LevelFinalize:   PermissionMerge,
	}
	for level, want := range cases {
		if got := RequiredPermission(level); got != want {
			t.Errorf("RequiredPermission(%d) = %s, want %s", level, got, want)
		}
	}
}
