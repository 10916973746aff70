// Package profile resolves the active profile directory and its
// declared role, and enforces the read-only contract that role
// "example" implies (spec.md §4.2/§4.9). Resolution happens once per
// process into an Env value that is passed explicitly rather than read
// from the environment throughout the codebase.
package profile

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/antigravity-dev/lex-pr-runner/internal/loader"
)

// decodeProfileYAML strictly decodes profile.yml, rejecting unknown
// fields the same way loader's file decoders do.
func decodeProfileYAML(data []byte, out *loader.ProfileFile) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(out)
}

// Role values recognized on profile.yml.
const (
	RoleExample     = "example"
	RoleLocal       = "local"
	RoleDevelopment = "development"
	RoleProduction  = "production"
)

// Profile is a resolved profile directory plus its declared role.
type Profile struct {
	Dir  string
	Role string
	Name string
}

// CanWrite reports whether the profile's role permits mutating
// operations. Only "example" is read-only; every other role, including
// ones not enumerated above, is writable.
func (p *Profile) CanWrite() bool {
	return p.Role != RoleExample
}

// WriteProtectionError is returned whenever a caller attempts a
// mutating operation against a read-only profile. It names the role and
// suggests the override paths a caller can use to get a writable one.
type WriteProtectionError struct {
	Role string
	Dir  string
}

func (e *WriteProtectionError) Error() string {
	return fmt.Sprintf(
		"profile %q has role %q (read-only); use %s or set LEX_PR_PROFILE_DIR to a writable profile",
		e.Dir, e.Role, filepath.Join(filepath.Dir(e.Dir), ".smartergpt.local"),
	)
}

// Resolve determines the profile directory per spec.md §4.2's
// precedence — env override (LEX_PR_PROFILE_DIR) wins; otherwise prefer
// "<cwd>/.smartergpt.local" then "<cwd>/.smartergpt" — and loads its
// profile.yml for role/name. A missing profile.yml defaults to role
// "example" (read-only), matching loader.Load's own default.
func Resolve(cwd, envOverride string) (*Profile, error) {
	dir, err := resolveDir(cwd, envOverride)
	if err != nil {
		return nil, err
	}

	var pf loader.ProfileFile
	path := filepath.Join(dir, "profile.yml")
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if decodeErr := decodeProfileYAML(data, &pf); decodeErr != nil {
			return nil, &loader.LoadError{Path: path, Cause: decodeErr}
		}
	case os.IsNotExist(err):
		pf.Role = RoleExample
	default:
		return nil, &loader.LoadError{Path: path, Cause: err}
	}

	if pf.Role == "" {
		pf.Role = RoleExample
	}

	return &Profile{Dir: dir, Role: pf.Role, Name: pf.Name}, nil
}

func resolveDir(cwd, envOverride string) (string, error) {
	if envOverride != "" {
		return envOverride, nil
	}

	local := filepath.Join(cwd, ".smartergpt.local")
	if isDir(local) {
		return local, nil
	}

	shared := filepath.Join(cwd, ".smartergpt")
	if isDir(shared) {
		return shared, nil
	}

	return "", fmt.Errorf("profile: no .smartergpt.local or .smartergpt found under %s and LEX_PR_PROFILE_DIR is unset", cwd)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// CheckWrite returns a *WriteProtectionError if p's role forbids writes,
// else nil. Callers performing any filesystem or forge mutation must
// call this before touching anything.
func (p *Profile) CheckWrite() error {
	if p.CanWrite() {
		return nil
	}
	return &WriteProtectionError{Role: p.Role, Dir: p.Dir}
}
