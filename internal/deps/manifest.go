package deps

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mrz1836/foreman/internal/domain"
	foremanerrors "github.com/mrz1836/foreman/internal/errors"
)

// manifest is the on-disk shape of the dependency declaration file.
type manifest struct {
	Checks []domain.Check `yaml:"checks"`
}

// LoadManifest reads the dependency manifest at path. A missing file is
// an empty check list, not an error; a malformed file or an invalid check
// is ErrManifestInvalid.
func LoadManifest(path string) ([]domain.Check, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is constructed from trusted configuration
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read dependency manifest: %w", err)
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse dependency manifest '%s': %w", path, foremanerrors.ErrManifestInvalid)
	}

	for i, check := range m.Checks {
		if err := validateCheck(check); err != nil {
			return nil, fmt.Errorf("failed to load dependency manifest '%s': check %d: %w", path, i, err)
		}
	}
	return m.Checks, nil
}

// validateCheck enforces the minimal shape of one manifest entry.
func validateCheck(check domain.Check) error {
	if check.Name == "" {
		return fmt.Errorf("name is required: %w", foremanerrors.ErrManifestInvalid)
	}
	if check.Target == "" {
		return fmt.Errorf("target is required for '%s': %w", check.Name, foremanerrors.ErrManifestInvalid)
	}
	switch check.Kind {
	case domain.CheckKindExecutable, domain.CheckKindService, domain.CheckKindWritableDir:
		return nil
	default:
		return fmt.Errorf("unknown kind %q for '%s': %w", check.Kind, check.Name, foremanerrors.ErrManifestInvalid)
	}
}
