package common

import (
	"fmt"
	"os"
	"path/filepath"

	"slh-wallet-bot/internal/models"

	"gopkg.in/yaml.v2"
)

// LoadProfile reads the static bot profile (community links, donation
// addresses, operator chat ids) from a YAML file. A relative path is
// resolved against the working directory.
func LoadProfile(profileFile string) (*models.Profile, error) {
	var profilePath string
	if filepath.IsAbs(profileFile) {
		profilePath = profileFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		profilePath = filepath.Join(wd, profileFile)
	}

	data, err := os.ReadFile(profilePath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", profileFile, err)
	}

	var profile models.Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", profileFile, err)
	}

	for i, id := range profile.OperatorChatIDs {
		if id == 0 {
			return nil, fmt.Errorf("operator at index %d has zero chat id", i)
		}
	}

	return &profile, nil
}
