package directory

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Users []RegisterInput `yaml:"users"`
}

// LoadSeedFile reads a YAML document of the form
//
//	users:
//	  - login: anna
//	    pass: secret
//	    note: first user
func LoadSeedFile(path string) ([]RegisterInput, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(b)
}

// ParseSeed decodes seed users from YAML.
func ParseSeed(b []byte) ([]RegisterInput, error) {
	var doc seedFile
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	return doc.Users, nil
}
