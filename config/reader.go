package config

import (
	"bytes"
	"io"
	"io/fs"

	"github.com/a8m/envsubst"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Read reads a config from the given file, substituting ${VAR} references from the environment.
func Read(filePath string) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return FromReader(filePath, bytes.NewReader(buf))
}

// FromReader reads a config from the given reader and specifies where, if applicable, the file
// the reader originated from.
func FromReader(filePath string, r io.Reader) (*Config, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.UnmarshalStrict(buf, &cfg); err != nil {
		return nil, errors.Wrap(err, "cannot unmarshal config")
	}
	cfg.ConfigFilePath = filePath
	if err := cfg.Ensure(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadEnv loads environment variables from a dotenv file. Variables already set are kept. A
// missing file is not an error.
func LoadEnv(filePath string) error {
	if err := godotenv.Load(filePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return errors.Wrapf(err, "cannot load %s", filePath)
	}
	return nil
}
