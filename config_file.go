package prefixdb

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfigs decodes a YAML document mapping connection names to configs:
//
//	default:
//	  driver: mysql
//	  host: db.internal
//	  dbname: app
//	  user: app
//	  password: secret
//	  prefix: app_
//
// Unknown keys are rejected. Configs are not validated here; that happens
// when the connection is opened.
func LoadConfigs(r io.Reader) (map[string]Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	configs := make(map[string]Config)
	if err := dec.Decode(&configs); err != nil && err != io.EOF {
		return nil, fmt.Errorf("prefixdb: decode config: %w", err)
	}
	return configs, nil
}

// NewFactoryFromFile loads connection configs from the YAML file at path.
func NewFactoryFromFile(path string, opts ...Options) (*Factory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("prefixdb: open config: %w", err)
	}
	defer f.Close()

	configs, err := LoadConfigs(f)
	if err != nil {
		return nil, err
	}
	return NewFactory(configs, opts...), nil
}
