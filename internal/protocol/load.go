package protocol

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// tableFile is the on-disk shape of a packet table:
//
//	packets:
//	  - {type: 1, name: hello, length: 2}
//	  - {type: 2, name: chat,  length: 128}
type tableFile struct {
	Packets []Entry `yaml:"packets"`
}

// LoadFile reads a YAML packet table from path.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("packet table: %w", err)
	}
	defer f.Close()

	t, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("packet table %s: %w", path, err)
	}
	return t, nil
}

// Decode parses a YAML packet table.
func Decode(r io.Reader) (*Table, error) {
	var tf tableFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&tf); err != nil {
		return nil, err
	}
	if len(tf.Packets) == 0 {
		return nil, fmt.Errorf("no packets defined")
	}
	return NewTable(tf.Packets...)
}

// Encode writes t as YAML.
func Encode(w io.Writer, t *Table) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(tableFile{Packets: t.Entries()}); err != nil {
		return err
	}
	return enc.Close()
}
