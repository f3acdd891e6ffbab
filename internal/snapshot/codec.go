// Package snapshot encodes schemas to and from the versioned YAML snapshot
// format.
//
// A snapshot document carries a format version, the capture time, the
// database name, the tables in canonical order and, as its last line, a
// SHA-256 digest of everything but the version. Decode rejects any document
// whose digest does not match, so a snapshot cut short at any byte never
// decodes into a smaller schema.
package snapshot

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/tordrt/schemadrift/internal/schema"
)

// FormatVersion is the only snapshot format version this package reads and
// the one it writes.
const FormatVersion = 1

const digestPrefix = "sha256:"

type document struct {
	FormatVersion int `yaml:"format_version"`
	payload       `yaml:",inline"`
	Digest        string `yaml:"digest"`
}

// payload is the digested part of a document.
type payload struct {
	CapturedAt string  `yaml:"captured_at"`
	Database   string  `yaml:"database"`
	Tables     []table `yaml:"tables"`
}

type table struct {
	Name        string       `yaml:"name"`
	Columns     []column     `yaml:"columns"`
	Indexes     []index      `yaml:"indexes,omitempty"`
	Constraints []constraint `yaml:"constraints,omitempty"`
}

type column struct {
	Name     string  `yaml:"name"`
	Type     string  `yaml:"type"`
	Nullable bool    `yaml:"nullable"`
	Default  *string `yaml:"default"`
	Position int     `yaml:"position"`
}

type index struct {
	Name    string   `yaml:"name"`
	Columns []string `yaml:"columns,flow"`
	Unique  bool     `yaml:"unique"`
	Kind    string   `yaml:"kind,omitempty"`
}

type constraint struct {
	Name       string   `yaml:"name"`
	Kind       string   `yaml:"kind"`
	Columns    []string `yaml:"columns,flow,omitempty"`
	RefTable   string   `yaml:"ref_table,omitempty"`
	RefColumns []string `yaml:"ref_columns,flow,omitempty"`
	OnDelete   string   `yaml:"on_delete,omitempty"`
	OnUpdate   string   `yaml:"on_update,omitempty"`
	Check      string   `yaml:"check,omitempty"`
}

// Encode serializes s in canonical order. It fails only when s violates the
// model invariants checked by schema.Schema.Validate.
func Encode(s schema.Schema) ([]byte, error) {
	if err := s.Validate(schema.CaseSensitive); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	doc := document{
		FormatVersion: FormatVersion,
		payload:       toPayload(s.Canonical(schema.CaseSensitive)),
	}
	sum, err := digest(doc.payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	doc.Digest = sum

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a snapshot produced by Encode.
//
// A document whose format_version is not FormatVersion yields an
// *UnsupportedVersionError; the rest of such a document is not inspected.
// Every other failure is a *DecodeError.
func Decode(data []byte) (schema.Schema, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return schema.Schema{}, decodeErr("empty input", nil)
	}

	var header struct {
		FormatVersion *int `yaml:"format_version"`
	}
	if err := yaml.Unmarshal(data, &header); err != nil {
		return schema.Schema{}, decodeErr("malformed yaml", err)
	}
	if header.FormatVersion == nil {
		return schema.Schema{}, decodeErr("missing format_version", nil)
	}
	if *header.FormatVersion != FormatVersion {
		return schema.Schema{}, &UnsupportedVersionError{Version: *header.FormatVersion, Supported: FormatVersion}
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		return schema.Schema{}, decodeErr("malformed document", err)
	}
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		if err != nil {
			return schema.Schema{}, decodeErr("malformed trailing content", err)
		}
		return schema.Schema{}, decodeErr("more than one yaml document", nil)
	}

	if doc.Digest == "" {
		return schema.Schema{}, decodeErr("missing digest", nil)
	}
	want, err := digest(doc.payload)
	if err != nil {
		return schema.Schema{}, decodeErr("digest", err)
	}
	if doc.Digest != want {
		return schema.Schema{}, decodeErr("digest mismatch, snapshot is truncated or was edited", nil)
	}

	if doc.CapturedAt == "" {
		return schema.Schema{}, decodeErr("missing captured_at", nil)
	}
	capturedAt, err := time.Parse(time.RFC3339Nano, doc.CapturedAt)
	if err != nil {
		return schema.Schema{}, decodeErr("invalid captured_at", err)
	}

	s := fromPayload(doc.payload)
	s.CapturedAt = capturedAt.UTC()
	if err := s.Validate(schema.CaseSensitive); err != nil {
		return schema.Schema{}, decodeErr("invalid schema", err)
	}
	return s, nil
}

func digest(p payload) (string, error) {
	body, err := yaml.Marshal(p)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(body)
	return digestPrefix + hex.EncodeToString(sum[:]), nil
}

func toPayload(s schema.Schema) payload {
	p := payload{
		CapturedAt: s.CapturedAt.UTC().Format(time.RFC3339Nano),
		Database:   s.Database,
		Tables:     make([]table, 0, len(s.Tables)),
	}
	for _, t := range s.Tables {
		wt := table{Name: t.Name}
		for _, c := range t.Columns {
			wt.Columns = append(wt.Columns, column{
				Name:     c.Name,
				Type:     c.Type,
				Nullable: c.Nullable,
				Default:  c.Clone().Default,
				Position: c.Position,
			})
		}
		for _, idx := range t.Indexes {
			wt.Indexes = append(wt.Indexes, index{
				Name:    idx.Name,
				Columns: idx.Columns,
				Unique:  idx.Unique,
				Kind:    idx.Kind,
			})
		}
		for _, c := range t.Constraints {
			wt.Constraints = append(wt.Constraints, constraint{
				Name:       c.Name,
				Kind:       string(c.Kind),
				Columns:    c.Columns,
				RefTable:   c.RefTable,
				RefColumns: c.RefColumns,
				OnDelete:   c.OnDelete,
				OnUpdate:   c.OnUpdate,
				Check:      c.Check,
			})
		}
		p.Tables = append(p.Tables, wt)
	}
	return p
}

func fromPayload(p payload) schema.Schema {
	s := schema.Schema{Database: p.Database}
	for _, wt := range p.Tables {
		t := schema.Table{Name: wt.Name}
		for _, c := range wt.Columns {
			t.Columns = append(t.Columns, schema.Column{
				Name:     c.Name,
				Type:     c.Type,
				Nullable: c.Nullable,
				Default:  c.Default,
				Position: c.Position,
			})
		}
		for _, idx := range wt.Indexes {
			t.Indexes = append(t.Indexes, schema.Index{
				Name:    idx.Name,
				Columns: idx.Columns,
				Unique:  idx.Unique,
				Kind:    idx.Kind,
			})
		}
		for _, c := range wt.Constraints {
			t.Constraints = append(t.Constraints, schema.Constraint{
				Name:       c.Name,
				Kind:       schema.ConstraintKind(c.Kind),
				Columns:    c.Columns,
				RefTable:   c.RefTable,
				RefColumns: c.RefColumns,
				OnDelete:   c.OnDelete,
				OnUpdate:   c.OnUpdate,
				Check:      c.Check,
			})
		}
		s.Tables = append(s.Tables, t)
	}
	return s
}
