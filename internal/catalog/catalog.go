package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"reflect"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-viper/mapstructure/v2"
	"github.com/shopmonkeyus/go-common/logger"
	"github.com/shopmonkeyus/tablekit/internal"
	"github.com/shopmonkeyus/tablekit/internal/auth"
	"github.com/shopmonkeyus/tablekit/internal/table"
	"gopkg.in/yaml.v3"
)

// Format is the syntax of a catalog document.
type Format string

const (
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatFromPath returns the format for a file extension.
func FormatFromPath(p string) (Format, error) {
	switch strings.ToLower(path.Ext(p)) {
	case ".json":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported catalog file type: %s", p)
}

// AuthDocument is the declarative form of an auth spec. Permissions take precedence over All,
// and All over Read and Write.
type AuthDocument struct {
	All         string            `json:"all,omitempty" mapstructure:"all"`
	Read        string            `json:"read,omitempty" mapstructure:"read"`
	Write       string            `json:"write,omitempty" mapstructure:"write"`
	Permissions map[string]string `json:"permissions,omitempty" mapstructure:"permissions"`
}

// Spec converts the document to an auth spec. A nil document is the zero spec.
func (a *AuthDocument) Spec() (auth.Spec, error) {
	if a == nil {
		return auth.Spec{}, nil
	}
	if len(a.Permissions) > 0 {
		m := make(auth.PermissionMap, len(a.Permissions))
		for name, permission := range a.Permissions {
			c, ok := auth.ParseContext(name)
			if !ok {
				return auth.Spec{}, internal.ConfigErrorf("unknown authorization context %s", name)
			}
			m[c] = permission
		}
		return auth.Permissions(m), nil
	}
	if a.All != "" {
		return auth.Uniform(a.All), nil
	}
	if a.Read != "" || a.Write != "" {
		return auth.ReadWrite(a.Read, a.Write), nil
	}
	return auth.Spec{}, nil
}

// FieldDocument declares one field. Which of the kind options apply depends on Kind.
type FieldDocument struct {
	Kind     string        `json:"kind" mapstructure:"kind"`
	Member   string        `json:"member,omitempty" mapstructure:"member"`
	FKMember string        `json:"fkMember,omitempty" mapstructure:"fkMember"`
	Label    string        `json:"label,omitempty" mapstructure:"label"`
	Special  string        `json:"special,omitempty" mapstructure:"special"`
	Nullable bool          `json:"nullable,omitempty" mapstructure:"nullable"`
	Default  any           `json:"default,omitempty" mapstructure:"default"`
	Auth     *AuthDocument `json:"auth,omitempty" mapstructure:"auth"`

	Format        string `json:"format,omitempty" mapstructure:"format"`
	MinLength     int    `json:"minLength,omitempty" mapstructure:"minLength"`
	MaxLength     int    `json:"maxLength,omitempty" mapstructure:"maxLength"`
	Discrete      bool   `json:"discrete,omitempty" mapstructure:"discrete"`
	NotSearchable bool   `json:"notSearchable,omitempty" mapstructure:"notSearchable"`
	Searchable    bool   `json:"searchable,omitempty" mapstructure:"searchable"`

	Values  []table.EnumValue `json:"values,omitempty" mapstructure:"values"`
	Palette string            `json:"palette,omitempty" mapstructure:"palette"`

	ForeignTable        string `json:"foreignTable,omitempty" mapstructure:"foreignTable"`
	AssociationTable    string `json:"associationTable,omitempty" mapstructure:"associationTable"`
	LocalMember         string `json:"localMember,omitempty" mapstructure:"localMember"`
	ForeignMember       string `json:"foreignMember,omitempty" mapstructure:"foreignMember"`
	ForeignObjectMember string `json:"foreignObjectMember,omitempty" mapstructure:"foreignObjectMember"`
	IDMember            string `json:"idMember,omitempty" mapstructure:"idMember"`

	// Column gives a ghost field a store column.
	Column bool `json:"column,omitempty" mapstructure:"column"`
}

// TableDocument declares one table.
type TableDocument struct {
	ID      string                      `json:"id" mapstructure:"id"`
	Name    string                      `json:"name,omitempty" mapstructure:"name"`
	Alias   string                      `json:"alias,omitempty" mapstructure:"alias"`
	Auth    *AuthDocument               `json:"auth" mapstructure:"auth"`
	Fields  []FieldDocument             `json:"fields" mapstructure:"fields"`
	Filters map[string][]table.Behavior `json:"filters,omitempty" mapstructure:"filters"`
	Sort    []table.Sort                `json:"sort,omitempty" mapstructure:"sort"`
}

// Document is a whole catalog.
type Document struct {
	Palettes []table.Palette `json:"palettes,omitempty" mapstructure:"palettes"`
	Tables   []TableDocument `json:"tables" mapstructure:"tables"`
}

// decodeRaw parses the document syntax into generic values.
func decodeRaw(data []byte, format Format) (any, error) {
	var raw any
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("error decoding json catalog: %w", err)
		}
	case FormatTOML:
		var m map[string]any
		if _, err := toml.Decode(string(data), &m); err != nil {
			return nil, fmt.Errorf("error decoding toml catalog: %w", err)
		}
		raw = m
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("error decoding yaml catalog: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported catalog format: %s", format)
	}
	// round trip so that every syntax validates against the same JSON value model
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("error normalizing catalog: %w", err)
	}
	var normalized any
	dec := json.NewDecoder(bytes.NewReader(buf))
	dec.UseNumber()
	if err := dec.Decode(&normalized); err != nil {
		return nil, fmt.Errorf("error normalizing catalog: %w", err)
	}
	return normalized, nil
}

// Parse decodes and validates a catalog document.
func Parse(data []byte, format Format) (*Document, error) {
	raw, err := decodeRaw(data, format)
	if err != nil {
		return nil, err
	}
	if err := Validate(raw); err != nil {
		return nil, err
	}
	var doc Document
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &doc,
		ErrorUnused: true,
		DecodeHook:  jsonNumberHook,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, internal.ConfigErrorf("invalid catalog: %s", err)
	}
	return &doc, nil
}

// jsonNumberHook turns numbers into int64 where integral, float64 otherwise, before they reach
// untyped targets such as field defaults.
func jsonNumberHook(from, to reflect.Type, data any) (any, error) {
	n, ok := data.(json.Number)
	if !ok {
		return data, nil
	}
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	return n.Float64()
}

// Definitions converts the document to table definitions.
func (d *Document) Definitions() ([]table.Definition, error) {
	res := make([]table.Definition, 0, len(d.Tables))
	for _, td := range d.Tables {
		spec, err := td.Auth.Spec()
		if err != nil {
			return nil, err
		}
		def := table.Definition{
			ID:              td.ID,
			Name:            td.Name,
			Alias:           td.Alias,
			Auth:            spec,
			FilterBehaviors: td.Filters,
			DefaultSort:     td.Sort,
		}
		for i, fd := range td.Fields {
			f, err := fd.build()
			if err != nil {
				return nil, fmt.Errorf("table %s field %d: %w", td.ID, i, err)
			}
			def.Fields = append(def.Fields, f)
		}
		res = append(res, def)
	}
	return res, nil
}

// Build constructs the registry of the document.
func (d *Document) Build(log logger.Logger) (*table.Registry, error) {
	defs, err := d.Definitions()
	if err != nil {
		return nil, err
	}
	b := table.NewRegistryBuilder(log)
	for _, p := range d.Palettes {
		b.AddPalette(p)
	}
	for _, def := range defs {
		b.Add(def)
	}
	return b.Build()
}

// Load fetches, parses and builds a catalog. location is a path, a file:// url or an s3://bucket/key url.
func Load(ctx context.Context, log logger.Logger, location string) (*table.Registry, error) {
	log = log.WithPrefix("[catalog]")
	data, format, err := fetch(ctx, location)
	if err != nil {
		return nil, err
	}
	log.Debug("loaded %d bytes of %s from %s", len(data), format, location)
	doc, err := Parse(data, format)
	if err != nil {
		return nil, err
	}
	return doc.Build(log)
}
