package schema

import (
	"bytes"
	"fmt"
	"os"

	"github.com/acksell/ddbdecl/dynamodb/table"
	"gopkg.in/yaml.v3"
)

// Document is the serializable form of a set of table definitions.
// It is what `ddb migrate` reads, so tables can be provisioned without the Go types.
type Document struct {
	Tables []TableDoc `yaml:"tables" json:"tables"`
}

// TableDoc describes a DynamoDB table structure.
type TableDoc struct {
	Name         string         `yaml:"name" json:"name"`
	PartitionKey KeyDoc         `yaml:"partitionKey" json:"partitionKey"`
	SortKey      *KeyDoc        `yaml:"sortKey,omitempty" json:"sortKey,omitempty"`
	BillingMode  string         `yaml:"billingMode,omitempty" json:"billingMode,omitempty"`
	Throughput   *ThroughputDoc `yaml:"throughput,omitempty" json:"throughput,omitempty"`
	TimeToLive   string         `yaml:"timeToLive,omitempty" json:"timeToLive,omitempty"`
	GSIs         []GSIDoc       `yaml:"gsis,omitempty" json:"gsis,omitempty"`
}

// KeyDoc describes a key attribute definition.
type KeyDoc struct {
	Name string `yaml:"name" json:"name"`
	Kind string `yaml:"kind" json:"kind"` // "S", "N", or "B"
}

type ThroughputDoc struct {
	Read  int64 `yaml:"read" json:"read"`
	Write int64 `yaml:"write" json:"write"`
}

// GSIDoc describes a Global Secondary Index.
type GSIDoc struct {
	Name             string         `yaml:"name" json:"name"`
	PartitionKey     KeyDoc         `yaml:"partitionKey" json:"partitionKey"`
	SortKey          *KeyDoc        `yaml:"sortKey,omitempty" json:"sortKey,omitempty"`
	Projection       string         `yaml:"projection,omitempty" json:"projection,omitempty"`
	NonKeyAttributes []string       `yaml:"nonKeyAttributes,omitempty" json:"nonKeyAttributes,omitempty"`
	Throughput       *ThroughputDoc `yaml:"throughput,omitempty" json:"throughput,omitempty"`
}

// NewDocument converts table definitions into their document form.
func NewDocument(defs ...table.TableDefinition) Document {
	doc := Document{Tables: make([]TableDoc, 0, len(defs))}
	for _, def := range defs {
		keys := def.KeyDefinitions()
		td := TableDoc{
			Name:         def.Name,
			PartitionKey: keyDoc(keys.PartitionKey),
			SortKey:      optionalKeyDoc(keys.SortKey),
			TimeToLive:   def.TimeToLiveKey,
		}
		if def.BillingMode == table.BillingPayPerRequest {
			td.BillingMode = string(table.BillingPayPerRequest)
		} else {
			td.Throughput = throughputDoc(def.Throughput)
		}
		for _, gsi := range def.GSIs {
			idx := def.IndexKeyDefinitions(gsi)
			g := GSIDoc{
				Name:             gsi.Name,
				PartitionKey:     keyDoc(idx.PartitionKey),
				SortKey:          optionalKeyDoc(idx.SortKey),
				Projection:       string(gsi.Projection.Type),
				NonKeyAttributes: gsi.Projection.NonKeyAttributes,
			}
			if td.Throughput != nil && gsi.Throughput != def.Throughput {
				g.Throughput = throughputDoc(gsi.Throughput)
			}
			td.GSIs = append(td.GSIs, g)
		}
		doc.Tables = append(doc.Tables, td)
	}
	return doc
}

// Document returns the document form of every registered table.
func (r *Registry) Document() Document {
	return NewDocument(r.Tables()...)
}

// Definitions rebuilds the table definitions. Each table is declared through a
// Builder exactly like struct tags are, so the same validation applies.
func (d Document) Definitions() ([]table.TableDefinition, error) {
	defs := make([]table.TableDefinition, 0, len(d.Tables))
	for _, td := range d.Tables {
		def, err := td.definition()
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func (td TableDoc) definition() (table.TableDefinition, error) {
	b := NewBuilder()
	b.AddKey(td.PartitionKey.Name, table.KeyKind(td.PartitionKey.Kind), KeyOptions{Role: table.KeyRoleHash})
	if td.SortKey != nil {
		b.AddKey(td.SortKey.Name, table.KeyKind(td.SortKey.Kind), KeyOptions{Role: table.KeyRoleRange})
	}

	var opts []TableOption
	for _, g := range td.GSIs {
		var proj *table.Projection
		if g.Projection != "" {
			pt, err := table.ParseProjectionType(g.Projection)
			if err != nil {
				return table.TableDefinition{}, fmt.Errorf("table %q: index %q: %w", td.Name, g.Name, err)
			}
			proj = &table.Projection{Type: pt, NonKeyAttributes: g.NonKeyAttributes}
		}
		b.AddIndex(g.PartitionKey.Name, table.KeyKind(g.PartitionKey.Kind), IndexOptions{
			Name:       g.Name,
			Role:       table.KeyRoleHash,
			Projection: proj,
		})
		if g.SortKey != nil {
			b.AddIndex(g.SortKey.Name, table.KeyKind(g.SortKey.Kind), IndexOptions{
				Name: g.Name,
				Role: table.KeyRoleRange,
			})
		}
		if g.Throughput != nil {
			opts = append(opts, IndexThroughput(g.Name, g.Throughput.Read, g.Throughput.Write))
		}
	}

	switch td.BillingMode {
	case "", string(table.BillingProvisioned):
		if td.Throughput != nil {
			// Prepended so per-index throughput still overrides it.
			opts = append([]TableOption{Throughput(td.Throughput.Read, td.Throughput.Write)}, opts...)
		}
	case string(table.BillingPayPerRequest):
		opts = append(opts, PayPerRequest())
	default:
		return table.TableDefinition{}, fmt.Errorf("table %q: unknown billing mode %q", td.Name, td.BillingMode)
	}
	if td.TimeToLive != "" {
		opts = append(opts, TimeToLive(td.TimeToLive))
	}

	def, err := b.Finalize(td.Name, opts...)
	if err != nil {
		return table.TableDefinition{}, err
	}
	return def.Table, nil
}

// Marshal encodes the document as YAML.
func (d Document) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(d); err != nil {
		return nil, fmt.Errorf("marshaling schema: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("marshaling schema: %w", err)
	}
	return buf.Bytes(), nil
}

func ParseDocument(data []byte) (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("parsing schema: %w", err)
	}
	return doc, nil
}

func LoadDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("reading schema file: %w", err)
	}
	return ParseDocument(data)
}

func keyDoc(k table.KeyDef) KeyDoc {
	return KeyDoc{Name: k.Name, Kind: string(k.Kind)}
}

func optionalKeyDoc(k table.KeyDef) *KeyDoc {
	if k.Name == "" {
		return nil
	}
	kd := keyDoc(k)
	return &kd
}

func throughputDoc(tp table.Throughput) *ThroughputDoc {
	return &ThroughputDoc{Read: tp.ReadCapacityUnits, Write: tp.WriteCapacityUnits}
}
