package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/rangestream/codec"
	"github.com/hupe1980/rangestream/expr"
	"github.com/hupe1980/rangestream/index"
	"github.com/hupe1980/rangestream/kv"
	"github.com/hupe1980/rangestream/metadata"
)

// catalog is the on-disk form of the field metadata:
//
//	fields:
//	  - name: NAME
//	    indexed: true
//	    datatypes: [email]
//	  - name: BODY
//	    indexed: true
//	    index_only: true
type catalog struct {
	Fields []metadata.Field `yaml:"fields"`
}

func loadCatalog(path string) (*metadata.Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, commandError("read field catalog", err)
	}
	var c catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, commandError("parse field catalog "+path, err)
	}
	return metadata.NewStore(c.Fields...), nil
}

// loadQuery reads a predicate tree in its JSON form from path, or from r
// when path is "-".
func loadQuery(path string, r io.Reader) (*expr.Node, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(r)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, commandError("read query", err)
	}
	var n expr.Node
	if err := codec.Default.Unmarshal(data, &n); err != nil {
		return nil, commandError("parse query", err)
	}
	return &n, nil
}

// postingLine is one line of a postings file. A line without uids adds
// Count to a count-only posting.
type postingLine struct {
	Field    string   `json:"field"`
	Value    string   `json:"value"`
	Shard    string   `json:"shard"`
	Datatype string   `json:"datatype"`
	UIDs     []uint64 `json:"uids,omitempty"`
	Count    int64    `json:"count,omitempty"`
}

// readPostings writes every line of a JSON lines postings file into t.
func readPostings(r io.Reader, t *kv.Table) (int, error) {
	w := index.NewWriter(t)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)

	n := 0
	for line := 1; sc.Scan(); line++ {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var p postingLine
		if err := codec.Default.Unmarshal(sc.Bytes(), &p); err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		var err error
		if len(p.UIDs) > 0 {
			err = w.Add(p.Field, p.Value, p.Shard, p.Datatype, p.UIDs...)
		} else {
			err = w.AddCount(p.Field, p.Value, p.Shard, p.Datatype, p.Count)
		}
		if err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		n++
	}
	return n, sc.Err()
}
