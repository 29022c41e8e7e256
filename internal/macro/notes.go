package macro

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/leapstack-labs/nsbrowse/pkg/core"
	"gopkg.in/yaml.v3"
)

// notesSuffix names the sidecar file next to a namespace: util.star has its
// notes in util.notes.yaml.
const notesSuffix = ".notes.yaml"

//go:embed builtins.yaml
var builtinsNotes []byte

// notes is hand-written documentation that Starlark source cannot carry.
//
//	doc:
//	  greet: Greets someone.
//	examples:
//	  greet: |
//	    greet("world")
//	see_also:
//	  greet: [farewell, strings/upper]
//	kinds:
//	  greet: [macro]
type notes struct {
	Doc      map[string]string   `yaml:"doc"`
	Examples map[string]string   `yaml:"examples"`
	SeeAlso  map[string][]string `yaml:"see_also"`
	Kinds    map[string][]string `yaml:"kinds"`

	extra map[string]core.KindSet
}

// readNotes reads a sidecar file. A missing file yields empty notes.
func readNotes(path string) (*notes, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: sidecar of a namespace file inside the macros directory
	if err != nil {
		if os.IsNotExist(err) {
			return &notes{}, nil
		}
		return nil, fmt.Errorf("failed to read notes: %w", err)
	}
	n, err := parseNotes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return n, nil
}

func parseNotes(data []byte) (*notes, error) {
	n := &notes{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(n); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid notes: %w", err)
	}

	n.extra = make(map[string]core.KindSet, len(n.Kinds))
	for name, labels := range n.Kinds {
		var set core.KindSet
		for _, label := range labels {
			k, ok := core.ParseKind(label)
			if !ok {
				return nil, fmt.Errorf("invalid notes: unknown kind %q for %s", label, name)
			}
			set = set.With(k)
		}
		n.extra[name] = set
	}
	return n, nil
}

// extraKinds returns the kinds the notes add to a member.
func (n *notes) extraKinds(name string) core.KindSet {
	return n.extra[name]
}
