package command

import "strings"

// Field is one named input of a command. Aliases let the operator type
// shorter or legacy names; Prompt is shown when a required field is
// missing from the command line.
type Field struct {
	Name     string
	Aliases  []string
	Prompt   string
	Required bool
}

// Command binds a "<service> <action>" pair to an HTTP route on the
// archive server.
type Command struct {
	Service      string
	Action       string
	Method       string
	PathTemplate string
	Fields       []Field
}

// RequestSpec is a fully resolved request, ready for the HTTP client.
type RequestSpec struct {
	Method  string
	Path    string
	Headers map[string]string
	Body    []byte
}

// Params are the key=value arguments of one invocation. Keys are
// case-insensitive; all accessors fold to lower case.
type Params map[string]string

func (p Params) Get(key string) string { return p[strings.ToLower(key)] }

func (p Params) Set(key, value string) { p[strings.ToLower(key)] = value }

func (p Params) Has(key string) bool {
	_, ok := p[strings.ToLower(key)]
	return ok
}

// Canonicalize folds every alias the operator used into its field's
// canonical name, so the rest of the pipeline only sees Field.Name keys.
func (p Params) Canonicalize(fields []Field) {
	for _, f := range fields {
		canonical := strings.ToLower(f.Name)
		for _, alias := range f.Aliases {
			alias = strings.ToLower(alias)
			if v, ok := p[alias]; ok {
				p[canonical] = v
				delete(p, alias)
			}
		}
	}
}
