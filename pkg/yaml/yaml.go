package yaml

import (
	"bytes"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

func Unmarshal(in []byte, out any) error {
	return yaml.Unmarshal(in, out)
}

func Encode(v any, indent int) ([]byte, error) {
	b := bytes.NewBuffer(nil)
	e := yaml.NewEncoder(b)
	e.SetIndent(indent)

	if err := e.Encode(v); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

var reEnv = regexp.MustCompile(`\${([^}{]+)}`)

// ExpandEnv - replace ${NAME} and ${NAME:default} with environment values,
// unknown names without default stay as is
func ExpandEnv(src []byte) []byte {
	return reEnv.ReplaceAllFunc(src, func(match []byte) []byte {
		key := string(match[2 : len(match)-1])

		var def string
		var dok bool

		if i := strings.IndexByte(key, ':'); i > 0 {
			key, def = key[:i], key[i+1:]
			dok = true
		}

		if value, ok := os.LookupEnv(key); ok {
			return []byte(value)
		}

		if dok {
			return []byte(def)
		}

		return match
	})
}
