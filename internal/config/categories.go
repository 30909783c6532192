package config

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type Category struct {
	Name       string
	Extensions []string
}

// Categories keeps categories in file order, since the first category
// listing an extension wins. It is written as a JSON object.
type Categories []Category

func (c Categories) Names() []string {
	names := make([]string, 0, len(c))
	for _, cat := range c {
		names = append(names, cat.Name)
	}
	return names
}

func (c *Categories) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("categories must be an object, got %v", tok)
	}

	var out Categories
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected category key %v", tok)
		}

		var exts []string
		if err := dec.Decode(&exts); err != nil {
			return fmt.Errorf("category %s: %w", name, err)
		}
		out = append(out, Category{Name: name, Extensions: exts})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*c = out
	return nil
}

func (c Categories) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, cat := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(cat.Name)
		if err != nil {
			return nil, err
		}
		exts := cat.Extensions
		if exts == nil {
			exts = []string{}
		}
		value, err := json.Marshal(exts)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
