// File: http1/header.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package http1

import (
	"bytes"
	"net/url"
)

// HeaderVar extracts the parameter called name from a structured header
// value such as `form-data; name="file"; filename="a.txt"`. Quoted values are
// returned without quotes. Only whole parameter names match, so "name" is
// never found inside "filename". Returns nil when absent.
func HeaderVar(v []byte, name string) []byte {
	if len(name) == 0 {
		return nil
	}
	for i := 0; i+len(name) < len(v); i++ {
		if v[i+len(name)] != '=' || !equalFold(v[i:i+len(name)], name) {
			continue
		}
		if i > 0 && !paramSep(v[i-1]) {
			continue
		}
		p := i + len(name) + 1
		if p < len(v) && v[p] == '"' {
			end := p + 1
			for end < len(v) && v[end] != '"' {
				if v[end] == '\\' && end+1 < len(v) {
					end++
				}
				end++
			}
			return v[p+1 : min(end, len(v))]
		}
		end := p
		for end < len(v) && !paramSep(v[end]) {
			end++
		}
		return v[p:end]
	}
	return nil
}

func paramSep(c byte) bool {
	return c == ' ' || c == '\t' || c == ';' || c == ','
}

// GetVar returns the URL-decoded value of the form variable name in a query
// string or urlencoded body.
func GetVar(query []byte, name string) (string, bool) {
	for len(query) > 0 {
		var pair []byte
		if amp := bytes.IndexByte(query, '&'); amp >= 0 {
			pair, query = query[:amp], query[amp+1:]
		} else {
			pair, query = query, nil
		}
		k, v, _ := bytes.Cut(pair, []byte{'='})
		key, err := url.QueryUnescape(string(k))
		if err != nil || key != name {
			continue
		}
		val, err := url.QueryUnescape(string(v))
		if err != nil {
			return "", false
		}
		return val, true
	}
	return "", false
}
