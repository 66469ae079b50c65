// File: jsonq/next.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package jsonq

// Next iterates over one level of a JSON object or array. Start with off = 0
// and feed the returned offset back in; 0 marks the end of the collection or
// a structural error. For objects key is the raw quoted key token; for arrays
// key is nil. The iteration cannot be resumed other than by restarting at 0.
//
//	for off, k, v := jsonq.Next(obj, 0); off > 0; off, k, v = jsonq.Next(obj, off) {
//		...
//	}
func Next(obj []byte, off int) (next int, key, val []byte) {
	if off < 0 || off >= len(obj) || len(obj) < 2 || (obj[0] != '{' && obj[0] != '[') {
		return 0, nil, nil
	}
	base := off
	if base == 0 {
		base = 1
	}
	sub := obj[base:]
	if obj[0] == '[' {
		o, n, err := Get(sub, "$")
		if err != nil || o+n > len(sub) {
			return 0, nil, nil
		}
		val = sub[o : o+n]
		next = base + o + n
	} else {
		o, n, err := Get(sub, "$")
		if err != nil || o+n > len(sub) || sub[o] != '"' {
			return 0, nil, nil
		}
		key = sub[o : o+n]
		rest := base + o + n
		for rest < len(obj) && obj[rest] != ':' {
			rest++
		}
		if rest < len(obj) {
			rest++
		}
		vsub := obj[rest:]
		o, n, err = Get(vsub, "$")
		if err != nil || o+n > len(vsub) {
			return 0, nil, nil
		}
		val = vsub[o : o+n]
		next = rest + o + n
	}
	for next < len(obj) && isSpace(obj[next]) {
		next++
	}
	if next < len(obj) && obj[next] == ',' {
		next++
	}
	if next > len(obj) {
		return 0, nil, nil
	}
	return next, key, val
}
