package jsonq_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/momentics/hioload-wire/jsonq"
)

func TestGet(t *testing.T) {
	doc := `{"a":{"b":[1,2,3]}}`
	cases := []struct {
		json string
		path string
		want string
		err  error
	}{
		{doc, "$.a.b[1]", "2", nil},
		{doc, "$.a.b", "[1,2,3]", nil},
		{doc, "$.a", `{"b":[1,2,3]}`, nil},
		{doc, "$", doc, nil},
		{doc, "$.a.c", "", jsonq.ErrNotFound},
		{doc, "$.a.b[5]", "", jsonq.ErrNotFound},
		{doc, "$.a.b.c", "", jsonq.ErrNotFound},
		{doc, "a", "", jsonq.ErrInvalid},
		{`  { "x" : [ true , null ] } `, "$.x[1]", "null", nil},
		{`{"a":"x\"y","b":2}`, "$.a", `"x\"y"`, nil},
		{`{"a":"x\"y","b":2}`, "$.b", "2", nil},
		{`{"ab":1,"a":2}`, "$.a", "2", nil},
		{`{"x":{"a":1},"a":false}`, "$.a", "false", nil},
		{`[-1.5e3, 0]`, "$[0]", "-1.5e3", nil},
		{`[[1],[2,3]]`, "$[1][0]", "2", nil},
		{`[[1],[2,3]]`, "$[1]", "[2,3]", nil},
		{`{"a":[]}`, "$.a", "[]", nil},
		{`{"a":{}}`, "$.a", "{}", nil},
		{`{"a":[]}`, "$.a[0]", "", jsonq.ErrNotFound},
		{`"str"`, "$", `"str"`, nil},
		{`{"a" 1}`, "$.a", "", jsonq.ErrInvalid},
		{`{"a":1]`, "$.b", "", jsonq.ErrInvalid},
		{`{"a":tru}`, "$.a", "", jsonq.ErrInvalid},
		{`{"a":1.}`, "$.a", "", jsonq.ErrInvalid},
		{`{"a":"unterminated}`, "$.a", "", jsonq.ErrInvalid},
		{`{"a":`, "$", "", jsonq.ErrNotFound},
	}
	for _, tc := range cases {
		off, n, err := jsonq.Get([]byte(tc.json), tc.path)
		if tc.err != nil {
			if !errors.Is(err, tc.err) {
				t.Errorf("Get(%s, %s): err = %v, want %v", tc.json, tc.path, err, tc.err)
			}
			continue
		}
		if err != nil {
			t.Errorf("Get(%s, %s): unexpected error %v", tc.json, tc.path, err)
			continue
		}
		if got := tc.json[off : off+n]; got != tc.want {
			t.Errorf("Get(%s, %s) = %q, want %q", tc.json, tc.path, got, tc.want)
		}
	}
}

func TestGetDepthLimit(t *testing.T) {
	ok := strings.Repeat("[", jsonq.MaxDepth) + strings.Repeat("]", jsonq.MaxDepth)
	off, n, err := jsonq.Get([]byte(ok), "$")
	if err != nil || off != 0 || n != len(ok) {
		t.Fatalf("max depth document: off=%d n=%d err=%v", off, n, err)
	}
	deep := strings.Repeat("[", jsonq.MaxDepth+1) + strings.Repeat("]", jsonq.MaxDepth+1)
	if _, _, err := jsonq.Get([]byte(deep), "$"); !errors.Is(err, jsonq.ErrTooDeep) {
		t.Errorf("expected ErrTooDeep, got %v", err)
	}
}

func TestValid(t *testing.T) {
	cases := map[string]bool{
		`{"a":[1,2]}`:      true,
		` [] `:             true,
		"{}\r\n":           true,
		`"x"`:              true,
		`[1,]`:             false,
		`{"a":1,}`:         false,
		`[,1]`:             false,
		`{"a":1}}`:         false,
		`{"a":1} {"b":2}`:  false,
		`12 34`:            false,
		`{"a":[1,],"b":2}`: false,
	}
	for doc, want := range cases {
		if got := jsonq.Valid([]byte(doc)); got != want {
			t.Errorf("Valid(%q) = %v, want %v", doc, got, want)
		}
	}
	if _, _, err := jsonq.Get([]byte(`[1,]`), "$"); !errors.Is(err, jsonq.ErrInvalid) {
		t.Errorf("Get([1,]) = %v", err)
	}
}

func TestGetDeterministic(t *testing.T) {
	doc := []byte(`{"id":7,"list":[{"k":"v"},{"k":"w"}]}`)
	o1, n1, err1 := jsonq.Get(doc, "$.list[1].k")
	o2, n2, err2 := jsonq.Get(doc, "$.list[1].k")
	if o1 != o2 || n1 != n2 || err1 != err2 {
		t.Fatal("repeated Get returned different results")
	}
	if got := string(doc[o1 : o1+n1]); got != `"w"` {
		t.Errorf("got %s", got)
	}
}

func TestNextObject(t *testing.T) {
	obj := []byte(`{"a":1, "b":[2,3] ,"c":{"d":"e"}}`)
	var keys, vals []string
	for off, k, v := jsonq.Next(obj, 0); off > 0; off, k, v = jsonq.Next(obj, off) {
		keys = append(keys, string(k))
		vals = append(vals, string(v))
	}
	wantKeys := []string{`"a"`, `"b"`, `"c"`}
	wantVals := []string{`1`, `[2,3]`, `{"d":"e"}`}
	if strings.Join(keys, "|") != strings.Join(wantKeys, "|") {
		t.Errorf("keys = %v, want %v", keys, wantKeys)
	}
	if strings.Join(vals, "|") != strings.Join(wantVals, "|") {
		t.Errorf("vals = %v, want %v", vals, wantVals)
	}
}

func TestNextArray(t *testing.T) {
	arr := []byte(`[1, "two", null]`)
	var vals []string
	for off, k, v := jsonq.Next(arr, 0); off > 0; off, k, v = jsonq.Next(arr, off) {
		if k != nil {
			t.Errorf("array element has key %q", k)
		}
		vals = append(vals, string(v))
	}
	if got := strings.Join(vals, "|"); got != `1|"two"|null` {
		t.Errorf("got %s", got)
	}
	if off, _, _ := jsonq.Next([]byte(`{}`), 0); off != 0 {
		t.Errorf("empty object yielded offset %d", off)
	}
	if off, _, _ := jsonq.Next([]byte(`42`), 0); off != 0 {
		t.Errorf("scalar yielded offset %d", off)
	}
}

func TestAccessors(t *testing.T) {
	doc := []byte(`{"n":-1.5,"l":12345678901,"t":true,"f":false,"s":"a\nbA\/",` +
		`"u":"\u0100","b":"aGVsbG8=","rb":"aGVsbG8","bad":"!!!!","h":"68656c6c6f","hx":"zz"}`)

	if v, ok := jsonq.GetNum(doc, "$.n"); !ok || v != -1.5 {
		t.Errorf("GetNum = %v, %v", v, ok)
	}
	if _, ok := jsonq.GetNum(doc, "$.s"); ok {
		t.Error("GetNum accepted a string")
	}
	if v, ok := jsonq.GetLong(doc, "$.l"); !ok || v != 12345678901 {
		t.Errorf("GetLong = %v, %v", v, ok)
	}
	if v, ok := jsonq.GetBool(doc, "$.t"); !ok || !v {
		t.Errorf("GetBool(t) = %v, %v", v, ok)
	}
	if v, ok := jsonq.GetBool(doc, "$.f"); !ok || v {
		t.Errorf("GetBool(f) = %v, %v", v, ok)
	}
	if _, ok := jsonq.GetBool(doc, "$.n"); ok {
		t.Error("GetBool accepted a number")
	}
	if v, ok := jsonq.GetStr(doc, "$.s"); !ok || v != "a\nbA/" {
		t.Errorf("GetStr = %q, %v", v, ok)
	}
	if v, ok := jsonq.GetStr(doc, "$.u"); ok || v != "" {
		t.Errorf("GetStr accepted \\u0100: %q", v)
	}
	if v, ok := jsonq.GetB64(doc, "$.b"); !ok || string(v) != "hello" {
		t.Errorf("GetB64 = %q, %v", v, ok)
	}
	if v, ok := jsonq.GetB64(doc, "$.rb"); !ok || string(v) != "hello" {
		t.Errorf("GetB64 unpadded = %q, %v", v, ok)
	}
	if v, ok := jsonq.GetB64(doc, "$.bad"); ok || v != nil {
		t.Errorf("GetB64 accepted bad alphabet: %q", v)
	}
	if v, ok := jsonq.GetHex(doc, "$.h"); !ok || string(v) != "hello" {
		t.Errorf("GetHex = %q, %v", v, ok)
	}
	if v, ok := jsonq.GetHex(doc, "$.hx"); ok || v != nil {
		t.Errorf("GetHex accepted bad digits: %q", v)
	}
	if _, ok := jsonq.GetStr(doc, "$.missing"); ok {
		t.Error("GetStr found a missing key")
	}
}

func TestAppendString(t *testing.T) {
	got := string(jsonq.AppendString(nil, "a\"b\\c\n\x01"))
	want := `"a\"b\\c\n\u0001"`
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
	if !jsonq.Valid([]byte(got)) {
		t.Error("quoted output is not valid json")
	}
}
