package signature

import (
	"encoding/json"
	"sort"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

const testTimestamp int64 = 1700000000000

func TestCanonicalize_SortsKeys(t *testing.T) {
	a, err := Canonicalize(`{"lastName":"Doe","firstName":"Jane","age":42}`, testTimestamp)
	require.NoError(t, err)

	b, err := Canonicalize(`{"age":42,"firstName":"Jane","lastName":"Doe"}`, testTimestamp)
	require.NoError(t, err)

	require.Equal(t, a, b)
	require.Equal(t, `{"data":{"age":42,"firstName":"Jane","lastName":"Doe"},"timestamp":1700000000000}`, string(a))
}

func TestCanonicalize_MapAndStringAgree(t *testing.T) {
	fromString, err := Canonicalize(`{"firstName":"Jane","subscribed":true}`, testTimestamp)
	require.NoError(t, err)

	fromMap, err := Canonicalize(map[string]any{"subscribed": true, "firstName": "Jane"}, testTimestamp)
	require.NoError(t, err)

	require.Equal(t, fromString, fromMap)
}

func TestCanonicalize_NoHTMLEscaping(t *testing.T) {
	out, err := Canonicalize(`{"note":"<b>Tom & Jerry</b>"}`, testTimestamp)
	require.NoError(t, err)
	require.Contains(t, string(out), `"note":"<b>Tom & Jerry</b>"`)
}

func TestCanonicalize_NumberFormatting(t *testing.T) {
	out, err := Canonicalize(`{"a":1.0,"b":1e3,"c":-0.5}`, testTimestamp)
	require.NoError(t, err)
	require.Equal(t, `{"data":{"a":1,"b":1000,"c":-0.5},"timestamp":1700000000000}`, string(out))
}

func TestCanonicalize_EmptyObject(t *testing.T) {
	out, err := Canonicalize(`{}`, 0)
	require.NoError(t, err)
	require.Equal(t, `{"data":{},"timestamp":0}`, string(out))
}

func TestCanonicalize_ParseErrors(t *testing.T) {
	cases := map[string]any{
		"invalid json":  "not json",
		"array":         `[1,2,3]`,
		"null":          `null`,
		"scalar":        `"text"`,
		"trailing data": `{"a":1} {"b":2}`,
		"nil payload":   nil,
		"unsupported":   42,
	}

	for name, payload := range cases {
		payload := payload
		t.Run(name, func(t *testing.T) {
			_, err := Canonicalize(payload, testTimestamp)
			require.ErrorIs(t, err, ErrParse)
		})
	}
}

// encodeInOrder writes m as a JSON object with keys in the given order.
func encodeInOrder(t *testing.T, m map[string]string, keys []string) string {
	var sb strings.Builder
	sb.WriteString("{")
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(",")
		}
		kb, err := json.Marshal(k)
		require.NoError(t, err)
		vb, err := json.Marshal(m[k])
		require.NoError(t, err)
		sb.Write(kb)
		sb.WriteString(":")
		sb.Write(vb)
	}
	sb.WriteString("}")
	return sb.String()
}

// TestCanonicalize_OrderIndependence verifies key order never changes the output.
// Property: Canonicalize(asc(P), T) == Canonicalize(desc(P), T) == Canonicalize(P, T)
func TestCanonicalize_OrderIndependence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("canonical bytes do not depend on key order", prop.ForAll(
		func(m map[string]string, ts int64) bool {
			keys := make([]string, 0, len(m))
			for k := range m {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			ascending := encodeInOrder(t, m, keys)

			sort.Sort(sort.Reverse(sort.StringSlice(keys)))
			descending := encodeInOrder(t, m, keys)

			obj := make(map[string]any, len(m))
			for k, v := range m {
				obj[k] = v
			}

			a, errA := Canonicalize(ascending, ts)
			b, errB := Canonicalize(descending, ts)
			c, errC := Canonicalize(obj, ts)
			if errA != nil || errB != nil || errC != nil {
				return false
			}
			return string(a) == string(b) && string(b) == string(c)
		},
		gen.MapOf(gen.AlphaString(), gen.AnyString()),
		gen.Int64Range(0, 1<<45),
	))

	properties.TestingRun(t)
}
