package sentinel

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeListAcceptsEveryEnvelope(t *testing.T) {
	shapes := map[string]string{
		"nested data":  `{"data":{"tenants":[{"id":1,"name":"Acme"},{"id":"t-2","nom":"Globex"}]}}`,
		"keyed":        `{"tenants":[{"id":1,"name":"Acme"},{"id":"t-2","nom":"Globex"}]}`,
		"bare array":   `[{"id":1,"name":"Acme"},{"id":"t-2","nom":"Globex"}]`,
		"data array":   `{"data":[{"id":1,"name":"Acme"},{"id":"t-2","nom":"Globex"}]}`,
		"camel nested": `{"Data":null,"Tenants":[{"ID":1,"Name":"Acme"},{"Id":"t-2","Nom":"Globex"}]}`,
	}
	for name, body := range shapes {
		t.Run(name, func(t *testing.T) {
			tenants, err := DecodeTenants(json.RawMessage(body))
			require.NoError(t, err)
			require.Len(t, tenants, 2)
			assert.Equal(t, "1", tenants[0].ID.String())
			assert.Equal(t, "Acme", tenants[0].DisplayName())
			assert.Equal(t, "Globex", tenants[1].DisplayName())
		})
	}
}

func TestDecodeListUnexpectedShapesAreEmpty(t *testing.T) {
	for _, body := range []string{`{}`, `{"data":{}}`, `{"tenants":"nope"}`, `null`, ``, `42`} {
		tenants, err := DecodeTenants(json.RawMessage(body))
		require.NoError(t, err, body)
		assert.NotNil(t, tenants, body)
		assert.Empty(t, tenants, body)
	}
}

func TestUnwrapRejectsMalformedJSON(t *testing.T) {
	_, err := Unwrap(json.RawMessage(`{"data":`))
	assert.ErrorIs(t, err, ErrMalformedEnvelope)

	_, err = DecodeTenants(json.RawMessage(`[{]`))
	assert.ErrorIs(t, err, ErrMalformedEnvelope)
}

func TestPickFallsBackToDocument(t *testing.T) {
	raw, err := Pick(json.RawMessage(`{"data":{"score":88}}`), "health_score")
	require.NoError(t, err)
	assert.JSONEq(t, `{"score":88}`, string(raw))

	raw, err = Pick(json.RawMessage(`{"healthScore":{"score":91}}`), "health_score")
	require.NoError(t, err)
	assert.JSONEq(t, `{"score":91}`, string(raw))
}

func TestCanonicalKey(t *testing.T) {
	assert.Equal(t, "total_tenants", CanonicalKey("totalTenants"))
	assert.Equal(t, "total_tenants", CanonicalKey("TotalTenants"))
	assert.Equal(t, "total_tenants", CanonicalKey("total_tenants"))
}

func TestFlexibleScalars(t *testing.T) {
	var payload struct {
		A Number `json:"a"`
		B Number `json:"b"`
		C Number `json:"c"`
		D Text   `json:"d"`
		E Text   `json:"e"`
		F Flag   `json:"f"`
		G Flag   `json:"g"`
		H Flag   `json:"h"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"58.03","b":null,"c":"97%","d":42,"e":{"x":1},"f":"yes","g":0,"h":1}`), &payload))
	assert.Equal(t, 58.03, payload.A.Float())
	assert.Zero(t, payload.B.Float())
	assert.Equal(t, 97.0, payload.C.Float())
	assert.Equal(t, "42", payload.D.String())
	assert.Empty(t, payload.E.String())
	assert.True(t, payload.F.Bool())
	assert.False(t, payload.G.Bool())
	assert.True(t, payload.H.Bool())

	var n Number
	assert.NoError(t, json.Unmarshal([]byte(`"n/a"`), &n))
	assert.Zero(t, n.Float())
}
