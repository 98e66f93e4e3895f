package transport

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/profilesync/internal/model"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestEncode_Golden(t *testing.T) {
	tests := []struct {
		name string
		req  model.Request
	}{
		{
			name: "set_request",
			req: model.Request{
				Mutation: model.NewPropsMutation(model.KindSet, model.Object{
					"plan": model.String("pro"),
					"name": model.String("Ada"),
				}),
				Token:      "tok",
				DistinctID: "user-1",
			},
		},
		{
			name: "delete_request",
			req: model.Request{
				Mutation:   model.NewDeleteMutation(),
				Token:      "tok",
				DistinctID: "user-1",
			},
		},
		{
			name: "unset_request",
			req: model.Request{
				Mutation:   model.NewUnsetMutation("a", "b"),
				Token:      "tok",
				DistinctID: "user-1",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := Encode(tt.req)
			require.NoError(t, err)
			newGoldie(t).Assert(t, tt.name, []byte(body.Encode()))
		})
	}
}

func TestEncodeDecode_PreservesRequestObject(t *testing.T) {
	req := model.Request{
		Mutation: model.NewPropsMutation(model.KindAdd, model.Object{
			"logins": model.Int(2),
			"score":  model.Float(0.5),
		}),
		Token:      "tok",
		DistinctID: "user-1",
	}

	body, err := Encode(req)
	require.NoError(t, err)

	got, err := Decode(body)
	require.NoError(t, err)
	assert.Equal(t, req.Object(), got)
}

func TestDecode_MissingField(t *testing.T) {
	_, err := Decode(url.Values{})
	assert.Error(t, err)
}

func TestEndpoint(t *testing.T) {
	assert.Equal(t, "https://api.example.com/engage/", Endpoint("https://api.example.com", false))
	assert.Equal(t, "https://api.example.com/engage/", Endpoint("https://api.example.com/", false))
	assert.Equal(t, "https://api.example.com/engage/?verbose=1", Endpoint("https://api.example.com", true))
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		outcome model.Outcome
	}{
		{"plain success", http.StatusOK, "1", model.OutcomeSuccess},
		{"plain success with newline", http.StatusOK, "1\n", model.OutcomeSuccess},
		{"plain failure", http.StatusOK, "0", model.OutcomeFailure},
		{"verbose success", http.StatusOK, `{"status":1,"error":null}`, model.OutcomeSuccess},
		{"verbose failure", http.StatusOK, `{"status":0,"error":"bad token"}`, model.OutcomeFailure},
		{"server error", http.StatusInternalServerError, "1", model.OutcomeFailure},
		{"garbage", http.StatusOK, "ok", model.OutcomeFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ParseResponse(tt.status, []byte(tt.body))
			assert.Equal(t, tt.outcome, res.Outcome)
			assert.Equal(t, tt.status, res.Status)
			assert.Equal(t, tt.body, string(res.Body))
			if res.IsFailure() {
				assert.Error(t, res.Err)
			}
		})
	}
}

func TestParseResponse_VerboseErrorMessage(t *testing.T) {
	res := ParseResponse(http.StatusOK, []byte(`{"status":0,"error":"bad token"}`))
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, ErrRejected)
	assert.Contains(t, res.Err.Error(), "bad token")
}
